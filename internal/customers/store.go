// Package customers stores the contact details captured from conversations.
package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

// Customer is a contact of a company.
type Customer struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Complete reports whether name, email and phone are all known.
func (c *Customer) Complete() bool {
	return c.Name != "" && c.Email != "" && c.Phone != ""
}

// Patch holds the fields to change on a customer. Nil fields are left alone.
type Patch struct {
	Name  *string
	Email *string
	Phone *string
}

// Store provides CRUD operations for customers.
type Store struct {
	db *db.DB
}

// NewStore creates a new customers store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Create inserts a new customer.
func (s *Store) Create(ctx context.Context, c *Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, company_id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Name, c.Email, c.Phone, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating customer: %w", err)
	}
	return nil
}

// Get retrieves a customer by ID.
func (s *Store) Get(ctx context.Context, id string) (*Customer, error) {
	c := &Customer{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, email, phone, created_at FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting customer: %w", err)
	}
	return c, nil
}

// Update applies a patch to a customer and returns the stored result.
func (s *Store) Update(ctx context.Context, id string, p Patch) (*Customer, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET name=?, email=?, phone=? WHERE id=?`,
		c.Name, c.Email, c.Phone, id)
	if err != nil {
		return nil, fmt.Errorf("updating customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

// IsNotFound reports whether err means the customer does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
