package companies

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

// ErrNotFound is returned when a company or integration does not exist.
var ErrNotFound = errors.New("not found")

// Store provides CRUD operations for companies and their integrations.
type Store struct {
	db *db.DB
}

// NewStore creates a new companies store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// CreateCompany inserts a new company.
func (s *Store) CreateCompany(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating company: %w", err)
	}
	return nil
}

// GetCompany retrieves a company by ID.
func (s *Store) GetCompany(ctx context.Context, id string) (*Company, error) {
	c := &Company{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting company: %w", err)
	}
	return c, nil
}

// ListCompanies returns all companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var result []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// CreateIntegration inserts a channel integration for a company.
func (s *Store) CreateIntegration(ctx context.Context, in *Integration) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	in.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO integrations (id, company_id, platform, instance_name, phone_number, phone_number_id, access_token, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.CompanyID, string(in.Platform), in.InstanceName, in.PhoneNumber,
		in.PhoneNumberID, in.AccessToken, in.Active, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating integration: %w", err)
	}
	return nil
}

const integrationColumns = `id, company_id, platform, instance_name, phone_number, phone_number_id, access_token, active, created_at`

func scanIntegration(row interface{ Scan(...any) error }) (*Integration, error) {
	in := &Integration{}
	var platform string
	if err := row.Scan(&in.ID, &in.CompanyID, &platform, &in.InstanceName, &in.PhoneNumber,
		&in.PhoneNumberID, &in.AccessToken, &in.Active, &in.CreatedAt); err != nil {
		return nil, err
	}
	in.Platform = Platform(platform)
	return in, nil
}

// ListIntegrations returns the integrations of a company.
func (s *Store) ListIntegrations(ctx context.Context, companyID string) ([]Integration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE company_id = ? ORDER BY created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing integrations: %w", err)
	}
	defer rows.Close()

	var result []Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		result = append(result, *in)
	}
	return result, rows.Err()
}

// FindByInstance returns the active integration registered under the given
// bot-service instance name.
func (s *Store) FindByInstance(ctx context.Context, instance string) (*Integration, error) {
	return s.findOne(ctx, `instance_name = ?`, instance)
}

// FindByPhoneNumberID returns the active Business API integration for a
// Graph API phone number ID.
func (s *Store) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Integration, error) {
	return s.findOne(ctx, `phone_number_id = ?`, phoneNumberID)
}

func (s *Store) findOne(ctx context.Context, where string, arg string) (*Integration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE active = 1 AND `+where+` LIMIT 1`, arg)
	in, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("integration %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding integration: %w", err)
	}
	return in, nil
}
