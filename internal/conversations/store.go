package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/auto-reply/internal/db"
)

// Store provides persistence for conversations and their messages.
type Store struct {
	db *db.DB
}

// NewStore creates a new conversations store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

const conversationColumns = `id, company_id, name, source, phone_number, instance_name, COALESCE(customer_id, ''), ai_reply, created_at`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	c := &Conversation{}
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Source, &c.PhoneNumber,
		&c.InstanceName, &c.CustomerID, &c.AIReply, &c.CreatedAt)
	return c, err
}

// Create inserts a new conversation. AIReply defaults to on.
func (s *Store) Create(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, company_id, name, source, phone_number, instance_name, customer_id, ai_reply, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Name, c.Source, c.PhoneNumber, c.InstanceName,
		nullable(c.CustomerID), c.AIReply, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return c, nil
}

// FindOrCreate returns the conversation a company has with a phone number on
// an instance, creating it when none exists. The bool reports creation.
func (s *Store) FindOrCreate(ctx context.Context, tmpl Conversation) (*Conversation, bool, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE company_id = ? AND phone_number = ? AND instance_name = ? ORDER BY created_at LIMIT 1`,
		tmpl.CompanyID, tmpl.PhoneNumber, tmpl.InstanceName))
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("finding conversation: %w", err)
	}
	tmpl.ID = ""
	tmpl.AIReply = true
	if err := s.Create(ctx, &tmpl); err != nil {
		return nil, false, err
	}
	return &tmpl, true, nil
}

// List returns a company's conversations, newest first.
func (s *Store) List(ctx context.Context, companyID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE company_id = ? ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var result []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// LinkCustomer attaches a customer record to a conversation.
func (s *Store) LinkCustomer(ctx context.Context, conversationID, customerID string) error {
	return s.update(ctx, `UPDATE conversations SET customer_id = ? WHERE id = ?`, customerID, conversationID)
}

// SetAIReply switches automatic replies on or off for a conversation.
func (s *Store) SetAIReply(ctx context.Context, conversationID string, enabled bool) error {
	return s.update(ctx, `UPDATE conversations SET ai_reply = ? WHERE id = ?`, enabled, conversationID)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddMessage appends a message to its conversation.
func (s *Store) AddMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	extra, err := json.Marshal(m.Extra)
	if err != nil {
		return fmt.Errorf("marshaling extra: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_type, sender_email, content, extra, energy_kwh, carbon_kg, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.SenderType), m.SenderEmail, m.Content,
		string(extra), m.EnergyKWh, m.CarbonKg, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in the order they were stored.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_type, sender_email, content, extra, energy_kwh, carbon_kg, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, rowid`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		var m Message
		var sender, extra string
		if err := rows.Scan(&m.ID, &m.ConversationID, &sender, &m.SenderEmail, &m.Content,
			&extra, &m.EnergyKWh, &m.CarbonKg, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.SenderType = SenderType(sender)
		if err := json.Unmarshal([]byte(extra), &m.Extra); err != nil {
			return nil, fmt.Errorf("unmarshaling extra: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// RecordEnergy stores the energy estimate of the run that produced a message.
func (s *Store) RecordEnergy(ctx context.Context, messageID string, kwh, kgCO2 float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET energy_kwh = ?, carbon_kg = ? WHERE id = ?`, kwh, kgCO2, messageID)
	if err != nil {
		return fmt.Errorf("recording energy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
