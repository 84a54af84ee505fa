package personality

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/auto-reply/internal/db"
)

// Store persists one personality per company.
type Store struct {
	db *db.DB
}

// NewStore creates a new personality store.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Get returns the company's personality, or nil when none is configured.
func (s *Store) Get(ctx context.Context, companyID string) (*Config, error) {
	c := &Config{}
	var caps string
	err := s.db.QueryRowContext(ctx,
		`SELECT company_id, bot_name, bot_prompt, length_of_response, tone, preferred_lang,
		        use_emojis, use_bullet_points, capabilities, updated_at
		 FROM personalities WHERE company_id = ?`, companyID,
	).Scan(&c.CompanyID, &c.BotName, &c.BotPrompt, &c.LengthOfResponse, &c.Tone, &c.PreferredLang,
		&c.UseEmojis, &c.UseBulletPoints, &caps, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting personality: %w", err)
	}
	if err := json.Unmarshal([]byte(caps), &c.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshaling capabilities: %w", err)
	}
	return c, nil
}

// Put creates or replaces the company's personality.
func (s *Store) Put(ctx context.Context, c *Config) error {
	if c.PreferredLang == "" {
		c.PreferredLang = NoLanguage
	}
	if c.Capabilities == nil {
		c.Capabilities = []string{}
	}
	caps, err := json.Marshal(c.Capabilities)
	if err != nil {
		return fmt.Errorf("marshaling capabilities: %w", err)
	}
	c.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO personalities (company_id, bot_name, bot_prompt, length_of_response, tone, preferred_lang,
		                            use_emojis, use_bullet_points, capabilities, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(company_id) DO UPDATE SET
		   bot_name=excluded.bot_name, bot_prompt=excluded.bot_prompt,
		   length_of_response=excluded.length_of_response, tone=excluded.tone,
		   preferred_lang=excluded.preferred_lang, use_emojis=excluded.use_emojis,
		   use_bullet_points=excluded.use_bullet_points, capabilities=excluded.capabilities,
		   updated_at=excluded.updated_at`,
		c.CompanyID, c.BotName, c.BotPrompt, c.LengthOfResponse, c.Tone, c.PreferredLang,
		c.UseEmojis, c.UseBulletPoints, string(caps), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving personality: %w", err)
	}
	return nil
}
