package conversations

import (
	"time"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
)

// SenderType identifies who wrote a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderBot      SenderType = "bot"
)

// Conversation is one thread between a company and an end user.
type Conversation struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	PhoneNumber  string    `json:"phone_number"`
	InstanceName string    `json:"instance_name"`
	CustomerID   string    `json:"customer_id,omitempty"`
	AIReply      bool      `json:"ai_reply"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a single persisted message. Messages are never edited except
// for the energy figures attached after the run that produced them.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderType     SenderType      `json:"sender_type"`
	SenderEmail    string          `json:"sender_email,omitempty"`
	Content        string          `json:"content"`
	Extra          attachments.Set `json:"extra"`
	EnergyKWh      float64         `json:"energy_kwh"`
	CarbonKg       float64         `json:"carbon_kg"`
	CreatedAt      time.Time       `json:"created_at"`
}
