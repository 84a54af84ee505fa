// Package channels delivers replies to and receives messages from the
// messaging platforms a company is integrated with.
package channels

import (
	"context"
	"errors"

	"github.com/ziadkadry99/auto-reply/internal/companies"
)

// ErrUnsupportedPlatform is returned when no adapter serves a platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Target addresses one conversation on a platform.
type Target struct {
	Platform       companies.Platform
	CompanyID      string
	ConversationID string
	// Instance is the bot-service instance name or the Graph API phone
	// number ID, depending on the platform.
	Instance string
	// To is the end user's phone number.
	To          string
	AccessToken string
}

// Incoming is a customer message received on a channel.
type Incoming struct {
	Platform  companies.Platform
	CompanyID string
	Instance  string
	From      string
	Name      string
	Content   string
	// Type is the message type reported by the platform (text, image, ...).
	Type  string
	Image []byte
}

// Receiver accepts inbound messages and returns the ID of the conversation
// the message was stored in.
type Receiver interface {
	Accept(ctx context.Context, in Incoming) (string, error)
}
