package personality

import (
	"context"
	"strings"

	"github.com/ziadkadry99/auto-reply/internal/logging"
)

// DefaultPrompt is used when a company has no personality configured.
const DefaultPrompt = "You are an AI sales assistant helping customers. Generate short, natural, clear sales replies."

// NoLanguage is the stored value meaning no preferred language.
const NoLanguage = "None"

// Resolve builds the system prompt for a personality. Empty fields are
// skipped; the emoji and bullet point toggles always contribute a line.
func Resolve(cfg *Config) string {
	if cfg == nil {
		return DefaultPrompt
	}

	var b strings.Builder
	b.WriteString(cfg.BotPrompt)
	if cfg.BotName != "" {
		b.WriteString("\n Your name is " + cfg.BotName)
	}
	if cfg.LengthOfResponse != "" {
		b.WriteString("\n Your response should be " + cfg.LengthOfResponse)
	}
	if cfg.Tone != "" {
		b.WriteString("\n Your tone should be " + cfg.Tone)
	}
	if cfg.PreferredLang != "" && cfg.PreferredLang != NoLanguage {
		b.WriteString("\n Your prefered language is " + cfg.PreferredLang)
	}
	if cfg.UseEmojis {
		b.WriteString("\n You can use emojis in your response")
	} else {
		b.WriteString("\n You should not use emojis in your response")
	}
	if cfg.UseBulletPoints {
		b.WriteString("\n You can use bullet points in your response")
	} else {
		b.WriteString("\n You should not use bullet points in your response")
	}
	return b.String()
}

// Source loads a company's personality. It returns nil, nil when the company
// has none.
type Source interface {
	Get(ctx context.Context, companyID string) (*Config, error)
}

// Resolver reads personalities and turns them into prompts.
type Resolver struct {
	source       Source
	capabilities []string
}

// NewResolver creates a resolver. defaultCapabilities apply to companies
// that have not chosen their own.
func NewResolver(source Source, defaultCapabilities []string) *Resolver {
	return &Resolver{source: source, capabilities: defaultCapabilities}
}

// Profile is the resolved prompt and generator capabilities of a company.
type Profile struct {
	SystemPrompt string
	Capabilities []string
}

// Profile performs the single personality read of a run. A failed read is
// logged and falls back to the default prompt.
func (r *Resolver) Profile(ctx context.Context, companyID string) Profile {
	cfg, err := r.source.Get(ctx, companyID)
	if err != nil {
		logging.WithComponent("personality").WithError(err).
			WithField("company", companyID).Warn("loading personality failed, using default prompt")
		cfg = nil
	}
	p := Profile{SystemPrompt: Resolve(cfg), Capabilities: r.capabilities}
	if cfg != nil && len(cfg.Capabilities) > 0 {
		p.Capabilities = cfg.Capabilities
	}
	return p
}
