package channels

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/ziadkadry99/auto-reply/internal/attachments"
	"github.com/ziadkadry99/auto-reply/internal/companies"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
)

// Adapter delivers an outbound message on one platform.
type Adapter interface {
	Deliver(ctx context.Context, t Target, text string, files attachments.Set) error
}

// Gateway is the platform-agnostic delivery gateway that routes messages
// to the adapter registered for their platform.
type Gateway struct {
	adapters map[companies.Platform]Adapter
	metrics  metrics.Metrics
}

// NewGateway creates a Gateway with no adapters.
func NewGateway(m metrics.Metrics) *Gateway {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Gateway{adapters: make(map[companies.Platform]Adapter), metrics: m}
}

// Register sets the adapter for a platform.
func (g *Gateway) Register(p companies.Platform, a Adapter) {
	g.adapters[p] = a
}

// Deliver routes the message to the adapter of the target's platform.
func (g *Gateway) Deliver(ctx context.Context, t Target, text string, files attachments.Set) error {
	a, ok := g.adapters[t.Platform]
	if !ok {
		g.metrics.IncDelivery(string(t.Platform), "unsupported")
		return fmt.Errorf("%w: %q", ErrUnsupportedPlatform, t.Platform)
	}
	if err := a.Deliver(ctx, t, text, files); err != nil {
		g.metrics.IncDelivery(string(t.Platform), "failed")
		return fmt.Errorf("delivering to %s: %w", t.Platform, err)
	}
	g.metrics.IncDelivery(string(t.Platform), "delivered")
	return nil
}

// FileURL returns the public URL of a stored attachment.
func FileURL(baseURL, file string) string {
	p := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(file)), "/")
	return strings.TrimRight(baseURL, "/") + "/" + p
}
