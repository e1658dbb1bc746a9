// Package provider implements the language-model capability behind a
// provider-neutral interface. The assistant core never depends on a
// provider's wire format; each adapter exposes the same Generate call.
package provider

import (
	"context"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// Provider is the language-model capability. Implementations must
// honor ctx cancellation and deadlines; the caller always attaches an
// explicit timeout.
type Provider interface {
	// Generate produces a completion for the given conversation. The
	// system prompt, when non-empty, is prepended as a system message.
	Generate(ctx context.Context, messages []domain.Message, systemPrompt string) (string, error)

	// TestConnection reports whether the backend is reachable.
	TestConnection(ctx context.Context) bool

	// Name identifies the adapter for logging.
	Name() string
}
