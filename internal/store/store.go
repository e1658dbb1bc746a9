// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// ErrOrderNotFound is returned when no order matches an email/orderID pair.
var ErrOrderNotFound = errors.New("order not found")

// Repository defines the interface for persisting sessions and orders.
type Repository interface {
	// GetOrCreateSession loads the session for id, creating an empty one
	// if the id has not been seen before. First contact is the common
	// case, so an unknown id is never an error.
	GetOrCreateSession(ctx context.Context, id string) (*domain.Session, error)

	// AppendMessage durably appends one message to a session's log.
	// The write is committed before the call returns.
	AppendMessage(ctx context.Context, id string, msg domain.Message) error

	// GetRecentMessages returns the last n messages for a session,
	// most-recent-last.
	GetRecentMessages(ctx context.Context, id string, n int) ([]domain.Message, error)

	// GetHistory returns the full ordered conversation log for a session.
	// Repeated calls with no intervening writes return identical output.
	GetHistory(ctx context.Context, id string) ([]domain.Message, error)

	// ReadSlots returns the current preference slots and flow state.
	ReadSlots(ctx context.Context, id string) (domain.PreferenceSlots, domain.FlowState, error)

	// WriteSlots atomically persists the preference slots together with
	// the flow state. Partial writes are not possible: the pair commits
	// as one statement or not at all.
	WriteSlots(ctx context.Context, id string, slots domain.PreferenceSlots, state domain.FlowState) error

	// GetOrder looks up an order by customer email and order id.
	// Returns ErrOrderNotFound when no match exists.
	GetOrder(ctx context.Context, email, orderID string) (*domain.Order, []domain.OrderEvent, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
