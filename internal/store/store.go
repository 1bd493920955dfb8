// Package store defines the account store port: durable keyed storage for
// the programs' entities. Keys are derived deterministically in
// internal/state; the store itself is a dumb kind+key → record mapping with
// transactional read-modify-write supplied by the caller's serialization.
package store

import (
	"context"
	"errors"

	"DriftShield/internal/state"
)

// ErrNotFound is returned when no entity exists under the given key.
var ErrNotFound = errors.New("entity not found")

// ErrAlreadyExists is returned by Create operations when the derived key
// is already occupied.
var ErrAlreadyExists = errors.New("entity already exists")

// Store is the account store port. Implementations must return copies (or
// otherwise isolated records): entities handed out must never alias
// mutable storage internals.
type Store interface {
	GetMarket(ctx context.Context, key state.Key) (*state.Market, error)
	PutMarket(ctx context.Context, m *state.Market) error

	GetPosition(ctx context.Context, key state.Key) (*state.Position, error)
	PutPosition(ctx context.Context, p *state.Position) error

	GetModel(ctx context.Context, key state.Key) (*state.ModelRecord, error)
	PutModel(ctx context.Context, m *state.ModelRecord) error

	GetPolicy(ctx context.Context, key state.Key) (*state.Policy, error)
	PutPolicy(ctx context.Context, p *state.Policy) error

	// AppendReceipt stores a monitoring receipt. Receipts are append-only.
	AppendReceipt(ctx context.Context, r *state.MonitoringReceipt) error
}
