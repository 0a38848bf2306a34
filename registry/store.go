// Package registry is the authoritative mapping from worker identifier to
// its registration. The mapping lives behind the narrow Store interface so a
// distributed store can replace the in-memory one without touching scoring
// or validation.
package registry

import (
	"context"
	"errors"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Sentinel errors for the registry package.
var (
	ErrNotFound          = errors.New("registry: worker not found")
	ErrInvalidDefinition = errors.New("registry: invalid definition")
	ErrInvalidStatus     = errors.New("registry: invalid status")
)

// Store is a concurrency-safe key/value store of registrations keyed by
// worker ID. Implementations must hand out copies: mutating a returned
// registration never changes stored state.
type Store interface {
	// Get returns the registration or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (*subagent.Registration, error)

	// Put inserts or replaces the registration under reg.ID().
	Put(ctx context.Context, reg *subagent.Registration) error

	// Delete removes the registration and reports whether one existed.
	Delete(ctx context.Context, id string) (bool, error)

	// List returns all registrations, oldest registration first.
	List(ctx context.Context) ([]*subagent.Registration, error)

	// Update applies fn to the stored registration atomically with respect
	// to every other Store call and returns the updated copy. If fn returns
	// an error nothing is written.
	Update(ctx context.Context, id string, fn func(*subagent.Registration) error) (*subagent.Registration, error)
}
