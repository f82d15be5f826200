package rule

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("rule not found")
	ErrReadOnly = errors.New("rule store is read-only")
	ErrInvalid  = errors.New("invalid rule")
)

// Store is the read contract the decision pipeline depends on. Every call must
// reflect the current state of the store; implementations must not cache.
type Store interface {
	ListEnabled(ctx context.Context) ([]Rule, error)
}

// Repository adds the management operations used by the HTTP API.
type Repository interface {
	Store
	List(ctx context.Context) ([]Rule, error)
	Get(ctx context.Context, id int64) (*Rule, error)
	Create(ctx context.Context, r Rule) (*Rule, error)
	Update(ctx context.Context, id int64, r Rule) (*Rule, error)
	Delete(ctx context.Context, id int64) error
	Toggle(ctx context.Context, id int64) (*Rule, error)
}
