// Package toggle flips the presence of a unique (actor, target) relation such
// as a like or a subscription.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/repositories"
)

const defaultMaxAttempts = 3

// Key identifies a relation. Kind scopes Target (a like target kind, or "channel").
type Key struct {
	Actor  string
	Kind   string
	Target string
}

// Relation is a stored (actor, target) edge.
type Relation struct {
	ID        string
	Actor     string
	Kind      string
	Target    string
	CreatedAt time.Time
}

// Store persists relations. Create must report repositories.ErrConflict when the
// key already exists; Find and Delete report repositories.ErrNotFound when it does not.
type Store interface {
	Find(ctx context.Context, key Key) (Relation, error)
	Create(ctx context.Context, rel Relation) error
	Delete(ctx context.Context, id string) error
}

// Result is the state after a toggle. Record is nil when the relation was removed.
type Result struct {
	Active bool
	Record *Relation
}

// Observer is notified of every completed toggle.
type Observer func(kind string, active bool)

// Engine toggles relations in a Store.
type Engine struct {
	store       Store
	now         func() time.Time
	newID       func() string
	maxAttempts int
	observe     Observer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver registers a callback for completed toggles.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observe = o }
}

// NewEngine constructs an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	if store == nil {
		panic("toggle: store must not be nil")
	}
	e := &Engine{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Toggle deletes the relation if present and creates it otherwise. Losing a race
// to a concurrent toggle (a conflict on create, or a vanished row on delete)
// restarts the toggle from a fresh read.
func (e *Engine) Toggle(ctx context.Context, key Key) (Result, error) {
	if key.Actor == "" || key.Target == "" {
		return Result{}, apperr.Validation("actor and target are required")
	}

	logger := logging.FromContext(ctx)
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		res, err := e.attempt(ctx, key)
		if err == nil {
			if e.observe != nil {
				e.observe(key.Kind, res.Active)
			}
			return res, nil
		}
		if !errors.Is(err, errRaced) {
			return Result{}, err
		}
		logger.Warn("toggle raced, retrying", "kind", key.Kind, "target", key.Target, "attempt", attempt)
	}
	return Result{}, apperr.Conflict("toggle kept conflicting with concurrent updates")
}

var errRaced = errors.New("toggle raced")

func (e *Engine) attempt(ctx context.Context, key Key) (Result, error) {
	existing, err := e.store.Find(ctx, key)
	switch {
	case err == nil:
		if err := e.store.Delete(ctx, existing.ID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return Result{}, errRaced
			}
			return Result{}, fmt.Errorf("delete relation: %w", err)
		}
		return Result{Active: false}, nil
	case errors.Is(err, repositories.ErrNotFound):
		rel := Relation{
			ID:        e.newID(),
			Actor:     key.Actor,
			Kind:      key.Kind,
			Target:    key.Target,
			CreatedAt: e.now(),
		}
		if err := e.store.Create(ctx, rel); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				return Result{}, errRaced
			}
			return Result{}, fmt.Errorf("create relation: %w", err)
		}
		return Result{Active: true, Record: &rel}, nil
	default:
		return Result{}, fmt.Errorf("find relation: %w", err)
	}
}
