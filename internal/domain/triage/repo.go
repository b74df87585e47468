package triage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Repository is the only persistence contract the core imposes. Reads must
// observe prior writes of the same session; events of one session are
// totally ordered; AppendEvent is idempotent by (session, turn, type).
type Repository interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, sessionID string) ([]*Event, error)
	CreateID() string
}
