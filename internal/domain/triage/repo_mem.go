package triage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemRepository is the in-memory store used in development mode (no
// DATABASE_URL) and by the service tests. It honors the same contract as the
// Postgres repository, including idempotent event appends.
type MemRepository struct {
	mu       sync.RWMutex
	sessions map[string][]byte // stored serialized so callers never share state
	events   map[string][]*Event
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		sessions: make(map[string][]byte),
		events:   make(map[string][]*Event),
	}
}

func (r *MemRepository) Load(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *MemRepository) Save(_ context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = raw
	return nil
}

func (r *MemRepository) AppendEvent(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.events[e.SessionID] {
		if existing.TurnIndex == e.TurnIndex && existing.EnvelopeType == e.EnvelopeType {
			return nil
		}
	}
	stored := *e
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.events[e.SessionID] = append(r.events[e.SessionID], &stored)
	return nil
}

func (r *MemRepository) ListEvents(_ context.Context, sessionID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Event, len(r.events[sessionID]))
	copy(out, r.events[sessionID])
	return out, nil
}

func (r *MemRepository) CreateID() string { return uuid.NewString() }
