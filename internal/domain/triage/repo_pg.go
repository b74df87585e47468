package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed session repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const sessionCols = `id, locale, turn_index, created_at, updated_at, profile,
	known_symptoms, denied_symptoms, asked_canonicals, answers, parsed_answers,
	asked_context_ids, last_context_id, last_question, envelope_type, stop_reason, debug`

func (r *repoPG) Load(ctx context.Context, id string) (*Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM triage_session WHERE id = $1`, id)

	var (
		sess                                  Session
		profile, answers, parsed, lastQ, debug []byte
	)
	err := row.Scan(&sess.ID, &sess.Locale, &sess.TurnIndex, &sess.CreatedAt, &sess.UpdatedAt,
		&profile, &sess.KnownSymptoms, &sess.DeniedSymptoms, &sess.AskedCanonicals,
		&answers, &parsed, &sess.AskedContextIDs, &sess.LastContextID,
		&lastQ, &sess.LastEnvelopeType, &sess.StopReason, &debug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := json.Unmarshal(profile, &sess.Profile); err != nil {
		return nil, fmt.Errorf("load session profile: %w", err)
	}
	if err := json.Unmarshal(answers, &sess.Answers); err != nil {
		return nil, fmt.Errorf("load session answers: %w", err)
	}
	if err := json.Unmarshal(parsed, &sess.ParsedAnswers); err != nil {
		return nil, fmt.Errorf("load session parsed answers: %w", err)
	}
	if len(lastQ) > 0 {
		if err := json.Unmarshal(lastQ, &sess.LastQuestion); err != nil {
			return nil, fmt.Errorf("load session last question: %w", err)
		}
	}
	if len(debug) > 0 {
		if err := json.Unmarshal(debug, &sess.Debug); err != nil {
			return nil, fmt.Errorf("load session debug: %w", err)
		}
	}
	return &sess, nil
}

func (r *repoPG) Save(ctx context.Context, sess *Session) error {
	profile, err := json.Marshal(sess.Profile)
	if err != nil {
		return err
	}
	answers, err := json.Marshal(sess.Answers)
	if err != nil {
		return err
	}
	parsed, err := json.Marshal(sess.ParsedAnswers)
	if err != nil {
		return err
	}
	var lastQ []byte
	if sess.LastQuestion != nil {
		if lastQ, err = json.Marshal(sess.LastQuestion); err != nil {
			return err
		}
	}
	var debug []byte
	if sess.Debug != nil {
		if debug, err = json.Marshal(sess.Debug); err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO triage_session (`+sessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			turn_index=$3, updated_at=$5, profile=$6,
			known_symptoms=$7, denied_symptoms=$8, asked_canonicals=$9,
			answers=$10, parsed_answers=$11, asked_context_ids=$12,
			last_context_id=$13, last_question=$14, envelope_type=$15,
			stop_reason=$16, debug=$17`,
		sess.ID, sess.Locale, sess.TurnIndex, sess.CreatedAt, sess.UpdatedAt, profile,
		sess.KnownSymptoms, sess.DeniedSymptoms, sess.AskedCanonicals,
		answers, parsed, sess.AskedContextIDs, sess.LastContextID,
		lastQ, sess.LastEnvelopeType, sess.StopReason, debug)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *repoPG) AppendEvent(ctx context.Context, e *Event) error {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	// The (session_id, turn_index, envelope_type) unique index makes retried
	// appends no-ops.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO triage_event (id, session_id, turn_index, envelope_type, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, turn_index, envelope_type) DO NOTHING`,
		id, e.SessionID, e.TurnIndex, e.EnvelopeType, e.Payload, createdAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *repoPG) ListEvents(ctx context.Context, sessionID string) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, turn_index, envelope_type, payload, created_at
		FROM triage_event WHERE session_id = $1 ORDER BY turn_index, created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnIndex, &e.EnvelopeType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *repoPG) CreateID() string { return uuid.NewString() }
