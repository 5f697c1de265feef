package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventRepository implements event.Repository for PostgreSQL.
type EventRepository struct {
	conn *Connection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

// Append durably persists an event inside a read-committed transaction.
// The event ID is generated here, at write time; the timestamp is assigned
// by the database so that insertion order and created_at order agree on a
// single clock.
func (r *EventRepository) Append(ctx context.Context, e *event.Event) error {
	if e.IsPersisted() {
		return event.ErrAlreadyPersisted
	}

	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return shared.WrapError("event", "Append", shared.ErrInvalidInput, "failed to marshal details", err)
	}

	id := event.ID(uuid.NewString())

	query := `
		INSERT INTO events (id, user_id, event_type, details)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	var createdAt time.Time
	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			id.String(),
			int64(e.UserID),
			e.Type.String(),
			detailsJSON,
		).Scan(&createdAt)
	})
	if err != nil {
		if IsNotNullViolation(err) || IsUniqueViolation(err) {
			return shared.WrapError("event", "Append", shared.ErrPersistence, "constraint violation", err)
		}
		return shared.WrapError("event", "Append", shared.ErrPersistence, "failed to append event", err)
	}

	return e.Stamp(id, createdAt)
}

// ForEachByUser replays all events for a user in insertion order.
// Rows are streamed, not collected: replay over a large history holds one
// row in memory at a time.
func (r *EventRepository) ForEachByUser(ctx context.Context, userID event.UserID, fn func(*event.Event) error) error {
	query := `
		SELECT id, user_id, event_type, details, created_at
		FROM events
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.conn.Query(ctx, query, int64(userID))
	if err != nil {
		return shared.WrapError("event", "Replay", shared.ErrPersistence, "failed to query events", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return shared.WrapError("event", "Replay", shared.ErrPersistence, "event replay aborted", err)
	}

	return nil
}

// LastTypesByUser returns the types of the most recent events, newest first.
func (r *EventRepository) LastTypesByUser(ctx context.Context, userID event.UserID, limit int) ([]event.Type, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT event_type
		FROM events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, int64(userID), limit)
	if err != nil {
		return nil, shared.WrapError("event", "LastTypes", shared.ErrPersistence, "failed to query events", err)
	}
	defer rows.Close()

	types := make([]event.Type, 0, limit)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan event type: %w", err)
		}
		types = append(types, event.Type(t))
	}

	return types, rows.Err()
}

// CountByUser returns the number of committed events for a user.
func (r *EventRepository) CountByUser(ctx context.Context, userID event.UserID) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx,
		`SELECT count(*) FROM events WHERE user_id = $1`,
		int64(userID),
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("event", "Count", shared.ErrPersistence, "failed to count events", err)
	}
	return count, nil
}

// ActiveUserIDs returns users with at least one event since the cutoff.
func (r *EventRepository) ActiveUserIDs(ctx context.Context, since time.Time) ([]event.UserID, error) {
	query := `
		SELECT DISTINCT user_id
		FROM events
		WHERE created_at >= $1
		ORDER BY user_id
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, shared.WrapError("event", "ActiveUsers", shared.ErrPersistence, "failed to query active users", err)
	}
	defer rows.Close()

	var ids []event.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, event.UserID(id))
	}

	return ids, rows.Err()
}

// scanEvent scans a single event row.
func scanEvent(rows pgx.Rows) (*event.Event, error) {
	var (
		id          string
		userID      int64
		eventType   string
		detailsJSON []byte
		createdAt   time.Time
	)

	if err := rows.Scan(&id, &userID, &eventType, &detailsJSON, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	details := event.Details{}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event details: %w", err)
		}
	}

	return &event.Event{
		ID:        event.ID(id),
		UserID:    event.UserID(userID),
		Type:      event.Type(eventType),
		Details:   details,
		CreatedAt: createdAt,
	}, nil
}
