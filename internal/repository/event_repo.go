package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evetabi/bookie/internal/domain"
	"github.com/jmoiron/sqlx"
)

// EventRow is the journal record of one virtual event. Payload holds the
// engine's event struct as JSON, so each event type keeps its own shape
// without a table per type.
type EventRow struct {
	ID          int64           `db:"id" json:"id"`
	BlockHeight uint64          `db:"block_height" json:"block_height"`
	Seq         int             `db:"seq" json:"seq"`
	EventType   string          `db:"event_type" json:"event_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// EventRepository journals the virtual events each block emits: fills,
// cancellations, stake adjustments, and settlements.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBlockEvents journals every virtual event of one block inside an
// existing transaction, preserving emission order via seq.
func (r *EventRepository) InsertBlockEvents(ctx context.Context, tx *sqlx.Tx, height uint64, events []domain.VirtualEvent) error {
	query := `
		INSERT INTO chain_events (block_height, seq, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, now())`
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("event_repo.InsertBlockEvents: marshal %s: %w", ev.Type(), err)
		}
		if _, err := tx.ExecContext(ctx, query, height, i, string(ev.Type()), payload); err != nil {
			return fmt.Errorf("event_repo.InsertBlockEvents: %w", err)
		}
	}
	return nil
}

// GetByBlock returns all events of one block in emission order.
func (r *EventRepository) GetByBlock(ctx context.Context, height uint64) ([]*EventRow, error) {
	var rows []*EventRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM chain_events WHERE block_height = $1 ORDER BY seq ASC`, height)
	if err != nil {
		return nil, fmt.Errorf("event_repo.GetByBlock: %w", err)
	}
	return rows, nil
}

// GetByBettor returns a bettor's event history, newest first, paginated.
// Every event payload carries a "bettor" field, so the filter is uniform
// across event types.
func (r *EventRepository) GetByBettor(ctx context.Context, bettor domain.AccountID, limit, offset int) ([]*EventRow, error) {
	var rows []*EventRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM chain_events
		 WHERE (payload->>'bettor')::bigint = $1
		 ORDER BY block_height DESC, seq DESC
		 LIMIT $2 OFFSET $3`,
		bettor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("event_repo.GetByBettor: %w", err)
	}
	return rows, nil
}

// GetByType returns the most recent events of one type, paginated.
func (r *EventRepository) GetByType(ctx context.Context, eventType domain.VirtualEventType, limit, offset int) ([]*EventRow, error) {
	var rows []*EventRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM chain_events
		 WHERE event_type = $1
		 ORDER BY block_height DESC, seq DESC
		 LIMIT $2 OFFSET $3`,
		string(eventType), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("event_repo.GetByType: %w", err)
	}
	return rows, nil
}
