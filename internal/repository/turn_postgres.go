package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/futig/manual-assistant/internal/entity"
)

// TurnRepository is the durable conversation turn log.
type TurnRepository interface {
	AppendTurn(ctx context.Context, sessionID string, turn entity.Turn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]entity.Turn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

var _ TurnRepository = &TurnPostgres{}

const (
	insertTurnQuery = `
INSERT INTO conversation_turns (session_id, user_input, response, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)`

	// The newest turns are selected, then returned oldest first.
	listTurnsQuery = `
SELECT user_input, response, metadata, created_at
FROM (
    SELECT id, user_input, response, metadata, created_at
    FROM conversation_turns
    WHERE session_id = $1
    ORDER BY id DESC
    LIMIT $2
) recent
ORDER BY id ASC`

	deleteSessionTurnsQuery = `DELETE FROM conversation_turns WHERE session_id = $1`
)

// TurnPostgres implements TurnRepository using PostgreSQL
type TurnPostgres struct {
	db *pgxpool.Pool
}

func NewTurnPostgres(db *pgxpool.Pool) *TurnPostgres {
	return &TurnPostgres{db: db}
}

func (r *TurnPostgres) AppendTurn(ctx context.Context, sessionID string, turn entity.Turn) error {
	meta, err := json.Marshal(turn.Metadata)
	if err != nil {
		return fmt.Errorf("encode turn metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, insertTurnQuery,
		sessionID,
		turn.UserInput,
		turn.Response,
		meta,
		pgtype.Timestamptz{Time: turn.Timestamp, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}

	return nil
}

// ListTurns returns up to limit most recent turns of a session, oldest first.
func (r *TurnPostgres) ListTurns(ctx context.Context, sessionID string, limit int) ([]entity.Turn, error) {
	rows, err := r.db.Query(ctx, listTurnsQuery, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}

	turns, err := pgx.CollectRows(rows, scanTurn)
	if err != nil {
		return nil, fmt.Errorf("scan conversation turns: %w", err)
	}

	return turns, nil
}

func (r *TurnPostgres) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.Exec(ctx, deleteSessionTurnsQuery, sessionID); err != nil {
		return fmt.Errorf("delete conversation turns: %w", err)
	}

	return nil
}

func scanTurn(row pgx.CollectableRow) (entity.Turn, error) {
	var (
		turn      entity.Turn
		meta      []byte
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&turn.UserInput, &turn.Response, &meta, &createdAt); err != nil {
		return entity.Turn{}, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &turn.Metadata); err != nil {
			return entity.Turn{}, fmt.Errorf("decode turn metadata: %w", err)
		}
	}
	turn.Timestamp = createdAt.Time

	return turn, nil
}
