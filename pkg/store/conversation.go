package store

import (
	"context"
	"fmt"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
)

// SaveTurns appends the given conversation turns to the log of a pipeline
// run. Turn order is preserved through an explicit position column because
// correction rounds append in several batches.
func (s *PGStore) SaveTurns(ctx context.Context, runID string, turns []ai.ChatMessage) error {
	if len(turns) == 0 {
		return nil
	}

	trx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin conversation transaction: %w", err)
	}
	defer trx.Rollback(ctx)

	var next int
	err = trx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0)
		FROM conversation_log
		WHERE run_id = $1
	`, runID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read conversation position: %w", err)
	}

	for i, turn := range turns {
		_, err := trx.Exec(ctx, `
			INSERT INTO conversation_log (run_id, position, role, message)
			VALUES ($1, $2, $3, $4)
		`, runID, next+i, turn.Role, util.SanitizePostgresText(turn.Message))
		if err != nil {
			return fmt.Errorf("failed to save conversation turn: %w", err)
		}
	}

	if err := trx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit conversation turns: %w", err)
	}
	return nil
}

// Turns returns the full conversation of a pipeline run in order.
func (s *PGStore) Turns(ctx context.Context, runID string) ([]ai.ChatMessage, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT role, message
		FROM conversation_log
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation log: %w", err)
	}
	defer rows.Close()

	turns := make([]ai.ChatMessage, 0)
	for rows.Next() {
		var t ai.ChatMessage
		if err := rows.Scan(&t.Role, &t.Message); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}
	return turns, nil
}
