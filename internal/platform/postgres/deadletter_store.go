package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/store"
)

// PostgresDeadLetterStore implements orchestrator.DeadLetterStore using
// PostgreSQL.
type PostgresDeadLetterStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeadLetterStore creates a new PostgreSQL-backed dead-letter
// store.
func NewPostgresDeadLetterStore(db store.DBTX, log *slog.Logger) *PostgresDeadLetterStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresDeadLetterStore{
		db:     db,
		logger: log.With(slog.String("component", "dead_letter_store")),
	}
}

var _ orchestrator.DeadLetterStore = (*PostgresDeadLetterStore)(nil)

// Save implements orchestrator.DeadLetterStore.Save. The upsert makes it
// idempotent per task id: redelivery after a worker crash overwrites the
// earlier record with the latest failure instead of erroring.
func (s *PostgresDeadLetterStore) Save(ctx context.Context, dl *orchestrator.DeadLetter) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO dead_letters (task_id, name, queue, payload, attempts, reason, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id) DO UPDATE
		SET attempts = EXCLUDED.attempts,
		    reason = EXCLUDED.reason,
		    failed_at = EXCLUDED.failed_at
	`

	// bytea, not jsonb: an undecodable message's payload is arbitrary bytes.
	// Coalesce nil so a payload-less task satisfies the NOT NULL column.
	payload := []byte(dl.Payload)
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx, query,
		dl.TaskID,
		dl.Name,
		dl.Queue,
		payload,
		dl.Attempts,
		dl.Reason,
		dl.FailedAt,
	)
	if err != nil {
		log.Error("failed to save dead letter",
			"task_id", dl.TaskID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByTaskID implements orchestrator.DeadLetterStore.GetByTaskID.
func (s *PostgresDeadLetterStore) GetByTaskID(
	ctx context.Context,
	taskID uuid.UUID,
) (*orchestrator.DeadLetter, error) {
	query := `
		SELECT task_id, name, queue, payload, attempts, reason, failed_at
		FROM dead_letters
		WHERE task_id = $1
	`

	dl, err := scanDeadLetter(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrDeadLetterNotFound, taskID)
		}
		return nil, MapError(err)
	}

	return dl, nil
}

// List implements orchestrator.DeadLetterStore.List.
func (s *PostgresDeadLetterStore) List(ctx context.Context, limit int) ([]*orchestrator.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT task_id, name, queue, payload, attempts, reason, failed_at
		FROM dead_letters
		ORDER BY failed_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*orchestrator.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, dl)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return out, nil
}

func scanDeadLetter(row rowScanner) (*orchestrator.DeadLetter, error) {
	var (
		dl      orchestrator.DeadLetter
		payload []byte
	)

	err := row.Scan(
		&dl.TaskID,
		&dl.Name,
		&dl.Queue,
		&payload,
		&dl.Attempts,
		&dl.Reason,
		&dl.FailedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		dl.Payload = payload
	}

	return &dl, nil
}
