package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/store"
)

// PostgresRequestStore implements store.RequestStore using PostgreSQL.
type PostgresRequestStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRequestStore creates a new PostgreSQL-backed request store.
// The caller owns the database handle; pass a transaction via WithTx when
// the operation must join one.
func NewPostgresRequestStore(db store.DBTX, log *slog.Logger) *PostgresRequestStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresRequestStore{
		db:     db,
		logger: log.With(slog.String("component", "request_store")),
	}
}

var _ store.RequestStore = (*PostgresRequestStore)(nil)

// WithTx returns a store bound to the given transaction.
func (s *PostgresRequestStore) WithTx(tx *sql.Tx) store.RequestStore {
	return &PostgresRequestStore{db: tx, logger: s.logger}
}

// Create implements store.RequestStore.Create.
func (s *PostgresRequestStore) Create(ctx context.Context, req *domain.AuthorizationRequest) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO auth_requests (id, status, provider_id, reviewer_id, decision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.Status,
		req.ProviderID,
		req.ReviewerID,
		nullableJSON(req.Decision),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create authorization request",
			"request_id", req.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID implements store.RequestStore.GetByID.
func (s *PostgresRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuthorizationRequest, error) {
	query := `
		SELECT id, status, provider_id, reviewer_id, decision, created_at, updated_at
		FROM auth_requests
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrRequestNotFound, id)
		}
		return nil, MapError(err)
	}

	return req, nil
}

// Update implements store.RequestStore.Update. The write is conditioned on
// the stored status still matching expectedStatus; zero rows updated means
// either the row is gone or another writer moved the status first.
func (s *PostgresRequestStore) Update(
	ctx context.Context,
	req *domain.AuthorizationRequest,
	expectedStatus domain.RequestStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE auth_requests
		SET status = $1, reviewer_id = $2, decision = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		req.Status,
		req.ReviewerID,
		nullableJSON(req.Decision),
		req.UpdatedAt,
		req.ID,
		expectedStatus,
	)
	if err != nil {
		log.Error("failed to update authorization request",
			"request_id", req.ID,
			"error", err)
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		// Distinguish a vanished row from a lost optimistic race.
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM auth_requests WHERE id = $1)`, req.ID).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}

		if !exists {
			return fmt.Errorf("%w: %s", store.ErrRequestNotFound, req.ID)
		}

		log.Warn("optimistic status check failed",
			"request_id", req.ID,
			"expected_status", expectedStatus)

		return fmt.Errorf("%w: request %s no longer in status %s",
			store.ErrConcurrentModification, req.ID, expectedStatus)
	}

	return nil
}

// ListStalePendingInfo implements store.RequestStore.ListStalePendingInfo.
func (s *PostgresRequestStore) ListStalePendingInfo(
	ctx context.Context,
	olderThan time.Duration,
	limit int,
) ([]*domain.AuthorizationRequest, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, status, provider_id, reviewer_id, decision, created_at, updated_at
		FROM auth_requests
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := s.db.QueryContext(ctx, query, domain.StatusPendingInfo, cutoff, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.AuthorizationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, req)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return out, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.AuthorizationRequest, error) {
	var (
		req        domain.AuthorizationRequest
		reviewerID uuid.NullUUID
		decision   []byte
	)

	err := row.Scan(
		&req.ID,
		&req.Status,
		&req.ProviderID,
		&reviewerID,
		&decision,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reviewerID.Valid {
		id := reviewerID.UUID
		req.ReviewerID = &id
	}

	if len(decision) > 0 {
		req.Decision = decision
	}

	return &req, nil
}

// nullableJSON converts an empty payload to SQL NULL instead of an empty
// jsonb document.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	return raw
}
