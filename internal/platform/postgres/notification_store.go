package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/priorauth/internal/domain"
	"github.com/medflow/priorauth/internal/platform/logger"
	"github.com/medflow/priorauth/internal/store"
)

// PostgresNotificationStore implements store.NotificationStore using
// PostgreSQL.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL-backed notification
// store.
func NewPostgresNotificationStore(db store.DBTX, log *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresNotificationStore{
		db:     db,
		logger: log.With(slog.String("component", "notification_store")),
	}
}

var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// WithTx returns a store bound to the given transaction.
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{db: tx, logger: s.logger}
}

// Create implements store.NotificationStore.Create.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO notifications (id, type, user_id, request_id, read, metadata, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		n.ID,
		n.Type,
		n.UserID,
		n.RequestID,
		n.Read,
		nullableJSON(n.Metadata),
		n.CreatedAt,
		n.ExpiresAt,
	)
	if err != nil {
		log.Error("failed to create notification",
			"notification_id", n.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ListByUser implements store.NotificationStore.ListByUser.
func (s *PostgresNotificationStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	unreadOnly bool,
	limit int,
) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, type, user_id, request_id, read, metadata, created_at, expires_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = false OR read = false)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, unreadOnly, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, n)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return out, nil
}

// MarkRead implements store.NotificationStore.MarkRead. The ownership check
// is part of the predicate, so marking another user's notification reads as
// not-found rather than leaking its existence.
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET read = true
		WHERE id = $1 AND user_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotificationNotFound, id)
	}

	return nil
}

// DeleteExpired implements store.NotificationStore.DeleteExpired.
func (s *PostgresNotificationStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE expires_at < $1`, before)
	if err != nil {
		log.Error("failed to delete expired notifications", "error", err)
		return 0, MapError(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		requestID uuid.NullUUID
		metadata  []byte
	)

	err := row.Scan(
		&n.ID,
		&n.Type,
		&n.UserID,
		&requestID,
		&n.Read,
		&metadata,
		&n.CreatedAt,
		&n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if requestID.Valid {
		id := requestID.UUID
		n.RequestID = &id
	}

	if len(metadata) > 0 {
		n.Metadata = metadata
	}

	return &n, nil
}
