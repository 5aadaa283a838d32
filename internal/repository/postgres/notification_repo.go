package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/Healthwatch/internal/domain/notification"
	"github.com/google/uuid"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (id, type, severity, source, title, message, is_active, dismissible, metadata)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8)
RETURNING created_at, updated_at;
`
	qNotifDeactivate = `
UPDATE notifications
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1 AND is_active;
`
	qNotifActive = `
SELECT id, type, severity, source, title, message, is_active, dismissible, metadata, created_at, updated_at
FROM notifications
WHERE is_active AND type = $1
ORDER BY created_at;
`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := r.db.Pool.QueryRow(ctx, qNotifInsert,
		n.ID,
		n.Type,
		string(n.Severity),
		n.Source,
		n.Title,
		n.Message,
		n.Dismissible,
		meta,
	).Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	n.IsActive = true
	return nil
}

func (r *NotificationRepoImpl) Deactivate(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.Pool.Exec(ctx, qNotifDeactivate, id)
	if err != nil {
		return fmt.Errorf("deactivate notification: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepoImpl) ListActive(ctx context.Context, typ string) ([]*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qNotifActive, typ)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var (
			n        notification.Notification
			severity string
			meta     []byte
		)
		if err := rows.Scan(&n.ID, &n.Type, &severity, &n.Source, &n.Title, &n.Message,
			&n.IsActive, &n.Dismissible, &meta, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Severity = notification.Severity(severity)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
