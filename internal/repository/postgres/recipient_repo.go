package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tify-app/emitter/internal/domain/event"
)

var _ event.RecipientRepo = (*RecipientRepoImpl)(nil)

type RecipientRepoImpl struct {
	db *DB
}

func NewRecipientRepo(db *DB) *RecipientRepoImpl { return &RecipientRepoImpl{db: db} }

const (
	qDeviceTokens = `
SELECT handle
FROM tify_user_messaging_settings
WHERE platform = 'PUSH' AND handle IS NOT NULL;
`

	qRecipientTokens = `
SELECT ums.handle
FROM tify_channel_subscriptions cs
JOIN tify_user_messaging_settings ums ON ums.user_id = cs.user_id
WHERE cs.channel_id = $1
  AND cs.is_active = 1
  AND cs.receive_messages = 1
  AND ums.platform = 'PUSH'
  AND ums.is_enabled = 1
  AND ums.handle IS NOT NULL
  AND ($2::timestamptz IS NULL OR cs.subscribed_at <= $2::timestamptz);
`
)

func (r *RecipientRepoImpl) DeviceTokens(ctx context.Context) ([]string, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	return r.scanHandles(ctx, qDeviceTokens)
}

func (r *RecipientRepoImpl) RecipientTokens(ctx context.Context, channelID string, at *time.Time) ([]string, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qRecipientTokens, channelID, at)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		out = append(out, handle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *RecipientRepoImpl) scanHandles(ctx context.Context, q string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query handles: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		out = append(out, handle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
