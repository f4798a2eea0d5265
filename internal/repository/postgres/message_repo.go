package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tify-app/emitter/internal/domain/event"
)

var _ event.MessageRepo = (*MessageRepoImpl)(nil)

type MessageRepoImpl struct {
	db *DB
}

func NewMessageRepo(db *DB) *MessageRepoImpl { return &MessageRepoImpl{db: db} }

const qFetchSince = `
SELECT id, channel_id, content, created_at, event_at
FROM tify_messages
WHERE created_at > $1
ORDER BY created_at ASC;
`

func (r *MessageRepoImpl) FetchSince(ctx context.Context, since time.Time) ([]*event.Message, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qFetchSince, since)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []*event.Message
	for rows.Next() {
		var m event.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Content, &m.CreatedAt, &m.EventAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		// Normalize to instants; a timestamp column without zone scans in
		// the store's reference zone and must compare as UTC.
		m.CreatedAt = m.CreatedAt.UTC()
		if m.EventAt != nil {
			utc := m.EventAt.UTC()
			m.EventAt = &utc
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
