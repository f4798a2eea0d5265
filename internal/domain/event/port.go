package event

import (
	"context"
	"time"
)

// MessageRepo reads emergency messages from the relational store.
type MessageRepo interface {
	// FetchSince returns messages with created_at strictly after since,
	// ordered ascending by created_at.
	FetchSince(ctx context.Context, since time.Time) ([]*Message, error)
}

// RecipientRepo resolves push recipients for a channel.
type RecipientRepo interface {
	// RecipientTokens returns the device handles of subscribers of the
	// channel. When at is non-nil, only subscriptions that started at or
	// before that instant qualify.
	RecipientTokens(ctx context.Context, channelID string, at *time.Time) ([]string, error)
	// DeviceTokens returns every registered push handle (startup warm load).
	DeviceTokens(ctx context.Context) ([]string, error)
}

// PushSender delivers one platform push notification.
type PushSender interface {
	Send(ctx context.Context, token, title, body string) error
}

// WebhookSender posts a JSON payload to the configured webhook target.
type WebhookSender interface {
	Post(ctx context.Context, payload any) error
}

// Store is the bounded recent-events buffer.
type Store interface {
	Upsert(ev Event)
	Snapshot() []Event
}
