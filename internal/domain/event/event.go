package event

import "time"

// Event is the normalized notification record kept in the recent-events
// buffer and served on the ingress surface. Timestamps are RFC3339 strings
// because the buffer mixes rows from the store with locally injected events.
type Event struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channelId"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
	EventAt   *string `json:"eventAt"`
}

// Message is a raw row from the messages table, before formatting.
type Message struct {
	ID        int64
	ChannelID string
	Content   string
	CreatedAt time.Time
	EventAt   *time.Time
}
