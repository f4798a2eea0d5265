package emitter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tify-app/emitter/internal/domain/event"
)

const contentPrefix = "\U0001F44B " // 👋

// Calendar names shipped to subscribers; the app is Spanish-only.
var (
	weekdays = [7]string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo"}
	months   = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}
)

// FormatEventDate renders t as "<weekday> <day> <month>" (Monday-first).
func FormatEventDate(t time.Time) string {
	wd := (int(t.Weekday()) + 6) % 7
	return fmt.Sprintf("%s %d %s", weekdays[wd], t.Day(), months[int(t.Month())-1])
}

// BuildContent prefixes base and, when eventAt is set, appends the formatted
// calendar date.
func BuildContent(base string, eventAt *time.Time) string {
	if eventAt == nil {
		return contentPrefix + base
	}
	return contentPrefix + base + " · " + FormatEventDate(*eventAt)
}

// ParseEventAt parses an RFC3339 timestamp; an empty or unparsable value
// yields nil, which drops the date suffix rather than failing the event.
func ParseEventAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// NewEvent normalizes a store row into the buffered representation.
func NewEvent(m *event.Message) event.Event {
	ev := event.Event{
		ID:        strconv.FormatInt(m.ID, 10),
		ChannelID: m.ChannelID,
		Content:   BuildContent(m.Content, m.EventAt),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.EventAt != nil {
		s := m.EventAt.UTC().Format(time.RFC3339)
		ev.EventAt = &s
	}
	return ev
}

// LocalID derives a synthetic id for events injected without one.
func LocalID(now time.Time) string {
	return "local_" + strconv.FormatInt(now.UnixMilli(), 10)
}
