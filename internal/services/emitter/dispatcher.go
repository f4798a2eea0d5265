package emitter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tify-app/emitter/internal/domain/event"
)

// WebhookPayload is the body posted for each emergency event.
type WebhookPayload struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// Result reports delivery per channel; the channels are independent failure
// domains and one never blocks the other.
type Result struct {
	WebhookSent bool
	PushSent    bool
}

const pushTitle = "Emergencia"

// Dispatcher fans an event out to the webhook and push channels. Either
// sender may be nil, which degrades that channel to a permanent no-op.
type Dispatcher struct {
	log        *zap.Logger
	webhook    event.WebhookSender
	push       event.PushSender
	recipients event.RecipientRepo
}

func NewDispatcher(log *zap.Logger, webhook event.WebhookSender, push event.PushSender, recipients event.RecipientRepo) *Dispatcher {
	return &Dispatcher{
		log:        log.With(zap.String("component", "emitter.dispatcher")),
		webhook:    webhook,
		push:       push,
		recipients: recipients,
	}
}

// Dispatch delivers ev on both channels, best effort. Failures are logged
// and counted, never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) Result {
	var res Result
	res.WebhookSent = d.sendWebhook(ctx, ev)
	res.PushSent = d.PushEvent(ctx, ev)
	return res
}

func (d *Dispatcher) sendWebhook(ctx context.Context, ev event.Event) bool {
	if d.webhook == nil {
		return false
	}
	payload := WebhookPayload{
		Type:      "emergency",
		ID:        ev.ID,
		ChannelID: ev.ChannelID,
		Content:   ev.Content,
		CreatedAt: ev.CreatedAt,
	}
	if err := d.webhook.Post(ctx, payload); err != nil {
		mErrors.Inc()
		d.log.Warn("webhook delivery failed", zap.String("event_id", ev.ID), zap.Error(err))
		return false
	}
	mWebhookSent.Inc()
	return true
}

// PushEvent resolves the event's recipients and pushes to each of them.
// Zero resolved recipients is a no-op, not a failure.
func (d *Dispatcher) PushEvent(ctx context.Context, ev event.Event) bool {
	if d.push == nil || d.recipients == nil {
		return false
	}
	tokens, err := d.recipients.RecipientTokens(ctx, ev.ChannelID, effectiveAt(ev))
	if err != nil {
		mErrors.Inc()
		d.log.Warn("recipient resolution failed", zap.String("channel_id", ev.ChannelID), zap.Error(err))
		return false
	}
	if len(tokens) == 0 {
		return false
	}
	return d.PushToTokens(ctx, ev.Content, tokens)
}

// PushToTokens sends one notification per token; a failing token does not
// abort the rest. True only when every send succeeded.
func (d *Dispatcher) PushToTokens(ctx context.Context, content string, tokens []string) bool {
	if d.push == nil || len(tokens) == 0 {
		return false
	}
	ok := true
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if err := d.push.Send(ctx, tok, pushTitle, content); err != nil {
			mErrors.Inc()
			d.log.Warn("push delivery failed", zap.Error(err))
			ok = false
			continue
		}
		mPushSent.Inc()
	}
	return ok
}

// effectiveAt picks the instant recipient filtering keys off: the scheduled
// time when present, else creation time. Unparsable timestamps yield nil,
// which includes every subscriber.
func effectiveAt(ev event.Event) *time.Time {
	if ev.EventAt != nil {
		if t := ParseEventAt(*ev.EventAt); t != nil {
			return t
		}
	}
	return ParseEventAt(ev.CreatedAt)
}
