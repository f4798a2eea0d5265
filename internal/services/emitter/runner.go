package emitter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tify-app/emitter/internal/domain/event"
)

// Runner is the watermark poller: a single sequential loop that re-scans the
// messages table from the last observed created_at every interval. Rows may
// be observed twice across iterations (the watermark only moves forward on
// data, never on wall clock), so downstream upserts must be idempotent.
type Runner struct {
	log      *zap.Logger
	messages event.MessageRepo
	store    event.Store
	disp     *Dispatcher
	interval time.Duration

	lastChecked time.Time
	now         func() time.Time
}

func NewRunner(log *zap.Logger, messages event.MessageRepo, store event.Store, disp *Dispatcher, interval, lookback time.Duration) *Runner {
	r := &Runner{
		log:      log.With(zap.String("component", "emitter.runner")),
		messages: messages,
		store:    store,
		disp:     disp,
		interval: interval,
		now:      time.Now,
	}
	r.lastChecked = r.now().UTC().Add(-lookback)
	return r
}

// Watermark returns the lower bound (exclusive) of the next poll query.
func (r *Runner) Watermark() time.Time { return r.lastChecked }

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	rows, err := r.messages.FetchSince(ctx, r.lastChecked)
	if err != nil {
		mErrors.Inc()
		r.log.Warn("poll failed", zap.Time("since", r.lastChecked), zap.Error(err))
		mLoopDur.Observe(time.Since(start).Seconds())
		return
	}
	if len(rows) > 0 {
		mRowsFetched.Add(float64(len(rows)))

		latest := r.lastChecked
		for _, row := range rows {
			ev := NewEvent(row)
			r.store.Upsert(ev)
			res := r.disp.Dispatch(ctx, ev)
			r.log.Debug("event dispatched",
				zap.String("event_id", ev.ID),
				zap.String("channel_id", ev.ChannelID),
				zap.Bool("webhook_sent", res.WebhookSent),
				zap.Bool("push_sent", res.PushSent),
			)
			if created := row.CreatedAt.UTC(); created.After(latest) {
				latest = created
			}
		}
		r.lastChecked = latest
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}
