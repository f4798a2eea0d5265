package emitter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registered once at package init so runners and dispatchers can be built
// freely in tests.
var (
	mRowsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emitter_messages_fetched_total", Help: "Emergency rows fetched from DB",
	})
	mWebhookSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emitter_webhook_sent_total", Help: "Webhook deliveries with 2xx response",
	})
	mPushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emitter_push_sent_total", Help: "Push notifications accepted by APNs",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emitter_errors_total", Help: "Errors in poll loop and delivery",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "emitter_poll_duration_seconds", Help: "Poll iteration duration",
		Buckets: prometheus.DefBuckets,
	})
)
