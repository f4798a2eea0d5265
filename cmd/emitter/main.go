package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/tify-app/emitter/internal/config/emitter"
	"github.com/tify-app/emitter/internal/domain/event"
	"github.com/tify-app/emitter/internal/eventstore"
	"github.com/tify-app/emitter/internal/obs"
	pg "github.com/tify-app/emitter/internal/repository/postgres"
	"github.com/tify-app/emitter/internal/server"
	"github.com/tify-app/emitter/internal/services/emitter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("EMITTER_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
		Ver:    cfg.App.Version,
	})
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting emitter",
		zap.String("db_host", cfg.DB.Host),
		zap.String("db_name", cfg.DB.Name),
		zap.Duration("poll_interval", cfg.Emitter.PollInterval),
		zap.Duration("lookback", cfg.Emitter.Lookback()),
	)

	// db: the poller has no function without it, so a failed connect is fatal
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	messages := pg.NewMessageRepo(db)
	recipients := pg.NewRecipientRepo(db)

	// delivery channels, each degrading to a no-op when unconfigured
	var webhook *emitter.WebhookClient
	if cfg.Emitter.WebhookURL != "" {
		webhook = emitter.NewWebhookClient(cfg.Emitter.WebhookURL, cfg.Emitter.WebhookTimeout)
	} else {
		l.Info("webhook disabled: no URL configured")
	}
	push, err := emitter.NewAPNSSender(cfg.APNS, l)
	if err != nil {
		l.Fatal("apns init", zap.Error(err))
	}
	if push == nil {
		l.Info("push disabled: APNs credentials incomplete")
	}

	// device-token warm load: registered handles replace the static list
	deviceTokens := cfg.DeviceTokenList()
	if loaded, err := recipients.DeviceTokens(ctx); err != nil {
		l.Warn("device token warm load failed", zap.Error(err))
	} else if len(loaded) > 0 {
		deviceTokens = loaded
	}
	l.Info("device tokens loaded", zap.Int("count", len(deviceTokens)))

	store := eventstore.New(eventstore.DefaultCap)
	disp := emitter.NewDispatcher(l, senderOrNil(webhook), pushOrNil(push), recipients)
	runner := emitter.NewRunner(l, messages, store, disp, cfg.Emitter.PollInterval, cfg.Emitter.Lookback())

	srv := server.New(l, store, disp, deviceTokens, func(hctx context.Context) error {
		return db.Pool.Ping(hctx)
	})
	ln, err := server.Listen(l, cfg.Emitter.BindHost, cfg.Emitter.HTTPPort)
	if err != nil {
		l.Fatal("http bind", zap.Error(err))
	}
	httpSrv := server.NewHTTPServer(srv.Handler())
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server error", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("emitter started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	l.Info("bye")
}

// senderOrNil and pushOrNil keep an unconfigured channel as a nil interface
// instead of a typed-nil pointer the dispatcher would try to call.
func senderOrNil(w *emitter.WebhookClient) event.WebhookSender {
	if w == nil {
		return nil
	}
	return w
}

func pushOrNil(p *emitter.APNSSender) event.PushSender {
	if p == nil {
		return nil
	}
	return p
}
