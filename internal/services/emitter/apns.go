package emitter

import (
	"context"
	"fmt"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"go.uber.org/zap"

	config "github.com/tify-app/emitter/internal/config/emitter"
	"github.com/tify-app/emitter/internal/domain/event"
)

var _ event.PushSender = (*APNSSender)(nil)

// APNSSender delivers pushes through Apple's provider API using token
// credentials. A nil *APNSSender is a valid no-op channel.
type APNSSender struct {
	client *apns2.Client
	topic  string
	log    *zap.Logger
}

// NewAPNSSender returns nil (push disabled) when the credentials are
// incomplete, mirroring how the webhook channel degrades without a URL.
func NewAPNSSender(cfg config.APNSCfg, log *zap.Logger) (*APNSSender, error) {
	if !cfg.Configured() || cfg.Topic == "" {
		return nil, nil
	}
	authKey, err := token.AuthKeyFromFile(cfg.AuthKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load auth key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Sandbox() {
		client = client.Development()
	} else {
		client = client.Production()
	}
	return &APNSSender{
		client: client,
		topic:  cfg.Topic,
		log:    log.With(zap.String("component", "emitter.apns")),
	}, nil
}

func (s *APNSSender) Send(ctx context.Context, deviceToken, title, body string) error {
	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Payload: payload.NewPayload().
			AlertTitle(title).
			AlertBody(body).
			Sound("default").
			Badge(1),
	}
	res, err := s.client.PushWithContext(ctx, n)
	if err != nil {
		return fmt.Errorf("apns push: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected: %s", res.Reason)
	}
	return nil
}
