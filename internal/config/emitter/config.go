package emitter_config

import (
	"time"

	pginfra "github.com/tify-app/emitter/internal/repository/postgres"
)

type AppCfg struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogCfg struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type EmitterCfg struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	LookbackSeconds int           `mapstructure:"lookback_seconds"`
	WebhookURL      string        `mapstructure:"webhook_url"`
	WebhookTimeout  time.Duration `mapstructure:"webhook_timeout"`
	BindHost        string        `mapstructure:"bind_host"`
	HTTPPort        int           `mapstructure:"http_port"`
}

func (c EmitterCfg) Lookback() time.Duration {
	return time.Duration(c.LookbackSeconds) * time.Second
}

type APNSCfg struct {
	AuthKeyPath string `mapstructure:"auth_key_path"`
	KeyID       string `mapstructure:"key_id"`
	TeamID      string `mapstructure:"team_id"`
	Topic       string `mapstructure:"topic"`
	// Env selects the APNs host: "sandbox" (default) or "production".
	Env          string `mapstructure:"env"`
	DeviceTokens string `mapstructure:"device_tokens"`
}

func (c APNSCfg) Sandbox() bool { return c.Env != "production" }

// Configured reports whether the token credentials are complete enough to
// build a client. Incomplete credentials degrade push to a no-op.
func (c APNSCfg) Configured() bool {
	return c.AuthKeyPath != "" && c.KeyID != "" && c.TeamID != ""
}

type Config struct {
	App     AppCfg         `mapstructure:"app"`
	DB      pginfra.Config `mapstructure:"db"`
	Emitter EmitterCfg     `mapstructure:"emitter"`
	APNS    APNSCfg        `mapstructure:"apns"`
	Log     LogCfg         `mapstructure:"log"`
}
