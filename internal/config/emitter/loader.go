package emitter_config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("app.name", "emitter")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "tify")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 2)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.max_conn_idle_time", "10m")
	v.SetDefault("db.health_check_period", "30s")
	v.SetDefault("db.query_timeout", "2s")

	v.SetDefault("emitter.poll_interval", "15s")
	v.SetDefault("emitter.lookback_seconds", 300)
	v.SetDefault("emitter.webhook_url", "")
	v.SetDefault("emitter.webhook_timeout", "5s")
	v.SetDefault("emitter.bind_host", "0.0.0.0")
	v.SetDefault("emitter.http_port", 8766)

	v.SetDefault("apns.auth_key_path", "")
	v.SetDefault("apns.key_id", "")
	v.SetDefault("apns.team_id", "")
	v.SetDefault("apns.topic", "")
	v.SetDefault("apns.env", "sandbox")
	v.SetDefault("apns.device_tokens", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The backend's .env spells the connection string DATABASE_URL.
	_ = v.BindEnv("db.dsn", "DB_DSN", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN != "" {
		if err := decomposeDSN(&cfg); err != nil {
			return nil, fmt.Errorf("db dsn: %w", err)
		}
	}
	return &cfg, nil
}

// decomposeDSN splits a connection string into the discrete DB fields,
// keeping any field the DSN does not carry.
func decomposeDSN(cfg *Config) error {
	u, err := url.Parse(cfg.DB.DSN)
	if err != nil {
		return err
	}
	if h := u.Hostname(); h != "" {
		cfg.DB.Host = h
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("port %q: %w", p, err)
		}
		cfg.DB.Port = port
	}
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			cfg.DB.User = name
		}
		if pw, ok := u.User.Password(); ok && pw != "" {
			cfg.DB.Password = pw
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		cfg.DB.Name = db
	}
	return nil
}

// DeviceTokenList splits the configured static token list.
func (c *Config) DeviceTokenList() []string {
	var out []string
	for _, t := range strings.Split(c.APNS.DeviceTokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
