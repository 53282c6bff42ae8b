package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type SendRate struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Admin struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type Config struct {
	Mode            string        `mapstructure:"mode"`
	Port            int           `mapstructure:"port"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	Secret          string        `mapstructure:"secret"`
	LogLevel        string        `mapstructure:"log_level"`
	RoomTTL         time.Duration `mapstructure:"room_ttl"`
	MailboxLimit    int           `mapstructure:"mailbox_limit"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
	SendRate        SendRate      `mapstructure:"send_rate"`
	Admin           Admin         `mapstructure:"admin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultSecret signs session cookies when nothing else is configured.
const DefaultSecret = "rendezvous-dev-secret"

var ErrAdminTokenMissing = errors.New("admin.token is required when admin.enabled is set")

// InsecureDefaults reports settings unsafe for a release deployment.
func (c *Config) InsecureDefaults() []string {
	var out []string
	if c.Mode == "release" && c.Secret == DefaultSecret {
		out = append(out, "secret")
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("secret", DefaultSecret)
	v.SetDefault("log_level", "info")
	v.SetDefault("room_ttl", "30m")
	v.SetDefault("mailbox_limit", 200)
	v.SetDefault("reap_interval", "1m")
	v.SetDefault("send_rate.limit", 0)
	v.SetDefault("send_rate.interval", "1s")
	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.token", "")
	v.SetDefault("shutdown_timeout", "5s")
}

// Load reads .env (if any), then config/config.<CONFIG_ENV>.yaml, then
// RENDEZVOUS_* environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Str("module", "config").Msg("loaded .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("rendezvous")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Admin.Enabled && cfg.Admin.Token == "" {
		return nil, ErrAdminTokenMissing
	}
	for _, key := range cfg.InsecureDefaults() {
		log.Warn().Str("module", "config").Str("key", key).Msg("release mode with the default session secret, set RENDEZVOUS_SECRET")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Dur("room_ttl", cfg.RoomTTL).Msg("config ready")
	return &cfg, nil
}
