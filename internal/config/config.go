package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Client ClientConfig `mapstructure:"client"`
}

// ServerConfig drives the relay.
type ServerConfig struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	Secret       string        `mapstructure:"secret"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

// ClientConfig drives cmd/huddle and the call core it embeds.
type ClientConfig struct {
	ServerURL         string        `mapstructure:"server_url"`
	Token             string        `mapstructure:"token"`
	UserID            string        `mapstructure:"user_id"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ICEServers        []string      `mapstructure:"ice_servers"`
	LogLevel          string        `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_limit", 65536)
	v.SetDefault("server.ping_period", "25s")
	v.SetDefault("server.secret", "")
	v.SetDefault("server.send_buffer", 32)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_interval", "1s")

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.user_id", "")
	v.SetDefault("client.reconnect_attempts", 5)
	v.SetDefault("client.reconnect_delay", "2s")
	v.SetDefault("client.ping_period", "25s")
	v.SetDefault("client.write_timeout", "5s")
	v.SetDefault("client.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("client.log_level", "info")
}

// New returns a viper instance with defaults and HUDDLE_* env overrides,
// e.g. HUDDLE_SERVER_PORT or HUDDLE_CLIENT_TOKEN.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FileName is config/config.<CONFIG_ENV>.yaml, dev by default.
func FileName() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

func Load() (*Config, error) {
	return LoadFile(New(), FileName())
}

// LoadFile reads fileName into v, tolerating a missing file, and decodes the result.
func LoadFile(v *viper.Viper, fileName string) (*Config, error) {
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Client.ReconnectAttempts < 0 {
		return nil, fmt.Errorf("client.reconnect_attempts must not be negative")
	}
	log.Debug().
		Str("module", "config").
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("server_url", cfg.Client.ServerURL).
		Msg("config")
	return &cfg, nil
}
