package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all runtime tunables for the coordination service.
// Values come from environment variables (prefix RTC_) with an optional
// YAML file layered underneath; the process is long-running and reads its
// configuration once at boot.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Hub      HubConfig      `mapstructure:"hub"`
	Presence PresenceConfig `mapstructure:"presence"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Chat     ChatConfig     `mapstructure:"chat"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	LogLevel string         `mapstructure:"log_level"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type HubConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	ReplayDepth   int           `mapstructure:"replay_depth"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

type PresenceConfig struct {
	// EvictPrior force-closes the previous connection when an actor
	// authenticates again. Off by default: whether a second login should
	// kick the first session is a product decision, and the historical
	// behavior lets the stale session linger until it closes or idles out.
	EvictPrior bool `mapstructure:"evict_prior"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

type ChatConfig struct {
	MaxMessageLen int `mapstructure:"max_message_len"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	// Addr empty disables the replay accelerator entirely; the persistence
	// sink cold path stays authoritative either way.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AMQPConfig struct {
	// URL empty disables the bus notifier; offline pushes then only log.
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// LoadConfig reads configuration from the environment and, when given, a
// YAML file. Defaults are production-sane; validation failures are
// collected and reported together.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen", ":8090")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("hub.sweep_interval", 60*time.Second)
	v.SetDefault("hub.idle_timeout", 300*time.Second)
	v.SetDefault("hub.replay_depth", 50)
	v.SetDefault("hub.send_buffer", 256)
	v.SetDefault("hub.send_timeout", 500*time.Millisecond)
	v.SetDefault("presence.evict_prior", false)
	// Registered with an empty default so the env binding is known to the
	// unmarshaller; validation still requires a value.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cache_ttl", 30*time.Second)
	v.SetDefault("auth.cache_size", 4096)
	v.SetDefault("chat.max_message_len", 1000)
	v.SetDefault("db.dsn", "coordination.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "rtc.notifications")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("RTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.Server.Listen == "" {
		problems = append(problems, "server.listen must not be empty")
	}
	if c.Hub.ReplayDepth <= 0 {
		problems = append(problems, "hub.replay_depth must be positive")
	}
	if c.Hub.SendBuffer <= 0 {
		problems = append(problems, "hub.send_buffer must be positive")
	}
	if c.Hub.SweepInterval <= 0 || c.Hub.IdleTimeout <= 0 {
		problems = append(problems, "hub sweep_interval and idle_timeout must be positive")
	}
	if c.Chat.MaxMessageLen <= 0 {
		problems = append(problems, "chat.max_message_len must be positive")
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwt_secret must be provided (RTC_AUTH_JWT_SECRET)")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
