package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

/* Config is read once at startup and handed to the packages that need it.
 * The core never re-reads configuration files itself.
 */

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Signing   SigningConfig   `mapstructure:"signing"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`

	// DestinationsFile points at the YAML registry of callback endpoints
	DestinationsFile string `mapstructure:"destinations_file"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	WebhookPath  string        `mapstructure:"webhook_path"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// OAuthConfig carries the client-credentials exchange parameters for the
// bank's login endpoint.
type OAuthConfig struct {
	TokenURL  string        `mapstructure:"token_url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	APIKey    string        `mapstructure:"api_key"`
	GrantBody string        `mapstructure:"grant_body"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SchedulerConfig struct {
	RefreshBuffer   time.Duration `mapstructure:"refresh_buffer"`
	MinScheduleTime time.Duration `mapstructure:"min_schedule_time"`
}

type DeliveryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// SigningConfig holds the shared static key the bank expects outbound
// payloads to be signed with.
type SigningConfig struct {
	StaticKey string `mapstructure:"static_key"`
}

type TelegramConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	APIURL          string `mapstructure:"api_url"`
	ChatID          string `mapstructure:"chat_id"`
	MessageThreadID int    `mapstructure:"message_thread_id"`
	MessagePrefix   string `mapstructure:"message_prefix"`
}

// Load reads and validates the configuration file, allowing environment
// overrides of the form GATEWAY_SECTION_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.webhook_path", "/webhook")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("oauth.grant_body", "grant_type=client_credentials")
	v.SetDefault("oauth.timeout", "30s")

	v.SetDefault("scheduler.refresh_buffer", "5m")
	v.SetDefault("scheduler.min_schedule_time", "1m")

	v.SetDefault("delivery.max_attempts", 3)
	v.SetDefault("delivery.initial_backoff", "1s")
	v.SetDefault("delivery.max_backoff", "30s")
	v.SetDefault("delivery.attempt_timeout", "30s")

	v.SetDefault("destinations_file", "destinations.yaml")
}

// Validate checks the settings the gateway cannot run without.
func (c *Config) Validate() error {
	if c.Server.WebhookPath == "" || !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return fmt.Errorf("server.webhook_path must start with '/': %q", c.Server.WebhookPath)
	}
	if c.OAuth.TokenURL == "" {
		return fmt.Errorf("oauth.token_url cannot be empty")
	}
	if c.OAuth.Username == "" || c.OAuth.Password == "" {
		return fmt.Errorf("oauth credentials cannot be empty")
	}
	if c.Signing.StaticKey == "" {
		return fmt.Errorf("signing.static_key cannot be empty")
	}
	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("delivery.max_attempts must be at least 1 (got %d)", c.Delivery.MaxAttempts)
	}
	if c.Scheduler.RefreshBuffer < 0 || c.Scheduler.MinScheduleTime < 0 {
		return fmt.Errorf("scheduler durations cannot be negative")
	}
	return nil
}
