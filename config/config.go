package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"webcollect/pkg/webcollect"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Store    StoreConfig    `mapstructure:"store"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

type ServerConfig struct {
	Port          string        `mapstructure:"port" validate:"required,numeric"`
	Env           string        `mapstructure:"env" validate:"oneof=development production test"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PublicBaseURL string        `mapstructure:"public_base_url" validate:"required,url"`
	RateLimit     int           `mapstructure:"rate_limit" validate:"gte=0"`
	RateWindow    time.Duration `mapstructure:"rate_window"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// JWTConfig verifies the bearer tokens the storefront issues to signed-in shoppers.
type JWTConfig struct {
	AccessSecret string        `mapstructure:"access_secret" validate:"required"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer       string        `mapstructure:"issuer"`
}

// StoreConfig is the storefront the shopper returns to after paying or cancelling.
type StoreConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// GatewayConfig mirrors the WebCollect settings a merchant manages.
type GatewayConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Title              string        `mapstructure:"title"`
	Description        string        `mapstructure:"description"`
	TestMode           bool          `mapstructure:"test_mode"`
	TestPublishableKey string        `mapstructure:"test_publishable_key"`
	TestSecretKey      string        `mapstructure:"test_secret_key"`
	LivePublishableKey string        `mapstructure:"live_publishable_key"`
	LiveSecretKey      string        `mapstructure:"live_secret_key"`
	PaymentMethods     []string      `mapstructure:"payment_methods" validate:"required,min=1,dive,oneof=card bpi gcash paymaya unionbank"`
	BaseURL            string        `mapstructure:"base_url" validate:"required,url"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type WebhookConfig struct {
	// Secret enables X-Webhook-Signature verification when non-empty.
	Secret string `mapstructure:"secret"`
	// RedeliverOnFailure answers 500 when a store failure kept a paid order pending,
	// so the processor sends the event again.
	RedeliverOnFailure bool `mapstructure:"redeliver_on_failure"`
}

// WebhookRoute is the route token the processor dashboard must point at.
const WebhookRoute = "securitybank_webcollect_webhook"

// ActiveCredentials returns the key pair for the selected mode.
func (g GatewayConfig) ActiveCredentials() webcollect.Credentials {
	if g.TestMode {
		return webcollect.Credentials{
			Mode:           webcollect.ModeTest,
			PublishableKey: g.TestPublishableKey,
			SecretKey:      g.TestSecretKey,
		}
	}
	return webcollect.Credentials{
		Mode:           webcollect.ModeLive,
		PublishableKey: g.LivePublishableKey,
		SecretKey:      g.LiveSecretKey,
	}
}

// WebhookURL is displayed to the merchant; it has no effect on routing.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.Server.PublicBaseURL, "/") + "/api/v1/webhooks/" + WebhookRoute
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8099",
			Env:           "development",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  35 * time.Second,
			PublicBaseURL: "http://localhost:8099",
			RateLimit:     100,
			RateWindow:    60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "webcollect:webcollect@tcp(localhost:3306)/webcollect?charset=utf8mb4&parseTime=True&loc=Local",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: "change-me-in-production",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "storefront",
		},
		Store: StoreConfig{
			BaseURL: "http://localhost:8080",
		},
		Gateway: GatewayConfig{
			Enabled:        true,
			Title:          "Credit/Debit Card & E-Wallets",
			Description:    "Pay securely via Credit/Debit Card, GCash, PayMaya, and other payment methods.",
			TestMode:       true,
			PaymentMethods: []string{"card", "gcash", "paymaya"},
			BaseURL:        webcollect.DefaultBaseURL,
			Timeout:        webcollect.DefaultTimeout,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// WEBCOLLECT_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("WEBCOLLECT_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"SERVER_PORT":                     &cfg.Server.Port,
		"APP_ENV":                         &cfg.Server.Env,
		"PUBLIC_BASE_URL":                 &cfg.Server.PublicBaseURL,
		"DATABASE_DSN":                    &cfg.Database.DSN,
		"JWT_ACCESS_SECRET":               &cfg.JWT.AccessSecret,
		"STORE_BASE_URL":                  &cfg.Store.BaseURL,
		"WEBCOLLECT_TITLE":                &cfg.Gateway.Title,
		"WEBCOLLECT_DESCRIPTION":          &cfg.Gateway.Description,
		"WEBCOLLECT_TEST_PUBLISHABLE_KEY": &cfg.Gateway.TestPublishableKey,
		"WEBCOLLECT_TEST_SECRET_KEY":      &cfg.Gateway.TestSecretKey,
		"WEBCOLLECT_LIVE_PUBLISHABLE_KEY": &cfg.Gateway.LivePublishableKey,
		"WEBCOLLECT_LIVE_SECRET_KEY":      &cfg.Gateway.LiveSecretKey,
		"WEBCOLLECT_BASE_URL":             &cfg.Gateway.BaseURL,
		"WEBHOOK_SECRET":                  &cfg.Webhook.Secret,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	bools := map[string]*bool{
		"WEBCOLLECT_ENABLED":            &cfg.Gateway.Enabled,
		"WEBCOLLECT_TESTMODE":           &cfg.Gateway.TestMode,
		"WEBHOOK_REDELIVER_ON_FAILURE": &cfg.Webhook.RedeliverOnFailure,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	if v := os.Getenv("WEBCOLLECT_PAYMENT_METHODS"); v != "" {
		var methods []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				methods = append(methods, m)
			}
		}
		cfg.Gateway.PaymentMethods = methods
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints plus the rule that an enabled gateway must
// have a secret key for its active mode.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Gateway.Enabled && c.Gateway.ActiveCredentials().SecretKey == "" {
		return fmt.Errorf("invalid config: gateway enabled but %s secret key is empty", c.Gateway.ActiveCredentials().Mode)
	}
	return nil
}
