package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Provider holds the Lotus upstream API configuration.
	Provider ProviderConfig `mapstructure:",squash"`

	// Store holds the local order store configuration.
	Store StoreConfig `mapstructure:",squash"`

	// Poll holds the reconciliation poll loop configuration.
	Poll PollConfig `mapstructure:",squash"`

	// Redis holds the optional catalog cache configuration.
	Redis RedisConfig `mapstructure:",squash"`
}

// ProviderConfig holds the credentials and timeouts for the upstream supplier API.
type ProviderConfig struct {
	// BaseURL is the base URL of the upstream API, without the /api suffix.
	BaseURL string `mapstructure:"PROVIDER_BASE_URL" required:"true"`
	// APIKey is the key sent as X-API-Key on every call.
	APIKey string `mapstructure:"PROVIDER_API_KEY" required:"true"`
	// TimeoutMs is the total per-request timeout in milliseconds.
	TimeoutMs int `mapstructure:"PROVIDER_TIMEOUT_MS" default:"15000"`
	// ConnectTimeoutMs is the TCP connect timeout in milliseconds.
	ConnectTimeoutMs int `mapstructure:"PROVIDER_CONNECT_TIMEOUT_MS" default:"5000"`
}

// Timeout returns the total request timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// ConnectTimeout returns the connect timeout as a duration.
func (p ProviderConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutMs) * time.Millisecond
}

// StoreConfig holds the local order store settings.
type StoreConfig struct {
	// Path is the SQLite database file for the external order records.
	Path string `mapstructure:"STORE_PATH" default:"external_orders.db"`
}

// PollConfig holds the reconciliation loop settings.
type PollConfig struct {
	// IntervalSeconds is the delay between poll cycles in the daemon.
	IntervalSeconds int `mapstructure:"POLL_INTERVAL_SECONDS" default:"60"`
	// BatchSize caps how many pending orders a single cycle reconciles.
	BatchSize int `mapstructure:"POLL_BATCH_SIZE" default:"100"`
}

// Interval returns the poll interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// RedisConfig holds the catalog cache settings. Leaving URL empty disables caching.
type RedisConfig struct {
	// URL is the Redis connection URL (redis://[:password@]host[:port][/db]).
	URL string `mapstructure:"REDIS_URL"`
	// CatalogTTLSeconds is how long the provider product catalog stays cached.
	CatalogTTLSeconds int `mapstructure:"CATALOG_CACHE_TTL_SECONDS" default:"300"`
}

// CatalogTTL returns the catalog cache TTL as a duration.
func (r RedisConfig) CatalogTTL() time.Duration {
	return time.Duration(r.CatalogTTLSeconds) * time.Second
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
