package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/sagarc03/eiostore"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for eiostore clients.
type Config struct {
	URI     string        `mapstructure:"uri" validate:"omitempty,url"`
	Secret  string        `mapstructure:"secret"`
	Token   string        `mapstructure:"token"`
	Request RequestConfig `mapstructure:"-"`
	Log     LogConfig     `mapstructure:"log"`
}

// RequestConfig holds the retry tunables. Values that could not be parsed
// are kept as -1 and replaced by their defaults in RetryPolicy.
type RequestConfig struct {
	MaxRetry   int
	RetryDelay time.Duration
	Timeout    time.Duration

	Backoff   string  `validate:"oneof=fixed linear"`
	RateLimit float64 `validate:"min=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Env   string `mapstructure:"env" validate:"required,oneof=dev prod"`
}

// envKeys maps viper keys to their environment variables. The retry
// tunables are read without the EIO_ prefix.
var envKeys = map[string]string{
	"uri":                 "EIO_URI",
	"secret":              "EIO_SECRET",
	"token":               "EIO_TOKEN",
	"log.level":           "EIO_LOG_LEVEL",
	"log.env":             "EIO_ENV",
	"request.max_retry":   "REQUEST_MAX_RETRY",
	"request.retry_delay": "REQUEST_RETRY_DELAY",
	"request.timeout":     "REQUEST_TIMEOUT",
	"request.backoff":     "REQUEST_BACKOFF",
	"request.rate_limit":  "REQUEST_RATE_LIMIT",
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"retries":     "request.max_retry",
	"retry-delay": "request.retry_delay",
	"timeout":     "request.timeout",
	"backoff":     "request.backoff",
	"rate-limit":  "request.rate_limit",
	"log-level":   "log.level",
	"env":         "log.env",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("request.max_retry", eiostore.DefaultRetries)
	v.SetDefault("request.retry_delay", eiostore.DefaultRetryDelay.Milliseconds())
	v.SetDefault("request.timeout", eiostore.DefaultTimeout.Milliseconds())
	v.SetDefault("request.backoff", "fixed")
	v.SetDefault("request.rate_limit", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "dev")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	}

	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Request = RequestConfig{
		MaxRetry:   parseCount(v.GetString("request.max_retry")),
		RetryDelay: parseMillis(v.GetString("request.retry_delay")),
		Timeout:    parseMillis(v.GetString("request.timeout")),
		Backoff:    strings.ToLower(v.GetString("request.backoff")),
		RateLimit:  v.GetFloat64("request.rate_limit"),
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// parseCount parses a non-negative integer, returning -1 when s is not one.
func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// parseMillis parses a number of milliseconds or a Go duration string,
// returning -1 when s is neither.
func parseMillis(s string) time.Duration {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return -1
}

// RetryPolicy returns the normalized retry policy.
func (c *Config) RetryPolicy() eiostore.RetryPolicy {
	return eiostore.RetryPolicy{
		Retries: c.Request.MaxRetry,
		Delay:   c.Request.RetryDelay,
		Timeout: c.Request.Timeout,
	}.Normalize()
}

// ClientOptions returns the eiostore options described by c. Credentials
// are included only when set.
func (c *Config) ClientOptions(logger *slog.Logger) []eiostore.Option {
	policy := c.RetryPolicy()
	opts := []eiostore.Option{eiostore.WithRetryPolicy(policy)}

	if c.Secret != "" {
		opts = append(opts, eiostore.WithSecret(c.Secret))
	}
	if c.Token != "" {
		opts = append(opts, eiostore.WithCredentials(eiostore.Token(c.Token)))
	}
	if c.Request.Backoff == "linear" {
		opts = append(opts, eiostore.WithBackoff(eiostore.LinearBackoff(policy.Delay)))
	}
	if c.Request.RateLimit > 0 {
		burst := max(1, int(c.Request.RateLimit))
		opts = append(opts, eiostore.WithRateLimiter(rate.NewLimiter(rate.Limit(c.Request.RateLimit), burst)))
	}
	if logger != nil {
		opts = append(opts, eiostore.WithLogger(logger))
	}
	return opts
}

// NewClient builds a client for c.URI.
func (c *Config) NewClient(logger *slog.Logger) (*eiostore.Client, error) {
	return eiostore.New(c.URI, c.ClientOptions(logger)...)
}
