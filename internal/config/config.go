package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, e.g. EXAMDESK_BASE_URL.
const EnvPrefix = "EXAMDESK"

// Config holds the client settings.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	DBPath         string        `mapstructure:"db"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	// AllowSkip lets the exam wizard move past steps that are still invalid.
	AllowSkip bool `mapstructure:"allow_skip"`
}

// Default returns a Config with the built-in defaults.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8004",
		DBPath:         filepath.Join(homeDir(), ".examdesk", "examdesk.db"),
		RequestTimeout: 15 * time.Second,
		LogLevel:       "warn",
	}
}

// New returns a viper instance with defaults, env binding and the optional
// config file location registered. Flags are bound separately with BindFlags.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("db", d.DBPath)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("allow_skip", d.AllowSkip)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	return v
}

// BindFlags registers the persistent flags on fs and binds them to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	d := Default()
	fs.String("base-url", d.BaseURL, "Platform API base URL")
	fs.String("db", d.DBPath, "Path to the local credential database")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Write logs to this file")
	fs.Bool("allow-skip", false, "Allow the exam wizard to skip invalid steps")

	for key, flag := range map[string]string{
		"base_url":   "base-url",
		"db":         "db",
		"log_level":  "log-level",
		"log_file":   "log-file",
		"allow_skip": "allow-skip",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads the config file (if any) and unmarshals v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, errs
	}
	return cfg, nil
}

// ValidationError represents a single invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the accepted log level names.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks c and returns every problem found.
func (c Config) Validate() ValidationErrors {
	var errs ValidationErrors

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{Field: "base_url", Value: c.BaseURL, Message: "must be an absolute http(s) URL"})
	}
	if c.DBPath == "" {
		errs = append(errs, ValidationError{Field: "db", Value: c.DBPath, Message: "must not be empty"})
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "request_timeout", Value: c.RequestTimeout, Message: "must be positive"})
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.LogLevel)) {
		errs = append(errs, ValidationError{Field: "log_level", Value: c.LogLevel, Message: "must be one of " + strings.Join(ValidLogLevels(), ", ")})
	}
	return errs
}

// ConfigDir returns the directory searched for config.yaml.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "examdesk")
	}
	return filepath.Join(homeDir(), ".config", "examdesk")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
