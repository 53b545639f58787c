// Package config loads application settings from defaults, a YAML file and
// the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
)

// EnvPrefix prefixes every structured environment variable, e.g.
// SECDASH_SERVER_PORT or SECDASH_STORAGE_DRIVER.
const EnvPrefix = "SECDASH"

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	SEC       SECConfig       `yaml:"sec" envconfig:"SEC"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Logging   logging.Config  `yaml:"logging" envconfig:"LOGGING"`
	Mapping   MappingConfig   `yaml:"mapping" envconfig:"MAPPING"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gte=0"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SECConfig controls the EDGAR client.
type SECConfig struct {
	// UserAgent, when set, is sent verbatim. Otherwise it is built from
	// Name, Email and Phone.
	UserAgent         string        `yaml:"user_agent" split_words:"true"`
	Name              string        `yaml:"name" split_words:"true"`
	Email             string        `yaml:"email" split_words:"true" validate:"omitempty,email"`
	Phone             string        `yaml:"phone" split_words:"true"`
	RequestsPerSecond float64       `yaml:"requests_per_second" split_words:"true" validate:"gt=0,lte=10"`
	Timeout           time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
	CacheDir          string        `yaml:"cache_dir" split_words:"true"`
	TickersTTL        time.Duration `yaml:"tickers_ttl" split_words:"true" validate:"gte=0"`
	SubmissionsTTL    time.Duration `yaml:"submissions_ttl" split_words:"true" validate:"gte=0"`
	FactsTTL          time.Duration `yaml:"facts_ttl" split_words:"true" validate:"gte=0"`
	ConceptTTL        time.Duration `yaml:"concept_ttl" split_words:"true" validate:"gte=0"`
}

// ErrNoSECIdentity is returned by ValidateIdentity when neither a User-Agent
// nor a contact email is configured.
var ErrNoSECIdentity = errors.New("sec.user_agent or sec.email is required to call EDGAR")

// FullUserAgent returns the header value sent to SEC, e.g.
// "Acme Research (ops@acme.test, 555-0100)".
func (s SECConfig) FullUserAgent() string {
	if ua := strings.TrimSpace(s.UserAgent); ua != "" {
		return ua
	}
	var contact []string
	for _, v := range []string{s.Email, s.Phone} {
		if v = strings.TrimSpace(v); v != "" {
			contact = append(contact, v)
		}
	}
	if len(contact) == 0 {
		return strings.TrimSpace(s.Name)
	}
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(s.Name), strings.Join(contact, ", "))
}

// placeholderDomains are documentation domains SEC treats as anonymous.
var placeholderDomains = []string{"example.com", "example.org", "example.net"}

// ValidateIdentity checks that requests to EDGAR will carry a real contact.
// SEC throttles agents without one.
func (s SECConfig) ValidateIdentity() error {
	if strings.TrimSpace(s.UserAgent) != "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(s.Email))
	if email == "" {
		return ErrNoSECIdentity
	}
	for _, d := range placeholderDomains {
		if strings.HasSuffix(email, "@"+d) {
			return fmt.Errorf("sec.email %s uses a placeholder domain: %w", s.Email, ErrNoSECIdentity)
		}
	}
	return nil
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver      string `yaml:"driver" split_words:"true" validate:"oneof=memory file postgres"`
	DataDir     string `yaml:"data_dir" split_words:"true" validate:"required_if=Driver file"`
	DatabaseURL string `yaml:"database_url" split_words:"true" validate:"required_if=Driver postgres"`
	Migrate     bool   `yaml:"migrate" split_words:"true"`
}

// MappingConfig points at an optional tag table file (YAML or HJSON).
type MappingConfig struct {
	File string `yaml:"file" split_words:"true"`
}

// SchedulerConfig drives the periodic refresh.
type SchedulerConfig struct {
	Enabled    bool     `yaml:"enabled" split_words:"true"`
	Spec       string   `yaml:"spec" split_words:"true"`
	Tickers    []string `yaml:"tickers" split_words:"true"`
	RunOnStart bool     `yaml:"run_on_start" split_words:"true"`
}

// aliases are the unprefixed variables older deployments set.
type aliases struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	UserAgent   string `envconfig:"SEC_API_USER_AGENT"`
	SECName     string `envconfig:"SEC_API_NAME"`
	SECEmail    string `envconfig:"SEC_API_EMAIL"`
	SECPhone    string `envconfig:"SEC_API_PHONE"`
	APIHost     string `envconfig:"API_HOST"`
	APIPort     int    `envconfig:"API_PORT"`
}

// Default returns a configuration that runs without any file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8002,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		SEC: SECConfig{
			Name:              "SEC Dashboard",
			RequestsPerSecond: 10,
			Timeout:           30 * time.Second,
			CacheDir:          "data/cache",
			TickersTTL:        7 * 24 * time.Hour,
			SubmissionsTTL:    24 * time.Hour,
			FactsTTL:          24 * time.Hour,
			ConceptTTL:        24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:  "file",
			DataDir: "data/store",
			Migrate: true,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Scheduler: SchedulerConfig{
			Spec: "0 6 * * *",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is read
// first; it never overrides variables that are already set. A missing file at
// path is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyAliases(cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyAliases runs before the prefixed variables so SECDASH_* wins when both
// are set.
func applyAliases(cfg *Config) error {
	var a aliases
	if err := envconfig.Process("", &a); err != nil {
		return fmt.Errorf("load config aliases: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.DatabaseURL, a.DatabaseURL)
	set(&cfg.SEC.UserAgent, a.UserAgent)
	set(&cfg.SEC.Name, a.SECName)
	set(&cfg.SEC.Email, a.SECEmail)
	set(&cfg.SEC.Phone, a.SECPhone)
	set(&cfg.Server.Host, a.APIHost)
	if a.APIPort != 0 {
		cfg.Server.Port = a.APIPort
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
