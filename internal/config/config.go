package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesikahq/luxe-portal/internal/contact"
)

type Config struct {
	Server struct {
		Host           string        `mapstructure:"host" yaml:"host"`
		Port           int           `mapstructure:"port" yaml:"port"`
		Mode           string        `mapstructure:"mode" yaml:"mode"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
		RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
		TLS            struct {
			Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
			CertFile string `mapstructure:"cert_file" yaml:"cert_file"`
			KeyFile  string `mapstructure:"key_file" yaml:"key_file"`
		} `mapstructure:"tls" yaml:"tls"`
	} `mapstructure:"server" yaml:"server"`

	// API is the remote patient records service.
	API struct {
		BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
		Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
		MaxRetries uint          `mapstructure:"max_retries" yaml:"max_retries"`
	} `mapstructure:"api" yaml:"api"`

	Session struct {
		CookieName string        `mapstructure:"cookie_name" yaml:"cookie_name"`
		Secret     string        `mapstructure:"secret" yaml:"secret"`
		MaxAge     time.Duration `mapstructure:"max_age" yaml:"max_age"`
		Secure     bool          `mapstructure:"secure" yaml:"secure"`
	} `mapstructure:"session" yaml:"session"`

	Contact struct {
		RuleSet string `mapstructure:"rule_set" yaml:"rule_set"`
	} `mapstructure:"contact" yaml:"contact"`

	Log struct {
		Environment string `mapstructure:"environment" yaml:"environment"`
		Level       string `mapstructure:"level" yaml:"level"`
	} `mapstructure:"log" yaml:"log"`

	RateLimit struct {
		RPS   float64 `mapstructure:"rps" yaml:"rps"`
		Burst int     `mapstructure:"burst" yaml:"burst"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`

	Audit struct {
		Elasticsearch struct {
			Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
			Addresses   []string `mapstructure:"addresses" yaml:"addresses"`
			Username    string   `mapstructure:"username" yaml:"username"`
			Password    string   `mapstructure:"password" yaml:"password"`
			IndexPrefix string   `mapstructure:"index_prefix" yaml:"index_prefix"`
		} `mapstructure:"elasticsearch" yaml:"elasticsearch"`
	} `mapstructure:"audit" yaml:"audit"`
}

// EnvPrefix namespaces environment overrides, e.g. LUXE_API_BASE_URL.
const EnvPrefix = "LUXE"

var configPaths = []string{
	"./configs",
	"../configs",
	"/etc/luxe-portal",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.tls.enabled", false)

	v.SetDefault("api.base_url", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.max_retries", 3)

	v.SetDefault("session.cookie_name", "luxe_session")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("session.secure", true)

	v.SetDefault("contact.rule_set", "domestic")

	v.SetDefault("log.environment", "production")
	v.SetDefault("log.level", "info")

	v.SetDefault("rate_limit.rps", 30)
	v.SetDefault("rate_limit.burst", 30)

	v.SetDefault("audit.elasticsearch.enabled", false)
	v.SetDefault("audit.elasticsearch.addresses", []string{})
	v.SetDefault("audit.elasticsearch.username", "")
	v.SetDefault("audit.elasticsearch.password", "")
	v.SetDefault("audit.elasticsearch.index_prefix", "luxe_audit_")
}

// Load reads config.yaml from the first location that has one and applies
// LUXE_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	return load(v)
}

// LoadFile reads the given file instead of searching the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if _, err := contact.ParseRuleSet(c.Contact.RuleSet); err != nil {
		return fmt.Errorf("contact.rule_set: %w", err)
	}
	return nil
}

// ContactRuleSet returns the rule set every contact form uses.
func (c *Config) ContactRuleSet() contact.RuleSet {
	rs, err := contact.ParseRuleSet(c.Contact.RuleSet)
	if err != nil {
		return contact.Domestic
	}
	return rs
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

const redacted = "******"

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Session.Secret != "" {
		out.Session.Secret = redacted
	}
	if out.Audit.Elasticsearch.Password != "" {
		out.Audit.Elasticsearch.Password = redacted
	}
	out.Audit.Elasticsearch.Addresses = append([]string(nil), c.Audit.Elasticsearch.Addresses...)
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
