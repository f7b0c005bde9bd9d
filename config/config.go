package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port     int    `toml:"port"`
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`
}

type IMAPConfig struct {
	Server string `toml:"server"`
	Port   int    `toml:"port"`
}

type SMTPConfig struct {
	Server string `toml:"server"`
	Port   int    `toml:"port"`
}

// ProviderConfig is the shared mailbox account the back office operates.
type ProviderConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

// OperatorConfig seeds the initial back-office account on first run.
type OperatorConfig struct {
	Email       string `toml:"email"`
	Password    string `toml:"password"`
	DisplayName string `toml:"display_name"`
}

type JWTConfig struct {
	Secret   string `toml:"secret"`
	TokenTTL string `toml:"token_ttl"`
}

// ComposeConfig tunes the draft autosave machinery.
type ComposeConfig struct {
	DebounceMs           int    `toml:"debounce_ms"`
	OpenGraceMs          int    `toml:"open_grace_ms"`
	SignaturePlaceholder string `toml:"signature_placeholder"`
	ThreadCacheSeconds   int    `toml:"thread_cache_seconds"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	IMAP     IMAPConfig     `toml:"imap"`
	SMTP     SMTPConfig     `toml:"smtp"`
	Provider ProviderConfig `toml:"provider"`
	Operator OperatorConfig `toml:"operator"`
	JWT      JWTConfig      `toml:"jwt"`
	Compose  ComposeConfig  `toml:"compose"`
}

// LoadConfig reads the TOML configuration, filling in defaults for anything
// unset.
func LoadConfig(filepath string) (*Config, error) {
	var config Config

	config.Server.Port = 3000
	config.Server.DataDir = "./data"
	config.Server.LogLevel = "info"
	config.IMAP.Port = 993
	config.SMTP.Port = 587
	config.Compose.DebounceMs = 1500
	config.Compose.OpenGraceMs = 1000
	config.Compose.ThreadCacheSeconds = 30

	if _, err := toml.DecodeFile(filepath, &config); err != nil {
		return nil, err
	}

	// Derive the SMTP host from the IMAP host when not specified.
	if config.SMTP.Server == "" {
		config.SMTP.Server = config.IMAP.Server
		if len(config.SMTP.Server) > 5 && config.SMTP.Server[:5] == "imap." {
			config.SMTP.Server = "smtp" + config.SMTP.Server[4:]
		}
	}

	if config.IMAP.Server == "" {
		return nil, fmt.Errorf("imap.server is required")
	}
	if config.Provider.Email == "" || config.Provider.Password == "" {
		return nil, fmt.Errorf("provider.email and provider.password are required")
	}
	if config.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	if config.Operator.Email == "" || config.Operator.Password == "" {
		return nil, fmt.Errorf("operator.email and operator.password are required")
	}

	return &config, nil
}

// DebounceDelay returns the autosave debounce as a duration.
func (c *ComposeConfig) DebounceDelay() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// OpenGrace returns the open-guard window as a duration.
func (c *ComposeConfig) OpenGrace() time.Duration {
	return time.Duration(c.OpenGraceMs) * time.Millisecond
}

// ThreadCacheTTL returns the thread result cache freshness window.
func (c *ComposeConfig) ThreadCacheTTL() time.Duration {
	return time.Duration(c.ThreadCacheSeconds) * time.Second
}

// SessionTTL parses the session token lifetime, defaulting to 12 hours.
func (c *JWTConfig) SessionTTL() (time.Duration, error) {
	if c.TokenTTL == "" {
		return 12 * time.Hour, nil
	}
	return time.ParseDuration(c.TokenTTL)
}
