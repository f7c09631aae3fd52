// Package config provides the configuration types shared by the CLI and
// the HTTP server.
// This package is decoupled from CLI concerns: it defines the sections of
// graphask.yaml, their defaults and their validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/graphask/pkg/adapter"
	"github.com/leapstack-labs/graphask/pkg/core"
)

// Config is the complete graphask configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Oracle    OracleConfig    `koanf:"oracle"`
	Translate TranslateConfig `koanf:"translate"`
	Schema    SchemaConfig    `koanf:"schema"`
	History   HistoryConfig   `koanf:"history"`
	Log       LogConfig       `koanf:"log"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// File is the config file the values were read from, if any.
	File string `koanf:"-"`
}

// StoreConfig holds graph store connection configuration.
type StoreConfig struct {
	Type     string `koanf:"type"` // neo4j, memgraph
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Params holds adapter-specific configuration (introspection mode,
	// pool size, fetch size)
	Params map[string]any `koanf:"params"`
}

// Validate checks if the store configuration is valid.
// It uses the adapter registry to determine which store types are available.
func (s *StoreConfig) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("store type is required")
	}

	// Use adapter registry as single source of truth
	if !adapter.IsRegistered(strings.ToLower(s.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      s.Type,
			Available: adapter.ListAdapters(),
		}
	}
	if s.URI == "" {
		return fmt.Errorf("store uri is required")
	}
	return nil
}

// AdapterConfig converts the section into the adapter's connection config.
func (s *StoreConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     strings.ToLower(s.Type),
		URI:      s.URI,
		Database: s.Database,
		Username: s.Username,
		Password: s.Password,
		Params:   s.Params,
	}
}

// OracleConfig configures the OpenAI-compatible chat model used as the
// oracle.
type OracleConfig struct {
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float32       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`

	// BreakerFailures is the number of consecutive failures that open the
	// circuit breaker. Zero disables it.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// Validate checks if the oracle configuration is valid.
func (o *OracleConfig) Validate() error {
	if o.Model == "" {
		return fmt.Errorf("oracle model is required")
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("oracle temperature must be between 0 and 2, got %v", o.Temperature)
	}
	return nil
}

// Example is a worked question to Cypher mapping shown in prompts.
type Example struct {
	Question string `koanf:"question"`
	Cypher   string `koanf:"cypher"`
}

// TranslateConfig configures the translation pipeline.
type TranslateConfig struct {
	MaxAttempts   int           `koanf:"max_attempts"`
	OracleRetries int           `koanf:"oracle_retries"`
	StoreRetries  int           `koanf:"store_retries"`
	Backoff       time.Duration `koanf:"backoff"`
	MaxBackoff    time.Duration `koanf:"max_backoff"`
	MaxConcurrent int64         `koanf:"max_concurrent"`

	MaxRows     int           `koanf:"max_rows"`
	ExecTimeout time.Duration `koanf:"exec_timeout"`

	// AllowDangerous permits unscoped writes, deletes and schema commands.
	AllowDangerous bool `koanf:"allow_dangerous"`
	// ReadOnly rejects every mutating clause.
	ReadOnly bool `koanf:"read_only"`
	// Procedures lists the procedures a query may CALL.
	Procedures []string `koanf:"procedures"`
	// WriteLimit is the largest LIMIT that counts as scoping a write.
	WriteLimit int64 `koanf:"write_limit"`

	Answer            bool `koanf:"answer"`
	AnswerContextRows int  `koanf:"answer_context_rows"`

	// Examples replace the built-in worked examples when set.
	Examples []Example `koanf:"examples"`
}

// Validate checks if the translation configuration is valid.
func (t *TranslateConfig) Validate() error {
	if t.MaxAttempts < 1 {
		return fmt.Errorf("translate.max_attempts must be at least 1, got %d", t.MaxAttempts)
	}
	if t.WriteLimit < 0 {
		return fmt.Errorf("translate.write_limit must not be negative, got %d", t.WriteLimit)
	}
	if t.ReadOnly && t.AllowDangerous {
		return fmt.Errorf("translate.read_only and translate.allow_dangerous are mutually exclusive")
	}
	for i, ex := range t.Examples {
		if strings.TrimSpace(ex.Question) == "" || strings.TrimSpace(ex.Cypher) == "" {
			return fmt.Errorf("translate.examples[%d] needs both question and cypher", i)
		}
	}
	return nil
}

// SchemaConfig configures the schema cache.
type SchemaConfig struct {
	// File reads the schema from a YAML file instead of introspecting
	// the store.
	File string `koanf:"file"`
	// Watch reloads File when it changes.
	Watch   bool          `koanf:"watch"`
	MaxAge  time.Duration `koanf:"max_age"`
	Timeout time.Duration `koanf:"timeout"`
	Exclude []string      `koanf:"exclude"`
}

// HistoryConfig configures the translation history database.
type HistoryConfig struct {
	// Path is the SQLite file translations are recorded in. Empty
	// disables recording.
	Path string `koanf:"path"`
	// Keep is the number of most recent runs retained.
	Keep int `koanf:"keep"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Metrics         bool          `koanf:"metrics"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Validate checks if the log configuration is valid.
func (l *LogConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", l.Format)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("invalid oracle configuration: %w", err)
	}
	if err := c.Translate.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
