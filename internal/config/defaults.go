package config

import "time"

// Default configuration values.
const (
	DefaultStoreType     = "neo4j"
	DefaultStoreURI      = "neo4j://localhost:7687"
	DefaultStoreUsername = "neo4j"
	DefaultStorePassword = "${NEO4J_PASSWORD}"

	DefaultOracleModel   = "gpt-4o-mini"
	DefaultOracleAPIKey  = "${OPENAI_API_KEY}"
	DefaultOracleTimeout = 60 * time.Second

	DefaultServerAddr = ":5000"

	DefaultMaxAttempts       = 3
	DefaultOracleRetries     = 3
	DefaultStoreRetries      = 1
	DefaultBackoff           = 200 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultMaxConcurrent     = 8
	DefaultMaxRows           = 1000
	DefaultExecTimeout       = 30 * time.Second
	DefaultAnswerContextRows = 10
	DefaultWriteLimit        = 100

	DefaultSchemaMaxAge  = 10 * time.Minute
	DefaultSchemaTimeout = 30 * time.Second

	DefaultHistoryKeep = 1000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultOutput    = "auto"
)

// DefaultProcedures are the read-only procedures queries may call.
var DefaultProcedures = []string{"db.labels", "db.relationshipTypes", "db.propertyKeys", "db.schema.*"}

// Defaults returns the default values keyed by config path, for loading
// as the lowest-precedence layer.
func Defaults() map[string]any {
	return map[string]any{
		"store.type":     DefaultStoreType,
		"store.uri":      DefaultStoreURI,
		"store.username": DefaultStoreUsername,
		"store.password": DefaultStorePassword,

		"oracle.model":            DefaultOracleModel,
		"oracle.api_key":          DefaultOracleAPIKey,
		"oracle.timeout":          DefaultOracleTimeout.String(),
		"oracle.breaker_failures": 5,
		"oracle.breaker_cooldown": "30s",

		"translate.max_attempts":        DefaultMaxAttempts,
		"translate.oracle_retries":      DefaultOracleRetries,
		"translate.store_retries":       DefaultStoreRetries,
		"translate.backoff":             DefaultBackoff.String(),
		"translate.max_backoff":         DefaultMaxBackoff.String(),
		"translate.max_concurrent":      DefaultMaxConcurrent,
		"translate.max_rows":            DefaultMaxRows,
		"translate.exec_timeout":        DefaultExecTimeout.String(),
		"translate.allow_dangerous":     false,
		"translate.read_only":           false,
		"translate.procedures":          DefaultProcedures,
		"translate.write_limit":         DefaultWriteLimit,
		"translate.answer":              false,
		"translate.answer_context_rows": DefaultAnswerContextRows,

		"schema.max_age": DefaultSchemaMaxAge.String(),
		"schema.timeout": DefaultSchemaTimeout.String(),

		"server.addr":             DefaultServerAddr,
		"server.cors_origins":     []string{"*"},
		"server.read_timeout":     "30s",
		"server.write_timeout":    "5m",
		"server.shutdown_timeout": "10s",
		"server.metrics":          true,

		"history.keep": DefaultHistoryKeep,

		"log.level":  DefaultLogLevel,
		"log.format": DefaultLogFormat,

		"verbose": false,
		"output":  DefaultOutput,
	}
}
