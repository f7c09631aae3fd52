// Package config provides configuration management for the graphask CLI.
//
// The configuration sections are defined in internal/config and shared
// with the HTTP server; this package loads them from defaults, the config
// file, the environment and command-line flags.
package config

import (
	sharedcfg "github.com/leapstack-labs/graphask/internal/config"
)

// Config is an alias for the shared configuration.
// This allows CLI code to use config.Config without importing internal/config.
type Config = sharedcfg.Config

// Output modes.
const (
	OutputAuto     = "auto" // TTY=text, non-TTY=markdown
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// envPrefix is the prefix of environment variables read into the config.
const envPrefix = "GRAPHASK_"

// flagKeys maps command-line flags onto config keys. Flags not listed here
// are command options, not configuration.
var flagKeys = map[string]string{
	"store":           "store.type",
	"uri":             "store.uri",
	"database":        "store.database",
	"username":        "store.username",
	"model":           "oracle.model",
	"base-url":        "oracle.base_url",
	"allow-dangerous": "translate.allow_dangerous",
	"read-only":       "translate.read_only",
	"max-attempts":    "translate.max_attempts",
	"max-rows":        "translate.max_rows",
	"answer":          "translate.answer",
	"schema-file":     "schema.file",
	"watch":           "schema.watch",
	"history":         "history.path",
	"addr":            "server.addr",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"verbose":         "verbose",
	"output":          "output",
}
