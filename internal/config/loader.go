package config

import (
	"os"
	"path/filepath"
	"regexp"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "graphask.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "graphask.yml"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// FindConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindConfigUpward walks up from startDir to the first directory holding
// a config file and returns the file's path.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if p := FindConfigFile(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables expand to the empty string.
func ExpandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ExpandSecrets expands ${VAR} references in the fields that usually hold
// credentials or endpoints.
func (c *Config) ExpandSecrets() {
	c.Store.URI = ExpandEnvVars(c.Store.URI)
	c.Store.Database = ExpandEnvVars(c.Store.Database)
	c.Store.Username = ExpandEnvVars(c.Store.Username)
	c.Store.Password = ExpandEnvVars(c.Store.Password)
	c.Oracle.BaseURL = ExpandEnvVars(c.Oracle.BaseURL)
	c.Oracle.APIKey = ExpandEnvVars(c.Oracle.APIKey)
	c.Oracle.Model = ExpandEnvVars(c.Oracle.Model)
}
