package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/graphask/pkg/adapters/neo4j"
)

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		store     StoreConfig
		errSubstr string
	}{
		{name: "empty type", store: StoreConfig{URI: "bolt://x"}, errSubstr: "store type is required"},
		{name: "neo4j", store: StoreConfig{Type: "neo4j", URI: "neo4j://localhost:7687"}},
		{name: "uppercase", store: StoreConfig{Type: "Neo4j", URI: "neo4j://localhost:7687"}},
		{name: "memgraph", store: StoreConfig{Type: "memgraph", URI: "bolt://localhost:7687"}},
		{name: "unknown type", store: StoreConfig{Type: "neptune", URI: "x"}, errSubstr: "unknown store type"},
		{name: "missing uri", store: StoreConfig{Type: "neo4j"}, errSubstr: "store uri is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.store.Validate()
			if tt.errSubstr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStoreConfig_Validate_ErrorContainsAvailable(t *testing.T) {
	s := StoreConfig{Type: "invalid_db", URI: "x"}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neo4j", "error should list available adapters")
	assert.Contains(t, err.Error(), "graphask.yaml", "error should mention config file")
}

func TestStoreConfig_AdapterConfig(t *testing.T) {
	s := StoreConfig{Type: "Neo4j", URI: "bolt://db:7687", Database: "movies", Username: "u", Password: "p", Params: map[string]any{"fetch_size": 100}}
	got := s.AdapterConfig()
	assert.Equal(t, "neo4j", got.Type)
	assert.Equal(t, "bolt://db:7687", got.URI)
	assert.Equal(t, "movies", got.Database)
	assert.Equal(t, 100, got.Params["fetch_size"])
}

func TestTranslateConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       TranslateConfig
		errSubstr string
	}{
		{name: "defaults", cfg: TranslateConfig{MaxAttempts: 3}},
		{name: "zero attempts", cfg: TranslateConfig{}, errSubstr: "max_attempts"},
		{name: "negative write limit", cfg: TranslateConfig{MaxAttempts: 1, WriteLimit: -1}, errSubstr: "write_limit"},
		{name: "read only and dangerous", cfg: TranslateConfig{MaxAttempts: 1, ReadOnly: true, AllowDangerous: true}, errSubstr: "mutually exclusive"},
		{name: "incomplete example", cfg: TranslateConfig{MaxAttempts: 1, Examples: []Example{{Question: "q"}}}, errSubstr: "examples[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.errSubstr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOracleConfig_Validate(t *testing.T) {
	assert.NoError(t, (&OracleConfig{Model: "gpt-4o-mini"}).Validate())
	assert.ErrorContains(t, (&OracleConfig{}).Validate(), "model")
	assert.ErrorContains(t, (&OracleConfig{Model: "m", Temperature: 3}).Validate(), "temperature")
}

func TestLogConfig_Validate(t *testing.T) {
	assert.NoError(t, (&LogConfig{Level: "DEBUG", Format: "json"}).Validate())
	assert.Error(t, (&LogConfig{Level: "trace", Format: "text"}).Validate())
	assert.Error(t, (&LogConfig{Level: "info", Format: "xml"}).Validate())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("GRAPHASK_TEST_PASSWORD", "s3cret")
	t.Setenv("GRAPHASK_TEST_HOST", "db.internal")

	tests := []struct {
		in, want string
	}{
		{"${GRAPHASK_TEST_PASSWORD}", "s3cret"},
		{"bolt://${GRAPHASK_TEST_HOST}:7687", "bolt://db.internal:7687"},
		{"plain", "plain"},
		{"${GRAPHASK_TEST_UNSET}", ""},
		{"$GRAPHASK_TEST_PASSWORD", "$GRAPHASK_TEST_PASSWORD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnvVars(tt.in), tt.in)
	}
}

func TestConfig_ExpandSecrets(t *testing.T) {
	t.Setenv("NEO4J_PASSWORD", "pw")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c := Config{
		Store:  StoreConfig{Password: DefaultStorePassword},
		Oracle: OracleConfig{APIKey: DefaultOracleAPIKey},
	}
	c.ExpandSecrets()
	assert.Equal(t, "pw", c.Store.Password)
	assert.Equal(t, "sk-test", c.Oracle.APIKey)
}

func TestFindConfigUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Empty(t, FindConfigUpward(nested))

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileNameAlt), []byte("store: {}\n"), 0o600))
	assert.Equal(t, filepath.Join(root, ConfigFileNameAlt), FindConfigUpward(nested))

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("store: {}\n"), 0o600))
	assert.Equal(t, filepath.Join(root, ConfigFileName), FindConfigFile(root), "yaml wins over yml")
}
