package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedcfg "github.com/leapstack-labs/graphask/internal/config"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/graphask/pkg/adapters/neo4j"
)

// chdir switches to an empty directory so no stray graphask.yaml or .env is
// picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, sharedcfg.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("uri", "", "")
	fs.String("model", "", "")
	fs.Bool("allow-dangerous", false, "")
	fs.Int("max-attempts", 0, "")
	fs.String("format", "table", "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t)
	ResetConfig()
	t.Setenv("NEO4J_PASSWORD", "pw")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "neo4j", cfg.Store.Type)
	assert.Equal(t, sharedcfg.DefaultStoreURI, cfg.Store.URI)
	assert.Equal(t, "pw", cfg.Store.Password)
	assert.Equal(t, 3, cfg.Translate.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Translate.Backoff)
	assert.Equal(t, 30*time.Second, cfg.Translate.ExecTimeout)
	assert.False(t, cfg.Translate.AllowDangerous)
	assert.Equal(t, int64(sharedcfg.DefaultWriteLimit), cfg.Translate.WriteLimit)
	assert.Equal(t, sharedcfg.DefaultProcedures, cfg.Translate.Procedures)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.File)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := chdir(t)
	ResetConfig()
	path := writeConfig(t, dir, `
store:
  type: memgraph
  uri: bolt://file:7687
  params:
    sample_size: 50
oracle:
  model: file-model
translate:
  max_attempts: 5
  exec_timeout: 10s
  examples:
    - question: How many movies?
      cypher: MATCH (m:Movie) RETURN count(m)
schema:
  exclude: [Secret]
`)
	t.Setenv("GRAPHASK_ORACLE_MODEL", "env-model")
	t.Setenv("GRAPHASK_TRANSLATE_MAX_ATTEMPTS", "4")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--max-attempts", "2", "--format", "json"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "memgraph", cfg.Store.Type)
	assert.Equal(t, "bolt://file:7687", cfg.Store.URI)
	assert.EqualValues(t, 50, cfg.Store.Params["sample_size"])
	assert.Equal(t, "env-model", cfg.Oracle.Model, "env overrides file")
	assert.Equal(t, 2, cfg.Translate.MaxAttempts, "flags override env")
	assert.Equal(t, 10*time.Second, cfg.Translate.ExecTimeout)
	assert.Equal(t, []sharedcfg.Example{{Question: "How many movies?", Cypher: "MATCH (m:Movie) RETURN count(m)"}}, cfg.Translate.Examples)
	assert.Equal(t, []string{"Secret"}, cfg.Schema.Exclude)
	assert.Equal(t, sharedcfg.DefaultOutput, cfg.OutputFormat, "unmapped flags are ignored")
}

func TestLoadConfig_FindsFileUpward(t *testing.T) {
	dir := chdir(t)
	ResetConfig()
	path := writeConfig(t, dir, "oracle:\n  model: found\n")
	nested := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(nested, 0o750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.Oracle.Model)
	assert.Equal(t, path, cfg.File)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := chdir(t)
	ResetConfig()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRAPHASK_TEST_DOTENV_KEY=from-dotenv\n"), 0o600))
	writeConfig(t, dir, "oracle:\n  api_key: ${GRAPHASK_TEST_DOTENV_KEY}\n")
	t.Cleanup(func() { _ = os.Unsetenv("GRAPHASK_TEST_DOTENV_KEY") })

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Oracle.APIKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		errSubstr string
	}{
		{"unknown store", "store:\n  type: neptune\n", "unknown store type"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"conflicting policy", "translate:\n  read_only: true\n  allow_dangerous: true\n", "mutually exclusive"},
		{"bad yaml", "store: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			ResetConfig()
			path := writeConfig(t, dir, tt.yaml)

			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "store.uri", envKey("GRAPHASK_STORE_URI"))
	assert.Equal(t, "translate.allow_dangerous", envKey("GRAPHASK_TRANSLATE_ALLOW_DANGEROUS"))
	assert.Equal(t, "verbose", envKey("GRAPHASK_VERBOSE"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(sharedcfg.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := NewLogger(sharedcfg.LogConfig{Level: "debug", Format: "text"}, &bytes.Buffer{})
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestLoadConfig_History(t *testing.T) {
	chdir(t)
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.History.Path, "history is off by default")
	assert.Equal(t, sharedcfg.DefaultHistoryKeep, cfg.History.Keep)

	ResetConfig()
	t.Setenv("GRAPHASK_HISTORY_KEEP", "10")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("history", "", "")
	require.NoError(t, fs.Parse([]string{"--history", "runs.db"}))

	cfg, err = LoadConfig("", fs)
	require.NoError(t, err)
	assert.Equal(t, "runs.db", cfg.History.Path)
	assert.Equal(t, 10, cfg.History.Keep)
}
