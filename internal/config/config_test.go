package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkfold/inkfold/pkg/provider"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "inkfold.db", cfg.Database)
	require.Equal(t, provider.Anthropic, cfg.Provider.Provider)
	require.Equal(t, 4000, cfg.Context.TokenBudget)
	require.Equal(t, Duration(30*time.Second), cfg.Context.FreshFor)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkfold.yaml")
	body := `
database: /tmp/novel.db
provider:
  provider: openrouter
  api_key: sk-test
  model: anthropic/claude-sonnet-4
context:
  token_budget: 2000
  fresh_for: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/novel.db", cfg.Database)
	require.Equal(t, provider.OpenRouter, cfg.Provider.Provider)
	require.Equal(t, "sk-test", cfg.Provider.APIKey)
	require.Equal(t, 2000, cfg.Context.TokenBudget)
	require.Equal(t, Duration(15*time.Second), cfg.Context.FreshFor)
	// Untouched fields keep their defaults.
	require.Equal(t, Duration(2*time.Minute), cfg.Context.RecentFor)
	require.Equal(t, 4096, cfg.Provider.MaxTokens)
}

func TestLoadEnvKeyOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkfold.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  api_key: from-file\n"), 0o600))
	t.Setenv(EnvAPIKey, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Provider.APIKey)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "inkfold.yaml")

	cfg := Default()
	cfg.Database = "story.db"
	cfg.Provider.APIKey = "sk-live"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "story.db", got.Database)
	require.Equal(t, "sk-live", got.Provider.APIKey)
	require.Equal(t, cfg.Context, got.Context)
}
