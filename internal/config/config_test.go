package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "codelake", cfg.Name)
	assert.Equal(t, 0.85, cfg.Retrieval.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.Retrieval.FetchK)
	assert.True(t, cfg.Retrieval.UseWebSearch)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 100, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 10, cfg.Session.HistoryWindow)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Retrieval, cfg.Retrieval)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
retrieval:
  confidence_threshold: 0.5
  fetch_k: 12
store:
  database_path: /tmp/docs.db
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Retrieval.ConfidenceThreshold)
	assert.Equal(t, 12, cfg.Retrieval.FetchK)
	assert.Equal(t, "/tmp/docs.db", cfg.Store.DatabasePath)
	// Untouched sections keep defaults.
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Store.DatabasePath = "/data/docs.db"
	cfg.Retrieval.FetchK = 7
	cfg.Ingest.DocsPaths = []string{"docs", "examples"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config changed across save/load (-want +got):\n%s", diff)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY feeds llm and embedding", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gk")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gk", cfg.LLM.APIKey)
		assert.Equal(t, "gk", cfg.Embedding.GenAIAPIKey)
	})

	t.Run("explicit embedding key is not clobbered", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gk")

		cfg := DefaultConfig()
		cfg.Embedding.GenAIAPIKey = "explicit"
		cfg.applyEnvOverrides()

		assert.Equal(t, "explicit", cfg.Embedding.GenAIAPIKey)
	})

	t.Run("booleans and numbers parse", func(t *testing.T) {
		t.Setenv("CODELAKE_USE_WEB_SEARCH", "false")
		t.Setenv("CODELAKE_CONFIDENCE_THRESHOLD", "0.7")
		t.Setenv("CODELAKE_FETCH_K", "9")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Retrieval.UseWebSearch)
		assert.Equal(t, 0.7, cfg.Retrieval.ConfidenceThreshold)
		assert.Equal(t, 9, cfg.Retrieval.FetchK)
	})

	t.Run("garbage values are ignored", func(t *testing.T) {
		t.Setenv("CODELAKE_FETCH_K", "many")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 5, cfg.Retrieval.FetchK)
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg.LLM.APIKey = "key"
	cfg.Embedding.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "bogus"
	assert.Equal(t, "2m0s", cfg.LLMTimeout().String())

	cfg.WebSearch.Throttle = "250ms"
	assert.Equal(t, "250ms", cfg.WebThrottle().String())

	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr())
}
