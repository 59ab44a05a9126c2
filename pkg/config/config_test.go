package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
blog:
  id: "2756397129078048447"
sources:
  feed_url: https://nepsestock.com/feed
  api_url: https://bajarkochirfar.com/wp-json/api/v1/short-news
llm:
  model: gemini-2.0-flash
`

func TestLoad(t *testing.T) {
	t.Run("minimal config gets defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, "2756397129078048447", cfg.Blog.ID)
		assert.Equal(t, "https://www.googleapis.com/blogger/v3", cfg.Blog.Endpoint)
		assert.Equal(t, []string{"AI-Edited", "Finance"}, cfg.Blog.Labels)
		assert.Equal(t, 30*time.Second, cfg.Blog.Timeout)

		assert.Equal(t, []string{"सेयर बजार", "अर्थतन्त्र"}, cfg.Sources.Categories)
		assert.Equal(t, "Arthapost/1.0", cfg.Sources.UserAgent)

		assert.Equal(t, "file", cfg.Store.Type)
		assert.Equal(t, "posted_ids.json", cfg.Store.Path)
		assert.Equal(t, 200, cfg.Store.Retention)

		assert.InEpsilon(t, 0.3, cfg.LLM.Temperature, 0.001)
		assert.Equal(t, 2000, cfg.LLM.MaxTokens)
		assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)

		assert.Equal(t, 999, cfg.Run.MaxPosts)
		assert.Equal(t, 10*time.Second, cfg.Run.PostDelay)

		assert.Equal(t, "SERVICE_ACCOUNT_JSON", cfg.Auth.ServiceAccountEnv)
		assert.Equal(t, "BLOGGER_TOKEN", cfg.Auth.StaticTokenEnv)
	})

	t.Run("environment variable expansion", func(t *testing.T) {
		t.Setenv("TEST_GEMINI_KEY", "secret-key")
		cfg, err := Load(writeConfig(t, minimalConfig+`  api_key: ${TEST_GEMINI_KEY}
`))
		require.NoError(t, err)
		assert.Equal(t, "secret-key", cfg.LLM.APIKey)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig+`
store:
  type: sqlite
  retention: 50
run:
  max_posts: 5
  post_delay: 2s
`))
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Store.Type)
		assert.Equal(t, 50, cfg.Store.Retention)
		assert.Equal(t, 5, cfg.Run.MaxPosts)
		assert.Equal(t, 2*time.Second, cfg.Run.PostDelay)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "blog: [id: {"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("missing blog id", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
sources:
  feed_url: https://nepsestock.com/feed
  api_url: https://bajarkochirfar.com/api
llm:
  model: gemini-2.0-flash
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "blog.id is required")
	})

	t.Run("missing llm model", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
blog:
  id: "1"
sources:
  feed_url: https://nepsestock.com/feed
  api_url: https://bajarkochirfar.com/api
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm.model is required")
	})

	t.Run("bad store type", func(t *testing.T) {
		_, err := Load(writeConfig(t, minimalConfig+`
store:
  type: redis
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.type")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		_, err := Load(writeConfig(t, minimalConfig+`  temperature: 3.5
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temperature")
	})
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	assert.NotNil(t, schema)
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.NoError(t, VerifyAgainstEmbeddedSchema(cfg))
}
