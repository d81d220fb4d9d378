package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
root: /var/lib/docpipe
log_level: debug
pool_size: 4
metrics_addr: ":9090"
embeddings:
  local_model: nomic-embed-text
  disable_local: true
  api_key: sk-test
  dimension: 256
  remote_rps: 2.5
  remote_max_attempts: 3
  remote_retry_delay: 250ms
watch:
  inbox: /srv/inbox
  user: alice
  project: alpha
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeFile(t, "docpipe.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/docpipe", f.Root)
	assert.Equal(t, "debug", f.LogLevel)
	assert.Equal(t, 4, f.PoolSize)
	assert.Equal(t, ":9090", f.MetricsAddr)
	assert.Equal(t, 250*time.Millisecond, f.Embeddings.RemoteRetryDelay)
	assert.Equal(t, Watch{Inbox: "/srv/inbox", User: "alice", Project: "alpha"}, f.Watch)
}

func TestLoad_EmptyPath(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &File{}, f)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "root: [unterminated"))
	assert.ErrorContains(t, err, "parse")
}

func TestAIOptions(t *testing.T) {
	f, err := Load(writeFile(t, "docpipe.yaml", sampleYAML))
	require.NoError(t, err)

	cfg := ai.NewConfig(f.AIOptions()...)

	assert.Equal(t, "nomic-embed-text", cfg.LocalModel)
	assert.True(t, cfg.DisableLocal)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 256, cfg.Dimension)
	assert.Equal(t, 2.5, cfg.RemoteRPS)
	assert.Equal(t, 3, cfg.RemoteMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RemoteRetryDelay)
	assert.Equal(t, ai.DefaultConfig().RemoteModel, cfg.RemoteModel)
}

func TestLoadEnv(t *testing.T) {
	const key = "DOCPIPE_CONFIG_TEST_VALUE"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := writeFile(t, ".env", key+"=from-file\n")
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	assert.Equal(t, "from-file", os.Getenv(key))

	t.Setenv(key, "from-shell")
	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-shell", os.Getenv(key))
}
