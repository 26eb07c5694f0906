package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "confsnap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendFS, cfg.Store.Backend)
	assert.Equal(t, FetcherSimulated, cfg.Fetcher.Mode)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: s3
  s3:
    bucket: netops-configs
    prefix: lab/
    endpoint: http://localhost:9000
cache:
  servers: [127.0.0.1:11211]
backup:
  concurrency: 8
  fetch_timeout: 5s
  fetch_rate: 2.5
fetcher:
  mode: directory
  dir: /srv/exports
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "netops-configs", cfg.Store.S3.Bucket)
	assert.Equal(t, "backups", cfg.Store.Path)
	assert.Equal(t, []string{"127.0.0.1:11211"}, cfg.Cache.Servers)
	assert.Equal(t, 100*time.Millisecond, cfg.Cache.Timeout)
	assert.Equal(t, 8, cfg.Backup.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Backup.FetchTimeout)
	assert.Equal(t, 2.5, cfg.Backup.FetchRate)
	assert.Equal(t, "/srv/exports", cfg.Fetcher.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, 50051, cfg.Server.GrpcPort)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown backend":  "store: {backend: ftp}\n",
		"s3 no bucket":     "store: {backend: s3}\n",
		"fs no path":       "store: {backend: fs, path: \"\"}\n",
		"directory no dir": "fetcher: {mode: directory}\n",
		"zero concurrency": "backup: {concurrency: 0}\n",
		"bad level":        "log: {level: loud}\n",
		"bad port":         "server: {grpc_port: 70000}\n",
		"unknown field":    "stor: {}\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
