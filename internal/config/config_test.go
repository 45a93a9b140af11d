package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "lochist.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./history", cfg.DataDir)
	require.Equal(t, "0 6 * * *", cfg.Refresh)
	require.Equal(t, 300, cfg.Fetch.MaxJitterMs)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lochist.yaml")
	yaml := `
data_dir: /data/kml
timezone: Europe/Paris
strict: true
fetch:
  begin: "2017-06-01"
  end: "2017-06-30"
export:
  sqlite_path: /data/history.sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/kml", cfg.DataDir)
	require.True(t, cfg.Strict)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "https://www.google.com", cfg.Fetch.BaseURL)
	require.Equal(t, "/data/history.sqlite", cfg.Export.SQLitePath)
	require.Empty(t, cfg.Export.ICSPath)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Paris", loc.String())

	begin, end, ok, err := cfg.FetchRange()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 29, int(end.Sub(begin).Hours()/24))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lochist.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BasicAuth = &BasicAuthConfig{Username: "me", Password: "pw"}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err := cfg.Location()
	require.Error(t, err)

	cfg.Fetch.Begin, cfg.Fetch.End = "June", "2017-06-30"
	_, _, _, err = cfg.FetchRange()
	require.Error(t, err)

	_, _, ok, err := DefaultConfig().FetchRange()
	require.NoError(t, err)
	require.False(t, ok)
}
