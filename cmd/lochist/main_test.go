package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lochist/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	t.Setenv("LOCHIST_COOKIE", "SID=from-env")

	conf := config.DefaultConfig()
	conf.Fetch.Cookie = "SID=from-file"
	applyOverrides(conf, flagConfig{
		dir:    "/data/kml",
		tz:     "Europe/Paris",
		strict: true,
		begin:  "2017-06-01",
		end:    "2017-06-30",
		sqlite: "/tmp/history.sqlite",
		listen: ":9000",
	})

	require.Equal(t, "/data/kml", conf.DataDir)
	require.Equal(t, "Europe/Paris", conf.Timezone)
	require.True(t, conf.Strict)
	require.Equal(t, "2017-06-01", conf.Fetch.Begin)
	require.Equal(t, "/tmp/history.sqlite", conf.Export.SQLitePath)
	require.Empty(t, conf.Export.ICSPath)
	require.Equal(t, ":9000", conf.Listen)
	require.Equal(t, "SID=from-env", conf.Fetch.Cookie)
}

func TestApplyOverridesKeepsConfigWhenFlagsUnset(t *testing.T) {
	t.Setenv("LOCHIST_COOKIE", "")

	conf := config.DefaultConfig()
	conf.Fetch.Cookie = "SID=from-file"
	conf.Strict = true
	applyOverrides(conf, flagConfig{})

	require.Equal(t, "./history", conf.DataDir)
	require.True(t, conf.Strict)
	require.Equal(t, "SID=from-file", conf.Fetch.Cookie)
}
