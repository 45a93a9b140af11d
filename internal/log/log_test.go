package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("record skipped", "file", "a.kml", "index", 3)
	Error("load failed", errors.New("boom"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[WARN] record skipped file=a.kml index=3")
	require.Contains(t, out, "[ERROR] load failed err=boom")
}

func TestValuesWithSpacesAreQuoted(t *testing.T) {
	buf := capture(t, LevelDebug)

	Info("selection", "label", "Home Sweet Home", "odd")
	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasSuffix(line, `selection label="Home Sweet Home"`), line)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel(" warning "))
	require.Equal(t, LevelError, ParseLevel("ERROR"))
	require.Equal(t, LevelInfo, ParseLevel("chatty"))
}
