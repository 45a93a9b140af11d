package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationRoundTrip(t *testing.T) {
	for _, s := range []int{0, 1, 59, 60, 61, 3599, 3600, 3661, 86399, 86400, 90061, 1234567} {
		formatted := FormatDuration(s)
		got, err := ParseDuration(formatted)
		require.NoError(t, err, formatted)
		require.Equal(t, s, got, formatted)
	}
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "0h 0min 0sec", FormatDuration(0))
	require.Equal(t, "1h 1min 1sec", FormatDuration(3661))
	require.Equal(t, "26h 0min 5sec", FormatDuration(26*3600+5))
}

func TestParseDurationRejectsGarbage(t *testing.T) {
	_, err := ParseDuration("12min")
	require.Error(t, err)

	_, err = ParseDuration("")
	require.Error(t, err)
}

func TestMondayWeekday(t *testing.T) {
	d, err := time.Parse(DateLayout, "2017-06-05")
	require.NoError(t, err)
	require.Equal(t, 0, MondayWeekday(d.Weekday()))
	require.Equal(t, 6, MondayWeekday(time.Sunday))
}

func TestKeyIgnoresTrack(t *testing.T) {
	a := Event{IndexTime: "2017-06-05 16:30:00", Category: "Walking", Track: Track{{"1", "2"}, {"3", "4"}}}
	b := a
	b.Track = Track{{"3", "4"}, {"1", "2"}}
	require.Equal(t, a.Key(), b.Key())

	b.Distance = 10
	require.NotEqual(t, a.Key(), b.Key())
}

func TestTrackLineString(t *testing.T) {
	tr := Track{{"2.35", "48.85"}, {"2.36", "48.86"}}
	ls, err := tr.LineString()
	require.NoError(t, err)
	require.Len(t, ls, 2)
	require.Equal(t, 2.35, ls[0][0])
	require.Equal(t, 48.85, ls[0][1])

	length, err := tr.LengthMeters()
	require.NoError(t, err)
	require.Greater(t, length, 1000.0)
	require.Less(t, length, 2000.0)

	_, err = Track{{"x", "1"}}.LineString()
	require.Error(t, err)
}

func TestBeginEnd(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	e := Event{BeginDate: "2017-06-05", BeginTime: "16:30:00", EndDate: "2017-06-05", EndTime: "17:00:00"}
	b, err := e.Begin(loc)
	require.NoError(t, err)
	en, err := e.End(loc)
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, en.Sub(b))
	require.Equal(t, 14, b.UTC().Hour())
}
