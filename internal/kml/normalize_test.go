package kml

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lochist/internal/model"
)

var utcPlus2 = time.FixedZone("UTC+2", 2*3600)

func decodeOne(t *testing.T, p placemarkFixture) Placemark {
	t.Helper()
	marks, recErrs, err := Decode(strings.NewReader(kmlDoc(p)))
	require.NoError(t, err)
	require.Empty(t, recErrs)
	require.Len(t, marks, 1)
	return marks[0]
}

func TestConvertTimezone(t *testing.T) {
	n := NewNormalizer(utcPlus2)
	got, err := n.ConvertTimezone("2017-06-05T14:30:00.000Z")
	require.NoError(t, err)
	require.Equal(t, "2017-06-05 16:30:00", got)

	got, err = n.ConvertTimezone("2017-06-05T23:15:00Z")
	require.NoError(t, err)
	require.Equal(t, "2017-06-06 01:15:00", got)

	_, err = n.ConvertTimezone("2017-06-05T14:30:00.000")
	var tpe *TimestampParseError
	require.True(t, errors.As(err, &tpe))
}

func TestNormalize(t *testing.T) {
	ev, err := NewNormalizer(utcPlus2).Normalize(decodeOne(t, walk()))
	require.NoError(t, err)

	require.Equal(t, "2017-06-05", ev.BeginDate)
	require.Equal(t, "16:30:00", ev.BeginTime)
	require.Equal(t, "2017-06-05", ev.EndDate)
	require.Equal(t, "17:00:00", ev.EndTime)
	require.Equal(t, "2017-06-05 16:30:00", ev.IndexTime)
	require.Equal(t, "0h 30min 0sec", ev.Duration)
	require.Equal(t, 0, ev.WeekDay)
	require.Equal(t, "Walking", ev.Category)
	require.Equal(t, "Walking", ev.Name)
	require.Equal(t, 1234, ev.Distance)
	require.Equal(t, model.Track{{Lon: "2.35", Lat: "48.85"}, {Lon: "2.36", Lat: "48.86"}}, ev.Track)

	secs, err := ev.DurationSeconds()
	require.NoError(t, err)
	require.Equal(t, 1800, secs)
}

func TestNormalizeTruncatesFractionalSeconds(t *testing.T) {
	ev, err := NewNormalizer(time.UTC).Normalize(decodeOne(t, visit()))
	require.NoError(t, err)
	require.Equal(t, "5h 15min 30sec", ev.Duration)
	require.Equal(t, "1 Rue de Rivoli, Paris", ev.Address)
	require.Equal(t, "", ev.Category)
	require.Equal(t, 0, ev.Distance)
}

func TestNormalizeRejectsNegativeDuration(t *testing.T) {
	p := walk()
	p.Begin, p.End = p.End, p.Begin

	_, err := NewNormalizer(time.UTC).Normalize(decodeOne(t, p))
	require.ErrorIs(t, err, ErrNegativeDuration)
}

func TestNormalizeRejectsBadTimestamp(t *testing.T) {
	p := walk()
	p.End = "yesterday"

	_, err := NewNormalizer(time.UTC).Normalize(decodeOne(t, p))
	var tpe *TimestampParseError
	require.True(t, errors.As(err, &tpe))
	require.Equal(t, "end", tpe.Field)
	require.Equal(t, "yesterday", tpe.Value)
}

func TestNormalizeRejectsBadDistance(t *testing.T) {
	p := walk()
	p.Distance = "far"

	_, err := NewNormalizer(time.UTC).Normalize(decodeOne(t, p))
	var mre *MalformedRecordError
	require.True(t, errors.As(err, &mre))
	require.Equal(t, FieldDistance, mre.Field)
}

func TestCleanTrack(t *testing.T) {
	tr, err := cleanTrack([]string{"clampToGround", "1.5 2.5 0", "3,4,0 5,6,0", "  "})
	require.NoError(t, err)
	require.Equal(t, model.Track{{Lon: "1.5", Lat: "2.5"}, {Lon: "3", Lat: "4"}, {Lon: "5", Lat: "6"}}, tr)

	_, err = cleanTrack([]string{"7"})
	require.Error(t, err)
}

func TestParseDistanceTruncates(t *testing.T) {
	for raw, want := range map[string]int{"": 0, "12": 12, "12.99": 12, " 3000.5 ": 3000} {
		got, err := parseDistance(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}
