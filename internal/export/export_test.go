package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/require"

	"lochist/internal/model"
	"lochist/internal/table"
)

var utcPlus2 = time.FixedZone("UTC+2", 2*3600)

func sample() table.Table {
	return table.Build([]model.Event{
		{
			BeginDate: "2017-06-05", BeginTime: "16:30:00",
			EndDate: "2017-06-05", EndTime: "17:00:00",
			Duration: "0h 30min 0sec", WeekDay: 0, IndexTime: "2017-06-05 16:30:00",
			Name: "Walking", Category: "Walking", Distance: 1234,
			Track: model.Track{{Lon: "2.35", Lat: "48.85"}, {Lon: "2.36", Lat: "48.86"}},
		},
		{
			BeginDate: "2017-06-05", BeginTime: "09:00:00",
			EndDate: "2017-06-05", EndTime: "16:00:00",
			Duration: "7h 0min 0sec", WeekDay: 0, IndexTime: "2017-06-05 09:00:00",
			Address: "1 Rue de Rivoli", Name: "Office",
		},
	})
}

func TestWriteICS(t *testing.T) {
	var buf bytes.Buffer
	stamp := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, WriteICS(&buf, sample(), ICSOptions{Location: utcPlus2, Stamp: stamp}))

	cal, err := ical.ParseCalendar(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	walk := events[0]
	require.Equal(t, "Walking", walk.GetProperty(ical.ComponentPropertySummary).Value)
	start, err := walk.GetStartAt()
	require.NoError(t, err)
	require.True(t, start.Equal(time.Date(2017, 6, 5, 14, 30, 0, 0, time.UTC)), start.String())
	end, err := walk.GetEndAt()
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, end.Sub(start))

	office := events[1]
	require.Equal(t, "Office", office.GetProperty(ical.ComponentPropertySummary).Value)
	require.Equal(t, "1 Rue de Rivoli", office.GetProperty(ical.ComponentPropertyLocation).Value)
}

func TestEventUIDIsStable(t *testing.T) {
	tbl := sample()
	a := EventUID(tbl[0])

	moved := tbl[0]
	moved.Track = model.Track{{Lon: "2.36", Lat: "48.86"}, {Lon: "2.35", Lat: "48.85"}}
	require.Equal(t, a, EventUID(moved))
	require.NotEqual(t, a, EventUID(tbl[1]))
}

func TestSummary(t *testing.T) {
	require.Equal(t, "Office", Summary(model.Event{Name: "Office", Category: "Walking"}))
	require.Equal(t, "Walking", Summary(model.Event{Category: "Walking"}))
	require.Equal(t, "Unknown", Summary(model.Event{}))
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.sqlite")
	tbl := sample()

	require.NoError(t, SaveSQLite(ctx, path, tbl))
	got, err := LoadSQLite(ctx, path)
	require.NoError(t, err)
	require.Equal(t, tbl, got)

	// saving again rebuilds from scratch
	require.NoError(t, SaveSQLite(ctx, path, tbl[:1]))
	got, err = LoadSQLite(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
