package render

import (
	"bytes"
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"lochist/internal/model"
	"lochist/internal/table"
)

func tracks() table.Table {
	return table.Table{
		{IndexTime: "2017-06-05 16:30:00", Track: model.Track{{Lon: "2.35", Lat: "48.85"}, {Lon: "2.36", Lat: "48.86"}}},
		{IndexTime: "2017-06-05 12:00:00", Track: model.Track{{Lon: "2.30", Lat: "48.80"}}},
		{IndexTime: "2017-06-05 10:00:00", Track: model.Track{{Lon: "bad", Lat: "48.80"}}},
		{IndexTime: "2017-06-05 09:00:00"},
	}
}

func TestMapFitsTracks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Map(&buf, tracks(), Options{Title: "Walking in June"}))

	page := buf.String()
	require.Contains(t, page, "<title>Walking in June</title>")
	require.Contains(t, page, "[[48.85,2.35],[48.86,2.36]]")
	require.Contains(t, page, "[[48.8,2.3]]")
	require.Contains(t, page, "var bounds = [[48.8,2.3],[48.86,2.36]]")
	require.NotContains(t, page, "bad")
}

func TestMapExplicitBound(t *testing.T) {
	var buf bytes.Buffer
	b := orb.Bound{Min: orb.Point{2, 48}, Max: orb.Point{3, 49}}
	require.NoError(t, Map(&buf, tracks(), Options{Bound: &b}))
	require.Contains(t, buf.String(), "var bounds = [[48,2],[49,3]]")
	require.Contains(t, buf.String(), "<title>Location history</title>")
}

func TestMapEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Map(&buf, nil, Options{}))
	require.Regexp(t, `var bounds = +null +;`, buf.String())
	require.Contains(t, buf.String(), "var tracks = [];")
}

func TestCaptureValidatesOptions(t *testing.T) {
	err := CapturePNG(context.Background(), CaptureOptions{OutputPath: "x.png"})
	require.ErrorContains(t, err, "URL is required")

	err = CapturePNG(context.Background(), CaptureOptions{URL: "http://127.0.0.1/map"})
	require.ErrorContains(t, err, "OutputPath is required")
}
