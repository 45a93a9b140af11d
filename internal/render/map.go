// Package render draws event tracks on a Leaflet map and captures the
// page as a PNG.
package render

import (
	_ "embed"
	"html/template"
	"io"

	"github.com/paulmach/orb"

	appLog "lochist/internal/log"
	"lochist/internal/table"
)

//go:embed map.html
var mapHTML string

var mapTemplate = template.Must(template.New("map").Parse(mapHTML))

// Options controls the map page.
type Options struct {
	Title string
	// Bound restricts the view; nil fits every drawn track.
	Bound *orb.Bound
}

type pageData struct {
	Title string
	// Tracks are [lat, lng] pairs, the order Leaflet expects.
	Tracks [][][2]float64
	// Bounds is [[south, west], [north, east]] or nil.
	Bounds *[2][2]float64
}

// Map writes a standalone HTML page drawing the track of every event.
// Events whose coordinates do not parse are logged and left out.
func Map(w io.Writer, events table.Table, opts Options) error {
	data := pageData{Title: opts.Title, Tracks: make([][][2]float64, 0, len(events))}
	if data.Title == "" {
		data.Title = "Location history"
	}

	var fitted orb.Bound
	drawn := 0
	for _, ev := range events {
		if len(ev.Track) == 0 {
			continue
		}
		ls, err := ev.Track.LineString()
		if err != nil {
			appLog.Warn("render: skipping track", "event", ev.IndexTime, "err", err)
			continue
		}

		pts := make([][2]float64, len(ls))
		for i, p := range ls {
			pts[i] = [2]float64{p.Lat(), p.Lon()}
		}
		data.Tracks = append(data.Tracks, pts)

		if drawn == 0 {
			fitted = ls.Bound()
		} else {
			fitted = fitted.Union(ls.Bound())
		}
		drawn++
	}

	switch {
	case opts.Bound != nil:
		data.Bounds = leafletBounds(*opts.Bound)
	case drawn > 0:
		data.Bounds = leafletBounds(fitted)
	}

	return mapTemplate.Execute(w, data)
}

func leafletBounds(b orb.Bound) *[2][2]float64 {
	return &[2][2]float64{
		{b.Min.Lat(), b.Min.Lon()},
		{b.Max.Lat(), b.Max.Lon()},
	}
}
