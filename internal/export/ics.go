// Package export writes the merged event table to formats other tools
// can consume: iCalendar feeds and SQLite snapshots.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"lochist/internal/model"
	"lochist/internal/table"
)

// ICSOptions controls calendar export.
type ICSOptions struct {
	// Location is the zone the table's wall-clock strings are in.
	// If nil, time.Local is used.
	Location *time.Location
	// Stamp is written as DTSTAMP on every event; zero means now.
	Stamp time.Time
}

// EventUID derives a stable UID from every non-Track field, so a
// re-export of the same history produces the same UIDs.
func EventUID(ev model.Event) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", ev.Key())))
	return hex.EncodeToString(sum[:8]) + "@lochist"
}

// Summary is the calendar title of an event: the place or activity name,
// falling back to the category.
func Summary(ev model.Event) string {
	if ev.Name != "" {
		return ev.Name
	}
	if ev.Category != "" {
		return ev.Category
	}
	return "Unknown"
}

// WriteICS writes one VEVENT per row of t.
func WriteICS(w io.Writer, t table.Table, opts ICSOptions) error {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//lochist//location history//EN")

	for _, ev := range t {
		begin, err := ev.Begin(loc)
		if err != nil {
			return fmt.Errorf("event %s: begin: %w", ev.IndexTime, err)
		}
		end, err := ev.End(loc)
		if err != nil {
			return fmt.Errorf("event %s: end: %w", ev.IndexTime, err)
		}

		ve := cal.AddEvent(EventUID(ev))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(begin)
		ve.SetEndAt(end)
		ve.SetSummary(Summary(ev))
		if ev.Address != "" {
			ve.SetLocation(ev.Address)
		}
		if ev.Category != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, ev.Category)
		}
		ve.SetDescription(fmt.Sprintf("%s, %d m", ev.Duration, ev.Distance))
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
