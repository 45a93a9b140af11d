// Package stats computes time and distance statistics over a merged
// event table for one place or activity.
package stats

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lochist/internal/model"
	"lochist/internal/table"
)

// ErrAmbiguousSelector is returned unless exactly one selector field is set.
var ErrAmbiguousSelector = errors.New("stats: exactly one of address, name or category must be set")

// Selector picks events by place address, place name or activity category.
type Selector struct {
	Address  string
	Name     string
	Category string
}

func (s Selector) validate() error {
	n := 0
	for _, v := range []string{s.Address, s.Name, s.Category} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return ErrAmbiguousSelector
	}
	return nil
}

// Selection is the subset of a table matched by a Selector.
type Selection struct {
	Events table.Table
	// Minutes holds each selected event's duration in minutes, row-aligned.
	Minutes    []float64
	TotalHours float64
	// SpanDays is the observation window of the whole table, not of the
	// selection: max EndDate minus min BeginDate, in days.
	SpanDays int
	Label    string
}

// Select filters t by sel. Categories are compared after title-casing.
func Select(t table.Table, sel Selector) (Selection, error) {
	if err := sel.validate(); err != nil {
		return Selection{}, err
	}

	span, err := spanDays(t)
	if err != nil {
		return Selection{}, err
	}

	var keep func(model.Event) bool
	out := Selection{SpanDays: span}
	switch {
	case sel.Address != "":
		out.Label = sel.Address
		keep = func(e model.Event) bool { return e.Address == sel.Address }
	case sel.Name != "":
		out.Label = sel.Name
		keep = func(e model.Event) bool { return e.Name == sel.Name }
	default:
		out.Label = sel.Category
		want := cases.Title(language.Und).String(sel.Category)
		keep = func(e model.Event) bool { return e.Category == want }
	}
	out.Events = t.Filter(keep)

	out.Minutes = make([]float64, len(out.Events))
	total := 0.0
	for i, ev := range out.Events {
		secs, err := ev.DurationSeconds()
		if err != nil {
			return Selection{}, fmt.Errorf("event %s: %w", ev.IndexTime, err)
		}
		out.Minutes[i] = float64(secs) / 60
		total += out.Minutes[i]
	}
	out.TotalHours = total / 60

	return out, nil
}

func spanDays(t table.Table) (int, error) {
	first, last, ok := t.DateRange()
	if !ok {
		return 0, nil
	}
	b, err := time.Parse(model.DateLayout, first)
	if err != nil {
		return 0, fmt.Errorf("begin date: %w", err)
	}
	e, err := time.Parse(model.DateLayout, last)
	if err != nil {
		return 0, fmt.Errorf("end date: %w", err)
	}
	return int(e.Sub(b).Hours() / 24), nil
}

// PlaceStats summarises time spent at one place.
type PlaceStats struct {
	Selection
	// Visits counts distinct BeginDate values.
	Visits      int
	HoursPerDay float64
	// Empty is set when the place never appears; the ratios are then unset.
	Empty bool
}

// Message is the human-readable outcome for an empty selection.
func (p PlaceStats) Message() string {
	if p.Empty {
		return "You never been to this place"
	}
	return ""
}

// Place computes the place view. sel must name an address or a place name.
func Place(t table.Table, sel Selector) (PlaceStats, error) {
	if sel.Category != "" {
		return PlaceStats{}, fmt.Errorf("place view takes an address or a name: %w", ErrAmbiguousSelector)
	}
	s, err := Select(t, sel)
	if err != nil {
		return PlaceStats{}, err
	}

	out := PlaceStats{Selection: s, Visits: len(s.Events.DistinctBeginDates())}
	if out.Visits == 0 {
		out.Empty = true
		return out, nil
	}
	out.HoursPerDay = s.TotalHours / float64(out.Visits)
	return out, nil
}

// ActivityStats summarises one activity category.
type ActivityStats struct {
	Selection
	// Days counts distinct BeginDate values.
	Days        int
	MeanMinutes float64
	MeanKm      float64
	TimesPerDay float64
	TotalKm     float64
	KmPerDay    float64
	// Empty is set when the activity never appears; the ratios are then unset.
	Empty bool
}

// Message is the human-readable outcome for an empty selection.
func (a ActivityStats) Message() string {
	if a.Empty {
		return "You never did this activity!"
	}
	return ""
}

// Activity computes the activity view for category.
func Activity(t table.Table, category string) (ActivityStats, error) {
	s, err := Select(t, Selector{Category: category})
	if err != nil {
		return ActivityStats{}, err
	}

	out := ActivityStats{Selection: s, Days: len(s.Events.DistinctBeginDates())}
	if len(s.Events) == 0 {
		out.Empty = true
		return out, nil
	}

	n := float64(len(s.Events))
	totalMin, totalMeters := 0.0, 0
	for i, ev := range s.Events {
		totalMin += s.Minutes[i]
		totalMeters += ev.Distance
	}

	out.MeanMinutes = totalMin / n
	out.TotalKm = float64(totalMeters) / 1000
	out.MeanKm = out.TotalKm / n
	out.TimesPerDay = n / float64(out.Days)
	out.KmPerDay = out.TotalKm / float64(out.Days)
	return out, nil
}

// DailyBreakdown holds per-day totals for an activity subset.
type DailyBreakdown struct {
	// Dates lists the keys of every map in ascending order.
	Dates   []string
	Minutes map[string]float64
	Km      map[string]float64
	// Speed is km/h. Days whose total time is zero have no entry.
	Speed map[string]float64
}

// Daily groups events by BeginDate.
func Daily(events table.Table) (DailyBreakdown, error) {
	out := DailyBreakdown{
		Dates:   events.DistinctBeginDates(),
		Minutes: make(map[string]float64),
		Km:      make(map[string]float64),
		Speed:   make(map[string]float64),
	}

	for _, ev := range events {
		secs, err := ev.DurationSeconds()
		if err != nil {
			return DailyBreakdown{}, fmt.Errorf("event %s: %w", ev.IndexTime, err)
		}
		out.Minutes[ev.BeginDate] += float64(secs) / 60
		out.Km[ev.BeginDate] += float64(ev.Distance) / 1000
	}

	for _, d := range out.Dates {
		if m := out.Minutes[d]; m > 0 {
			out.Speed[d] = out.Km[d] / (m / 60)
		}
	}
	return out, nil
}
