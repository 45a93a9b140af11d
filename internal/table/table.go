// Package table assembles normalized events into ordered tables and
// merges the tables of overlapping daily exports.
package table

import (
	"slices"
	"strings"

	"lochist/internal/model"
)

// Table is an ordered sequence of events, newest IndexTime first.
type Table []model.Event

// Build orders events by IndexTime, descending. The fixed zero-padded
// layout makes a string comparison a chronological one. Ties keep their
// input order.
func Build(events []model.Event) Table {
	t := make(Table, len(events))
	copy(t, events)
	sortDescending(t)
	return t
}

func sortDescending(t Table) {
	slices.SortStableFunc(t, func(a, b model.Event) int {
		return strings.Compare(b.IndexTime, a.IndexTime)
	})
}

// Merge concatenates tables, re-sorts them and drops every event whose
// non-Track fields equal an earlier event's. The first occurrence wins,
// Track included. Two distinct events that agree on every non-Track
// field are indistinguishable and collapse into one.
func Merge(tables ...Table) Table {
	n := 0
	for _, t := range tables {
		n += len(t)
	}

	all := make(Table, 0, n)
	for _, t := range tables {
		all = append(all, t...)
	}
	sortDescending(all)

	seen := make(map[model.EventKey]struct{}, len(all))
	out := make(Table, 0, len(all))
	for _, ev := range all {
		k := ev.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// Tracks returns the Track column in row order.
func (t Table) Tracks() []model.Track {
	out := make([]model.Track, len(t))
	for i, ev := range t {
		out[i] = ev.Track
	}
	return out
}

// Filter returns the events for which keep reports true, order preserved.
func (t Table) Filter(keep func(model.Event) bool) Table {
	out := make(Table, 0)
	for _, ev := range t {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// DateRange returns the minimum BeginDate and maximum EndDate of t.
func (t Table) DateRange() (first, last string, ok bool) {
	if len(t) == 0 {
		return "", "", false
	}
	first, last = t[0].BeginDate, t[0].EndDate
	for _, ev := range t[1:] {
		if ev.BeginDate < first {
			first = ev.BeginDate
		}
		if ev.EndDate > last {
			last = ev.EndDate
		}
	}
	return first, last, true
}

// DistinctBeginDates returns the distinct BeginDate values in ascending order.
func (t Table) DistinctBeginDates() []string {
	set := make(map[string]struct{})
	for _, ev := range t {
		set[ev.BeginDate] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}
