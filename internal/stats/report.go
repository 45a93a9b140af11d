package stats

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Reporter prints statistics as console text. Styling is dropped
// automatically when w is not a terminal.
type Reporter struct {
	w       io.Writer
	title   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FFFF")),
		value:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#666666")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
	}
}

func (r *Reporter) num(v float64) string {
	return r.value.Render(fmt.Sprintf("%.1f", v))
}

// Place prints the place view.
func (r *Reporter) Place(p PlaceStats) {
	if p.Empty {
		fmt.Fprintln(r.w, r.warning.Render(p.Message()))
		return
	}
	fmt.Fprintf(r.w, "For %d days, I have been %d times at %s for a total of %s hours or %s hours/day\n",
		p.SpanDays, p.Visits, r.title.Render(p.Label), r.num(p.TotalHours), r.num(p.HoursPerDay))
}

// Activity prints the activity view.
func (r *Reporter) Activity(a ActivityStats) {
	if a.Empty {
		fmt.Fprintln(r.w, r.warning.Render(a.Message()))
		return
	}
	label := r.title.Render(a.Label)
	fmt.Fprintf(r.w, "For %d days, I have been %s %s times/day : %s km in total (%s km/days).\n",
		a.SpanDays, label, r.num(a.TimesPerDay), r.num(a.TotalKm), r.num(a.KmPerDay))
	fmt.Fprintf(r.w, "On average, each time I am %s is for %s min and %s km.\n",
		label, r.num(a.MeanMinutes), r.num(a.MeanKm))
}

// Daily prints one line per day in ascending date order.
func (r *Reporter) Daily(d DailyBreakdown) {
	fmt.Fprintln(r.w, r.muted.Render(fmt.Sprintf("%-10s  %9s  %8s  %8s", "date", "minutes", "km", "km/h")))
	for _, day := range d.Dates {
		speed := "-"
		if v, ok := d.Speed[day]; ok {
			speed = fmt.Sprintf("%.1f", v)
		}
		fmt.Fprintf(r.w, "%-10s  %9.1f  %8.1f  %8s\n", day, d.Minutes[day], d.Km[day], speed)
	}
}
