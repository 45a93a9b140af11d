package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Layouts used for the local-zone strings stored on an Event.
const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04:05"
	DateTimeLayout = DateLayout + " " + ClockLayout
)

// Coord is one (longitude, latitude) pair as it appeared in the source.
type Coord struct {
	Lon string
	Lat string
}

// Track is the ordered path of a movement segment.
type Track []Coord

// LineString converts the track into an orb geometry (X = lon, Y = lat).
func (t Track) LineString() (orb.LineString, error) {
	ls := make(orb.LineString, 0, len(t))
	for i, c := range t {
		lon, err := strconv.ParseFloat(c.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("track point %d: longitude %q: %w", i, c.Lon, err)
		}
		lat, err := strconv.ParseFloat(c.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("track point %d: latitude %q: %w", i, c.Lat, err)
		}
		ls = append(ls, orb.Point{lon, lat})
	}
	return ls, nil
}

// LengthMeters returns the geodesic length of the track. Unparsable tracks
// report zero length along with the error.
func (t Track) LengthMeters() (float64, error) {
	ls, err := t.LineString()
	if err != nil {
		return 0, err
	}
	return geo.Length(ls), nil
}

// Event is one normalized placemark: a stationary visit or a movement
// segment. All date/time strings are wall-clock values in the zone the
// normalizer was configured with.
type Event struct {
	BeginDate string
	BeginTime string
	EndDate   string
	EndTime   string

	// Duration is formatted as "Nh Mmin Ssec"; see FormatDuration.
	Duration string
	// WeekDay is 0 for Monday through 6 for Sunday.
	WeekDay int
	// IndexTime is "BeginDate BeginTime" and is the table sort key.
	IndexTime string

	Address  string
	Name     string
	Category string

	// Distance is meters moved, truncated to an integer.
	Distance int

	Track Track
}

// EventKey is every Event field except Track. Two events with equal keys
// are the same event for merge purposes.
type EventKey struct {
	BeginDate string
	BeginTime string
	EndDate   string
	EndTime   string
	Duration  string
	WeekDay   int
	IndexTime string
	Address   string
	Name      string
	Category  string
	Distance  int
}

// Key returns the equality key of e.
func (e Event) Key() EventKey {
	return EventKey{
		BeginDate: e.BeginDate,
		BeginTime: e.BeginTime,
		EndDate:   e.EndDate,
		EndTime:   e.EndTime,
		Duration:  e.Duration,
		WeekDay:   e.WeekDay,
		IndexTime: e.IndexTime,
		Address:   e.Address,
		Name:      e.Name,
		Category:  e.Category,
		Distance:  e.Distance,
	}
}

// DurationSeconds parses e.Duration back into seconds.
func (e Event) DurationSeconds() (int, error) {
	return ParseDuration(e.Duration)
}

// Begin returns the begin instant interpreted in loc.
func (e Event) Begin(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, e.BeginDate+" "+e.BeginTime, loc)
}

// End returns the end instant interpreted in loc.
func (e Event) End(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, e.EndDate+" "+e.EndTime, loc)
}

// MondayWeekday maps time.Weekday (Sunday = 0) onto Monday = 0.
func MondayWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}
