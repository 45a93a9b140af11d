package kml

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lochist/internal/model"
)

// TimestampLayout is the UTC format used by timeline exports. Fractional
// seconds ("...:05.123Z") are accepted by time.Parse without being named.
const TimestampLayout = "2006-01-02T15:04:05Z"

// clampToken is an altitude-mode marker that shows up among track points.
const clampToken = "clampToGround"

// Normalizer turns Placemarks into Events in a fixed local zone.
type Normalizer struct {
	// Location is the zone wall-clock strings are rendered in. If nil,
	// time.Local is used.
	Location *time.Location
}

// NewNormalizer returns a Normalizer for loc (nil means time.Local).
func NewNormalizer(loc *time.Location) Normalizer {
	return Normalizer{Location: loc}
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

// ParseTimestamp parses an ISO-8601 UTC timestamp with a Z suffix.
func ParseTimestamp(field, raw string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &TimestampParseError{Field: field, Value: raw, Err: err}
	}
	return t, nil
}

// ConvertTimezone renders a UTC timestamp as "YYYY-MM-DD HH:MM:SS" in the
// normalizer's zone.
func (n Normalizer) ConvertTimezone(raw string) (string, error) {
	t, err := ParseTimestamp("timestamp", raw)
	if err != nil {
		return "", err
	}
	return t.In(n.location()).Format(model.DateTimeLayout), nil
}

// Normalize converts one parsed placemark into an Event.
func (n Normalizer) Normalize(p Placemark) (model.Event, error) {
	var ev model.Event

	span, ok := p.Sequence(FieldTimeSpan)
	if !ok || len(span) != 2 {
		return ev, &MalformedRecordError{Index: p.Index, Field: FieldTimeSpan, Reason: "missing begin/end pair"}
	}
	begin, err := ParseTimestamp("begin", span[0])
	if err != nil {
		return ev, err
	}
	end, err := ParseTimestamp("end", span[1])
	if err != nil {
		return ev, err
	}

	elapsed := end.Sub(begin)
	if elapsed < 0 {
		return ev, fmt.Errorf("placemark %d: %s before %s: %w", p.Index, span[1], span[0], ErrNegativeDuration)
	}
	ev.Duration = model.FormatDuration(int(elapsed / time.Second))

	loc := n.location()
	localBegin := begin.In(loc)
	localEnd := end.In(loc)

	ev.IndexTime = localBegin.Format(model.DateTimeLayout)
	ev.BeginDate = localBegin.Format(model.DateLayout)
	ev.BeginTime = localBegin.Format(model.ClockLayout)
	ev.EndDate = localEnd.Format(model.DateLayout)
	ev.EndTime = localEnd.Format(model.ClockLayout)
	ev.WeekDay = model.MondayWeekday(localBegin.Weekday())

	ev.Address = p.Text(FieldAddress)
	ev.Name = p.Text(FieldName)
	ev.Category = titleCase(p.Text(FieldCategory))

	ev.Distance, err = parseDistance(p.Text(FieldDistance))
	if err != nil {
		return model.Event{}, &MalformedRecordError{Index: p.Index, Field: FieldDistance, Reason: err.Error()}
	}

	tokens, ok := p.Sequence(FieldTrack)
	if !ok {
		return model.Event{}, &MalformedRecordError{Index: p.Index, Field: FieldTrack, Reason: "missing geometry"}
	}
	ev.Track, err = cleanTrack(tokens)
	if err != nil {
		return model.Event{}, &MalformedRecordError{Index: p.Index, Field: FieldTrack, Reason: err.Error()}
	}

	return ev, nil
}

// parseDistance truncates fractional meters; a missing value is zero.
func parseDistance(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// cleanTrack drops clamp markers and splits each token into coordinate
// pairs. A token is either "lon lat [alt]" or one or more "lon,lat[,alt]"
// tuples separated by whitespace.
func cleanTrack(tokens []string) (model.Track, error) {
	track := make(model.Track, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" || tok == clampToken {
			continue
		}

		fields := strings.Fields(tok)
		if !strings.Contains(tok, ",") {
			if len(fields) < 2 {
				return nil, fmt.Errorf("coordinate %q: want lon and lat", tok)
			}
			track = append(track, model.Coord{Lon: fields[0], Lat: fields[1]})
			continue
		}

		for _, f := range fields {
			parts := strings.Split(f, ",")
			if len(parts) < 2 {
				return nil, fmt.Errorf("coordinate %q: want lon and lat", f)
			}
			track = append(track, model.Coord{Lon: parts[0], Lat: parts[1]})
		}
	}
	return track, nil
}
