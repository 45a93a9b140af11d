package kml

import (
	"errors"
	"fmt"
)

// ErrNegativeDuration reports a record whose end precedes its begin.
var ErrNegativeDuration = errors.New("end precedes begin")

// MalformedRecordError reports a placemark that lacks an expected field
// shape (time span, geometry) or carries an unusable attribute value.
type MalformedRecordError struct {
	// Index is the placemark's position within its source document.
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("placemark %d: field %s: %s", e.Index, e.Field, e.Reason)
}

// TimestampParseError reports a timestamp that is not ISO-8601 UTC.
type TimestampParseError struct {
	Field string
	Value string
	Err   error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("timestamp %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *TimestampParseError) Unwrap() error {
	return e.Err
}
