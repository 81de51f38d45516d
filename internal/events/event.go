package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type names a kind of event. The set of types is closed.
type Type string

// Known event types.
const (
	TypeSimple  Type = "a-simple-event"
	TypeComplex Type = "a-complex-event"
)

var knownTypes = []Type{TypeSimple, TypeComplex}

var (
	// ErrInvalidEventType is returned for a type outside the known set.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrInvalidPayload is returned when event data is not a JSON object.
	ErrInvalidPayload = errors.New("event data must be a JSON object")

	// ErrMalformedEvent is returned by Decode for bodies that are not events.
	ErrMalformedEvent = errors.New("malformed event")
)

// KnownTypes returns every event type, in declaration order.
func KnownTypes() []Type {
	return append([]Type(nil), knownTypes...)
}

// ParseType returns the known Type named by s.
func ParseType(s string) (Type, error) {
	for _, t := range knownTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
}

// Event is one published occurrence. Data is kept as raw JSON so it reaches
// subscribers exactly as the publisher sent it.
type Event struct {
	Timestamp time.Time
	Type      Type
	Data      json.RawMessage
}

// wireEvent is the JSON form shared by both backends.
type wireEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an event of type t at ts. Empty data becomes {}.
func NewEvent(t Type, data json.RawMessage, ts time.Time) (*Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = json.RawMessage(`{}`)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, ErrInvalidPayload
	}

	return &Event{Timestamp: ts.UTC(), Type: t, Data: data}, nil
}

// MarshalJSON encodes the event with an ISO-8601 timestamp.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Type:      e.Type,
		Data:      e.Data,
	})
}

// localTimestamp is ISO-8601 without a UTC offset, as written by publishers
// that format naive UTC datetimes.
const localTimestamp = "2006-01-02T15:04:05.999999999"

// parseTimestamp accepts RFC 3339 and offset-less ISO-8601, the latter
// read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return ts, nil
	}
	if naive, nerr := time.ParseInLocation(localTimestamp, s, time.UTC); nerr == nil {
		return naive, nil
	}
	return time.Time{}, err
}

// Decode parses a wire body. Unknown types are accepted so a relay built
// before a new type was added still forwards it.
func Decode(body []byte) (*Event, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", ErrMalformedEvent, err)
	}

	if len(w.Data) == 0 {
		w.Data = json.RawMessage(`{}`)
	}
	return &Event{Timestamp: ts, Type: w.Type, Data: w.Data}, nil
}
