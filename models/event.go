package models

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventEntrada       EventType = "entrada"
	EventSaidaAlmoco   EventType = "saida_almoco"
	EventRetornoAlmoco EventType = "retorno_almoco"
	EventSaida         EventType = "saida"
)

// EventTypes lists the four time-clock marks in the order of a normal workday.
var EventTypes = []EventType{EventEntrada, EventSaidaAlmoco, EventRetornoAlmoco, EventSaida}

func (t EventType) Valid() bool {
	switch t {
	case EventEntrada, EventSaidaAlmoco, EventRetornoAlmoco, EventSaida:
		return true
	}
	return false
}

// ParseEventType accepts the wire value, trimming spaces and case.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid event type %q", s)
	}
	return t, nil
}

// NextEventType returns the first mark of the day not yet recorded, following
// entrada -> saida_almoco -> retorno_almoco -> saida. ok is false once the day is complete.
func NextEventType(recorded []EventType) (EventType, bool) {
	seen := make(map[EventType]bool, len(recorded))
	for _, t := range recorded {
		seen[t] = true
	}
	for _, t := range EventTypes {
		if !seen[t] {
			return t, true
		}
	}
	return "", false
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// AttendanceEvent is one check-in attempt. Build it with NewAttendanceEvent and
// pass it by value; it is never changed after construction.
type AttendanceEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Type       EventType `json:"type"`
	CapturedAt time.Time `json:"captured_at"`
	Photo      string    `json:"photo,omitempty"`
	Location   *Location `json:"location,omitempty"`
	DeviceInfo string    `json:"device_info,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// NewAttendanceEvent copies loc so later changes by the caller do not leak in.
func NewAttendanceEvent(id, userID string, typ EventType, capturedAt time.Time, photo string, loc *Location, deviceInfo, note string) AttendanceEvent {
	var l *Location
	if loc != nil {
		c := *loc
		l = &c
	}
	return AttendanceEvent{
		ID:         id,
		UserID:     userID,
		Type:       typ,
		CapturedAt: capturedAt.UTC(),
		Photo:      photo,
		Location:   l,
		DeviceInfo: deviceInfo,
		Note:       note,
	}
}

func (e AttendanceEvent) HasPhoto() bool { return e.Photo != "" }

// WithoutPhoto is used when listing the queue to the UI; photos are large.
func (e AttendanceEvent) WithoutPhoto() AttendanceEvent {
	e.Photo = ""
	if e.Location != nil {
		c := *e.Location
		e.Location = &c
	}
	return e
}

type Confirmation struct {
	EventID  string    `json:"event_id"`
	RemoteID string    `json:"remote_id"`
	At       time.Time `json:"at"`
}
