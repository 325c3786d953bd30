package models

import "time"

type OutcomeStatus string

const (
	OutcomeConfirmed     OutcomeStatus = "confirmed"
	OutcomeQueued        OutcomeStatus = "queued"
	OutcomeRejected      OutcomeStatus = "rejected"
	OutcomeAwaitingPhoto OutcomeStatus = "photo_required"
)

// Outcome is the single result of a recordEvent call.
type Outcome struct {
	Status       OutcomeStatus    `json:"status"`
	Event        *AttendanceEvent `json:"event,omitempty"`
	Confirmation *Confirmation    `json:"confirmation,omitempty"`
	Rejection    string           `json:"rejection,omitempty"`
	Pending      int              `json:"pending"`
}

type DrainReport struct {
	Confirmed   []Confirmation `json:"confirmed"`
	Pending     int            `json:"pending"`
	Interrupted bool           `json:"interrupted"`
	FailedEvent string         `json:"failed_event,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type DayStatus string

const (
	DayConfirmed DayStatus = "confirmed"
	DayQueued    DayStatus = "queued"
)

// DayEntry is one mark already taken today, used by the UI to keep one mark per type per day.
type DayEntry struct {
	EventID string    `json:"event_id"`
	UserID  string    `json:"user_id,omitempty"`
	Type    EventType `json:"type"`
	Status  DayStatus `json:"status"`
	At      time.Time `json:"at"`
}

type NotificationKind string

const (
	NotifyQueued    NotificationKind = "queued"
	NotifyConfirmed NotificationKind = "confirmed"
	NotifyRejected  NotificationKind = "rejected"
	NotifyPending   NotificationKind = "pending"
	NotifyOnline    NotificationKind = "online"
	NotifyOffline   NotificationKind = "offline"
)

type Notification struct {
	Kind    NotificationKind `json:"kind"`
	EventID string           `json:"event_id,omitempty"`
	Type    EventType        `json:"type,omitempty"`
	Message string           `json:"message,omitempty"`
	Pending int              `json:"pending"`
	At      time.Time        `json:"at"`
}
