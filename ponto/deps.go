package ponto

import (
	"context"
	"time"

	"github.com/MaldivaSky/mercadinhosys-sub003/camera"
	"github.com/MaldivaSky/mercadinhosys-sub003/jsonlog"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

// Store is the durable ordered retry queue. Implementations must be safe for
// concurrent use: Append runs from recordEvent while a drain pops the front.
// PopFront removes exactly the event the drain just confirmed; an id that is
// no longer queued is a no-op.
type Store interface {
	Append(ctx context.Context, ev models.AttendanceEvent) error
	PeekFront(ctx context.Context) (models.AttendanceEvent, bool, error)
	PopFront(ctx context.Context, eventID string) error
	Clear(ctx context.Context) error
	LoadAll(ctx context.Context) ([]models.AttendanceEvent, error)
	Len(ctx context.Context) (int, error)
}

// DrainLocker is implemented by stores that more than one recorder can reach
// (several terminals on one database). Drain holds the lock for its whole run;
// ok=false means another recorder is draining. Such stores are never Cleared
// by a drain, since other recorders append to them at any time.
type DrainLocker interface {
	LockDrain(ctx context.Context) (release func(), ok bool, err error)
}

// Submitter sends one event to the remote API. Errors must be classified:
// *RejectedError (or anything matching ErrValidationRejected) for a verdict,
// anything else is treated as a transport failure.
type Submitter interface {
	Submit(ctx context.Context, ev models.AttendanceEvent) (models.Confirmation, error)
}

// Locator is the geolocation provider: a one-shot reading or an error.
type Locator interface {
	Locate(ctx context.Context) (models.Location, error)
}

type Notifier interface {
	Notify(n models.Notification)
}

type NotifierFunc func(n models.Notification)

func (f NotifierFunc) Notify(n models.Notification) { f(n) }

type Deps struct {
	Store     Store
	Submitter Submitter
	Locator   Locator  // optional
	Notifier  Notifier // optional
	Logger    *jsonlog.Logger
	Now       func() time.Time
	NewID     func() string
}

type Options struct {
	LocationTimeout time.Duration // default 10s
	SubmitTimeout   time.Duration // default 15s, covers photo upload + POST
	DeviceInfo      string
	StartOnline     bool
	Camera          camera.Options
}

func DefaultOptions() Options {
	return Options{
		LocationTimeout: 10 * time.Second,
		SubmitTimeout:   15 * time.Second,
		StartOnline:     true,
	}
}
