package ponto

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MaldivaSky/mercadinhosys-sub003/camera"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

// Attempt is one mark in the Collecting state. It ends with Commit or Cancel;
// after that every call returns ErrAttemptClosed.
type Attempt struct {
	r *Recorder

	mu       sync.Mutex
	req      Request
	location *models.Location
	photo    string
	closed   bool
}

// NeedsPhoto reports whether Commit would stop at the photo suspension point.
func (a *Attempt) NeedsPhoto() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.req.RequirePhoto && a.photo == ""
}

// AttachPhoto sets an already encoded photo (data URL).
func (a *Attempt) AttachPhoto(photo string) error {
	photo = strings.TrimSpace(photo)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAttemptClosed
	}
	if photo == "" {
		return fmt.Errorf("%w: empty photo", ErrPhotoCaptureFailed)
	}
	a.photo = photo
	return nil
}

// Capture grabs one frame from src. A camera failure aborts the attempt:
// nothing is built and nothing is queued.
func (a *Attempt) Capture(ctx context.Context, src camera.Source) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrAttemptClosed
	}

	photo, err := camera.Capture(ctx, src, a.r.opts.Camera)
	if err != nil {
		a.close()
		a.r.log.Warn("photo_capture_failed", map[string]any{"type": a.req.Type, "err": err})
		return fmt.Errorf("%w: %w", ErrPhotoCaptureFailed, err)
	}
	return a.AttachPhoto(photo.DataURL())
}

func (a *Attempt) Cancel() {
	if a.close() {
		a.r.log.Info("attempt_cancelled", map[string]any{"type": a.req.Type})
	}
}

// Commit builds the event and submits or queues it. While a required photo
// is still missing it returns OutcomeAwaitingPhoto and the attempt stays open.
func (a *Attempt) Commit(ctx context.Context) (models.Outcome, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return models.Outcome{}, ErrAttemptClosed
	}
	if a.req.RequirePhoto && a.photo == "" {
		a.mu.Unlock()
		pending, _ := a.r.Pending(ctx)
		return models.Outcome{Status: models.OutcomeAwaitingPhoto, Pending: pending}, nil
	}
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		return models.Outcome{}, err
	}
	a.closed = true
	ev := models.NewAttendanceEvent(
		a.r.deps.NewID(),
		a.req.UserID,
		a.req.Type,
		a.r.deps.Now(),
		a.photo,
		a.location,
		a.r.opts.DeviceInfo,
		a.req.Note,
	)
	a.mu.Unlock()

	return a.r.submitOrQueue(ctx, ev)
}

func (a *Attempt) close() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.closed = true
	return true
}
