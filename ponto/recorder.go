// Package ponto records time-clock marks. A mark is submitted right away when
// the API is reachable and otherwise kept in a durable FIFO queue that is
// replayed, in order, once connectivity comes back.
package ponto

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MaldivaSky/mercadinhosys-sub003/jsonlog"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

const persistTimeout = 5 * time.Second

type Recorder struct {
	deps Deps
	opts Options
	log  *jsonlog.Logger

	online   atomic.Bool
	draining atomic.Bool

	// qmu serialises Append against the final empty-check of a drain.
	qmu sync.Mutex

	mu      sync.Mutex
	journal []models.DayEntry
	// confirmed but not yet popped (PopFront failed); never submitted again.
	unpopped map[string]models.Confirmation
}

// Request is what the UI asks for when the employee presses a mark button.
type Request struct {
	Type            models.EventType
	UserID          string
	RequireLocation bool
	RequirePhoto    bool
	// Location and Photo may come already filled by the browser.
	Location *models.Location
	Photo    string
	Note     string
}

func New(deps Deps, opts Options) *Recorder {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = jsonlog.Discard()
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(models.Notification) {})
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = 10 * time.Second
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 15 * time.Second
	}

	r := &Recorder{
		deps:     deps,
		opts:     opts,
		log:      deps.Logger.With(map[string]any{"component": "ponto"}),
		unpopped: make(map[string]models.Confirmation),
	}
	r.online.Store(opts.StartOnline)
	return r
}

func (r *Recorder) Online() bool { return r.online.Load() }

// Begin runs the collecting phase up to the photo suspension point.
func (r *Recorder) Begin(ctx context.Context, req Request) (*Attempt, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, req.Type)
	}

	loc, locErr := r.locate(ctx, req.Location)
	if loc == nil {
		if req.RequireLocation {
			r.log.Warn("location_required_unavailable", map[string]any{"type": req.Type, "err": locErr})
			return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, locErr)
		}
		r.log.Info("location_skipped", map[string]any{"type": req.Type, "err": locErr})
	}

	return &Attempt{r: r, req: req, location: loc, photo: req.Photo}, nil
}

// RecordEvent is Begin + Commit. When a photo is required and missing it
// returns an OutcomeAwaitingPhoto outcome and a nil error; nothing is built.
func (r *Recorder) RecordEvent(ctx context.Context, req Request) (models.Outcome, error) {
	a, err := r.Begin(ctx, req)
	if err != nil {
		return models.Outcome{}, err
	}
	return a.Commit(ctx)
}

func (r *Recorder) locate(ctx context.Context, provided *models.Location) (*models.Location, error) {
	if provided != nil {
		if !provided.Valid() {
			return nil, fmt.Errorf("invalid coordinates %v,%v", provided.Latitude, provided.Longitude)
		}
		l := *provided
		return &l, nil
	}
	if r.deps.Locator == nil {
		return nil, fmt.Errorf("no geolocation provider")
	}

	lctx, cancel := context.WithTimeout(ctx, r.opts.LocationTimeout)
	defer cancel()

	l, err := r.deps.Locator.Locate(lctx)
	if err != nil {
		return nil, err
	}
	if !l.Valid() {
		return nil, fmt.Errorf("invalid coordinates %v,%v", l.Latitude, l.Longitude)
	}
	return &l, nil
}

func (r *Recorder) submitOrQueue(ctx context.Context, ev models.AttendanceEvent) (models.Outcome, error) {
	if !r.Online() {
		return r.enqueue(ctx, ev)
	}

	// com fila pendente a marcação entra atrás dela, para não chegar antes das anteriores
	if pending, err := r.Pending(ctx); err != nil || pending > 0 || r.draining.Load() {
		return r.enqueueAndDrain(ctx, ev)
	}

	// o evento já existe: se o browser desistir do request o envio continua
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.SubmitTimeout)
	conf, err := r.deps.Submitter.Submit(sctx, ev)
	cancel()

	if err == nil {
		conf = r.normalize(ev, conf)
		r.remember(ev, models.DayConfirmed, conf.At)
		pending, _ := r.Pending(ctx)

		r.log.Info("event_confirmed", map[string]any{"event_id": ev.ID, "type": ev.Type, "remote_id": conf.RemoteID})
		r.notify(models.Notification{Kind: models.NotifyConfirmed, EventID: ev.ID, Type: ev.Type, Pending: pending})
		return models.Outcome{Status: models.OutcomeConfirmed, Event: &ev, Confirmation: &conf, Pending: pending}, nil
	}

	if msg, ok := Rejection(err); ok {
		pending, _ := r.Pending(ctx)
		r.log.Warn("event_rejected", map[string]any{"event_id": ev.ID, "type": ev.Type, "err": err})
		r.notify(models.Notification{Kind: models.NotifyRejected, EventID: ev.ID, Type: ev.Type, Message: msg, Pending: pending})
		return models.Outcome{Status: models.OutcomeRejected, Event: &ev, Rejection: msg, Pending: pending}, err
	}

	r.log.Warn("submit_failed_queueing", map[string]any{"event_id": ev.ID, "type": ev.Type, "err": err})
	// a rede caiu: as próximas marcações vão direto para a fila até o watcher ver a API de novo
	r.Unreachable()
	return r.enqueue(ctx, ev)
}

// enqueueAndDrain queues ev behind the pending events and replays the queue
// right away. ev is reported confirmed only if this drain got to it.
func (r *Recorder) enqueueAndDrain(ctx context.Context, ev models.AttendanceEvent) (models.Outcome, error) {
	out, err := r.enqueue(ctx, ev)
	if err != nil {
		return out, err
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.SubmitTimeout)
	defer cancel()
	report, err := r.Drain(dctx)
	if err != nil {
		r.log.Info("queued_behind_pending", map[string]any{"event_id": ev.ID, "pending": report.Pending, "err": err})
		if n, perr := r.Pending(dctx); perr == nil {
			out.Pending = n
		}
		return out, nil
	}

	for _, conf := range report.Confirmed {
		if conf.EventID == ev.ID {
			c := conf
			return models.Outcome{Status: models.OutcomeConfirmed, Event: &ev, Confirmation: &c, Pending: report.Pending}, nil
		}
	}
	out.Pending = report.Pending
	return out, nil
}

func (r *Recorder) enqueue(ctx context.Context, ev models.AttendanceEvent) (models.Outcome, error) {
	// o evento já foi capturado: persiste mesmo que o chamador tenha desistido
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	r.qmu.Lock()
	err := r.deps.Store.Append(sctx, ev)
	r.qmu.Unlock()
	if err != nil {
		r.log.Error("queue_append_failed", map[string]any{"event_id": ev.ID, "err": err})
		return models.Outcome{}, fmt.Errorf("persist queued event %s: %w", ev.ID, err)
	}

	pending, _ := r.Pending(sctx)
	r.remember(ev, models.DayQueued, ev.CapturedAt)

	r.log.Info("event_queued", map[string]any{"event_id": ev.ID, "type": ev.Type, "pending": pending})
	r.notify(models.Notification{Kind: models.NotifyQueued, EventID: ev.ID, Type: ev.Type, Pending: pending})
	return models.Outcome{Status: models.OutcomeQueued, Event: &ev, Pending: pending}, nil
}

// Drain replays the queue front to back and stops at the first failure,
// leaving the failed event and everything after it queued.
func (r *Recorder) Drain(ctx context.Context) (models.DrainReport, error) {
	if !r.Online() {
		return models.DrainReport{}, ErrOffline
	}
	if !r.draining.CompareAndSwap(false, true) {
		return models.DrainReport{}, ErrDrainInProgress
	}
	// finishDrain libera a flag no caminho feliz; depois dela outro Drain pode já ter começado
	finished := false
	defer func() {
		if !finished {
			r.draining.Store(false)
		}
	}()

	report := models.DrainReport{Confirmed: []models.Confirmation{}}

	// fila compartilhada: só um recorder (de qualquer terminal) drena por vez
	release := func() {}
	locker, shared := r.deps.Store.(DrainLocker)
	if shared {
		unlock, ok, err := locker.LockDrain(ctx)
		if err != nil {
			return r.interrupt(ctx, report, "", fmt.Errorf("lock drain: %w", err))
		}
		if !ok {
			return models.DrainReport{}, ErrDrainInProgress
		}
		var once sync.Once
		release = func() { once.Do(unlock) }
		defer release()
	}

	for {
		if err := ctx.Err(); err != nil {
			return r.interrupt(ctx, report, "", err)
		}

		ev, ok, err := r.deps.Store.PeekFront(ctx)
		if err != nil {
			return r.interrupt(ctx, report, "", err)
		}
		if !ok {
			done, err := r.finishDrain(ctx, shared, release)
			if err != nil {
				return r.interrupt(ctx, report, "", err)
			}
			if done {
				finished = true
				break
			}
			continue
		}

		conf, popped := r.takeUnpopped(ev.ID)
		if !popped {
			conf, err = r.deps.Submitter.Submit(ctx, ev)
			if err != nil {
				// cancelamento do chamador não diz nada sobre a rede
				if _, rejected := Rejection(err); !rejected && ctx.Err() == nil {
					r.Unreachable()
				}
				return r.interrupt(ctx, report, ev.ID, err)
			}
			conf = r.normalize(ev, conf)
		}

		if err := r.deps.Store.PopFront(ctx, ev.ID); err != nil {
			r.markUnpopped(conf)
			return r.interrupt(ctx, report, ev.ID, err)
		}

		report.Confirmed = append(report.Confirmed, conf)
		r.remember(ev, models.DayConfirmed, conf.At)
		r.log.Info("queued_event_confirmed", map[string]any{"event_id": ev.ID, "type": ev.Type, "remote_id": conf.RemoteID})
		r.notify(models.Notification{Kind: models.NotifyConfirmed, EventID: ev.ID, Type: ev.Type})
	}

	if shared {
		// outros terminais podem ter enfileirado enquanto este drenava
		report.Pending, _ = r.Pending(ctx)
	}
	r.log.Info("queue_drained", map[string]any{"confirmed": len(report.Confirmed), "pending": report.Pending})
	return report, nil
}

// finishDrain re-checks the queue under qmu so an Append racing the end of the
// drain is either seen here or finds the draining flag already cleared.
// A store of this recorder alone is Cleared once empty.
func (r *Recorder) finishDrain(ctx context.Context, shared bool, release func()) (bool, error) {
	r.qmu.Lock()
	defer r.qmu.Unlock()

	_, more, err := r.deps.Store.PeekFront(ctx)
	if err != nil {
		return false, err
	}
	if more {
		return false, nil
	}
	if !shared {
		if err := r.deps.Store.Clear(ctx); err != nil {
			return false, err
		}
	}
	release()
	r.draining.Store(false)
	return true, nil
}

func (r *Recorder) interrupt(ctx context.Context, report models.DrainReport, eventID string, cause error) (models.DrainReport, error) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	report.Interrupted = true
	report.FailedEvent = eventID
	report.Error = cause.Error()
	report.Pending, _ = r.Pending(pctx)

	r.log.Warn("queue_drain_interrupted", map[string]any{
		"event_id":  eventID,
		"confirmed": len(report.Confirmed),
		"pending":   report.Pending,
		"err":       cause,
	})
	r.notify(models.Notification{
		Kind:    models.NotifyPending,
		EventID: eventID,
		Message: cause.Error(),
		Pending: report.Pending,
	})
	return report, fmt.Errorf("%w: %w", ErrQueueDrainInterrupted, cause)
}

// Reachable handles the "became reachable" signal. Only the offline->online
// transition triggers a drain.
func (r *Recorder) Reachable(ctx context.Context) (models.DrainReport, error) {
	if !r.online.CompareAndSwap(false, true) {
		return models.DrainReport{Confirmed: []models.Confirmation{}}, nil
	}
	pending, _ := r.Pending(ctx)
	r.log.Info("connectivity_online", map[string]any{"pending": pending})
	r.notify(models.Notification{Kind: models.NotifyOnline, Pending: pending})
	return r.Drain(ctx)
}

func (r *Recorder) Unreachable() {
	if !r.online.CompareAndSwap(true, false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	pending, _ := r.Pending(ctx)
	r.log.Info("connectivity_offline", map[string]any{"pending": pending})
	r.notify(models.Notification{Kind: models.NotifyOffline, Pending: pending})
}

func (r *Recorder) Pending(ctx context.Context) (int, error) {
	return r.deps.Store.Len(ctx)
}

func (r *Recorder) Queued(ctx context.Context) ([]models.AttendanceEvent, error) {
	return r.deps.Store.LoadAll(ctx)
}

// Today lists the marks taken on the current local day, confirmed or queued.
func (r *Recorder) Today(ctx context.Context) ([]models.DayEntry, error) {
	now := r.deps.Now()
	queued, err := r.deps.Store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	out := make([]models.DayEntry, 0, len(r.journal)+len(queued))
	seen := make(map[string]bool, len(r.journal))
	for _, e := range r.journal {
		if sameDay(e.At, now) {
			out = append(out, e)
			seen[e.EventID] = true
		}
	}
	r.mu.Unlock()

	// eventos que sobreviveram a um restart só existem na fila
	for _, ev := range queued {
		if seen[ev.ID] || !sameDay(ev.CapturedAt, now) {
			continue
		}
		out = append(out, models.DayEntry{EventID: ev.ID, UserID: ev.UserID, Type: ev.Type, Status: models.DayQueued, At: ev.CapturedAt})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (r *Recorder) remember(ev models.AttendanceEvent, status models.DayStatus, at time.Time) {
	if at.IsZero() {
		at = ev.CapturedAt
	}
	now := r.deps.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.journal[:0]
	found := false
	for _, e := range r.journal {
		if e.EventID == ev.ID {
			e.Status = status
			found = true
		}
		if sameDay(e.At, now) || e.Status == models.DayQueued {
			kept = append(kept, e)
		}
	}
	r.journal = kept
	if !found {
		r.journal = append(r.journal, models.DayEntry{EventID: ev.ID, UserID: ev.UserID, Type: ev.Type, Status: status, At: at})
	}
}

func (r *Recorder) normalize(ev models.AttendanceEvent, conf models.Confirmation) models.Confirmation {
	if conf.EventID == "" {
		conf.EventID = ev.ID
	}
	if conf.At.IsZero() {
		conf.At = r.deps.Now().UTC()
	}
	return conf
}

func (r *Recorder) takeUnpopped(id string) (models.Confirmation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.unpopped[id]
	if ok {
		delete(r.unpopped, id)
	}
	return c, ok
}

func (r *Recorder) markUnpopped(conf models.Confirmation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unpopped[conf.EventID] = conf
}

func (r *Recorder) notify(n models.Notification) {
	if n.At.IsZero() {
		n.At = r.deps.Now().UTC()
	}
	r.deps.Notifier.Notify(n)
}

func sameDay(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
