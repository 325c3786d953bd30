package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MaldivaSky/mercadinhosys-sub003/camera"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
	"github.com/MaldivaSky/mercadinhosys-sub003/ponto"
)

type recordInput struct {
	Type            string   `json:"type"`
	RequireLocation bool     `json:"require_location"`
	RequirePhoto    bool     `json:"require_photo"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Photo           string   `json:"photo"` // data URL do frame capturado pelo SPA
	Note            string   `json:"note"`
}

// POST /api/ponto
func RecordPonto(rec *ponto.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := operatorID(w, r)
		if !ok {
			return
		}

		var input recordInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "")
			return
		}

		typ, err := models.ParseEventType(input.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
			return
		}

		req := ponto.Request{
			Type:            typ,
			UserID:          userID,
			RequireLocation: input.RequireLocation,
			RequirePhoto:    input.RequirePhoto,
			Note:            input.Note,
		}
		// lat/lng só valem em par
		if input.Latitude != nil && input.Longitude != nil {
			req.Location = &models.Location{Latitude: *input.Latitude, Longitude: *input.Longitude}
		}

		attempt, err := rec.Begin(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, ponto.ErrLocationUnavailable):
				writeError(w, http.StatusUnprocessableEntity, "location_unavailable", err.Error())
			case errors.Is(err, ponto.ErrInvalidEventType):
				writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		if input.Photo != "" {
			still, err := camera.FromDataURL(input.Photo)
			if err != nil {
				attempt.Cancel()
				writeError(w, http.StatusUnprocessableEntity, "photo_capture_failed", err.Error())
				return
			}
			if err := attempt.Capture(r.Context(), still); err != nil {
				writeError(w, http.StatusUnprocessableEntity, "photo_capture_failed", err.Error())
				return
			}
		}

		out, err := attempt.Commit(r.Context())
		switch {
		case err == nil && out.Status == models.OutcomeAwaitingPhoto:
			// o SPA abre a câmera e reenvia com a foto; esta tentativa termina aqui
			attempt.Cancel()
			writeJSON(w, http.StatusPreconditionRequired, out)
		case err == nil && out.Status == models.OutcomeConfirmed:
			writeJSON(w, http.StatusCreated, out)
		case err == nil:
			writeJSON(w, http.StatusAccepted, out)
		case out.Status == models.OutcomeRejected:
			writeJSON(w, http.StatusConflict, out)
		default:
			writeError(w, http.StatusInternalServerError, "record_failed", err.Error())
		}
	}
}

// POST /api/ponto/sync
func SyncPonto(rec *ponto.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), drainTimeout)
		defer cancel()

		report, err := rec.Drain(ctx)
		switch {
		case err == nil, errors.Is(err, ponto.ErrQueueDrainInterrupted):
			writeJSON(w, http.StatusOK, report)
		case errors.Is(err, ponto.ErrOffline):
			pending, _ := rec.Pending(ctx)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "offline", "pending": pending})
		case errors.Is(err, ponto.ErrDrainInProgress):
			writeError(w, http.StatusConflict, "drain_in_progress", "")
		default:
			writeError(w, http.StatusInternalServerError, "sync_failed", err.Error())
		}
	}
}

// POST /api/ponto/connectivity
// O SPA repassa os eventos online/offline do navegador.
func Connectivity(rec *ponto.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input struct {
			Online *bool `json:"online"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Online == nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "online is required")
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), drainTimeout)
		defer cancel()

		resp := map[string]any{}
		if *input.Online {
			report, err := rec.Reachable(ctx)
			if err != nil && !errors.Is(err, ponto.ErrQueueDrainInterrupted) && !errors.Is(err, ponto.ErrDrainInProgress) {
				writeError(w, http.StatusInternalServerError, "sync_failed", err.Error())
				return
			}
			resp["report"] = report
		} else {
			rec.Unreachable()
		}

		pending, err := rec.Pending(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "queue_unavailable", err.Error())
			return
		}
		resp["online"] = rec.Online()
		resp["pending"] = pending
		writeJSON(w, http.StatusOK, resp)
	}
}
