package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/MaldivaSky/mercadinhosys-sub003/models"
	"github.com/MaldivaSky/mercadinhosys-sub003/ponto"
)

// GET /api/ponto/pending
// Contador de pendentes para o badge do SPA; as fotos ficam de fora.
func PendingPonto(rec *ponto.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		events, err := rec.Queued(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "queue_unavailable", err.Error())
			return
		}

		items := make([]models.AttendanceEvent, 0, len(events))
		for _, ev := range events {
			items = append(items, ev.WithoutPhoto())
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"online":  rec.Online(),
			"pending": len(items),
			"items":   items,
		})
	}
}

// GET /api/ponto/queue (admin/gerente)
func QueueDump(rec *ponto.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		events, err := rec.Queued(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "queue_unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"online": rec.Online(),
			"total":  len(events),
			"items":  events,
		})
	}
}
