package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	middleware "github.com/MaldivaSky/mercadinhosys-sub003/middlewares"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
	"github.com/MaldivaSky/mercadinhosys-sub003/ponto"
)

// GET /api/ponto/today
// Marcações do dia (confirmadas + na fila) e o próximo tipo esperado.
// gerente/admin podem consultar outro funcionário com ?user_id=.
func TodayPonto(rec *ponto.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := operatorID(w, r)
		if !ok {
			return
		}
		if v := strings.TrimSpace(r.URL.Query().Get("user_id")); v != "" && v != userID {
			op, _ := middleware.OperatorFromContext(r.Context())
			if !op.HasRole("admin", "gerente") {
				writeError(w, http.StatusForbidden, "forbidden", "")
				return
			}
			userID = v
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		all, err := rec.Today(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "queue_unavailable", err.Error())
			return
		}

		entries := make([]models.DayEntry, 0, len(all))
		recorded := make([]models.EventType, 0, len(all))
		for _, e := range all {
			if e.UserID != userID {
				continue
			}
			entries = append(entries, e)
			recorded = append(recorded, e.Type)
		}

		resp := map[string]any{
			"user_id":  userID,
			"entries":  entries,
			"complete": true,
		}
		if next, ok := models.NextEventType(recorded); ok {
			resp["next"] = next
			resp["complete"] = false
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
