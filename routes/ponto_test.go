package routes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	middleware "github.com/MaldivaSky/mercadinhosys-sub003/middlewares"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
	"github.com/MaldivaSky/mercadinhosys-sub003/ponto"
	"github.com/MaldivaSky/mercadinhosys-sub003/queue"
)

type fakeAPI struct {
	mu     sync.Mutex
	reject string
	down   bool
	calls  []models.AttendanceEvent
}

func (f *fakeAPI) Submit(ctx context.Context, ev models.AttendanceEvent) (models.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return models.Confirmation{}, &ponto.TransportError{StatusCode: http.StatusBadGateway}
	}
	if f.reject != "" {
		return models.Confirmation{}, &ponto.RejectedError{StatusCode: http.StatusBadRequest, Message: f.reject}
	}
	f.calls = append(f.calls, ev)
	return models.Confirmation{EventID: ev.ID, RemoteID: "srv-1"}, nil
}

func (f *fakeAPI) submitted() []models.AttendanceEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AttendanceEvent(nil), f.calls...)
}

type env struct {
	rec   *ponto.Recorder
	api   *fakeAPI
	store *queue.Memory
}

func newEnv(online bool) *env {
	api := &fakeAPI{}
	store := queue.NewMemory()
	opts := ponto.DefaultOptions()
	opts.StartOnline = online
	rec := ponto.New(ponto.Deps{Store: store, Submitter: api}, opts)
	return &env{rec: rec, api: api, store: store}
}

func asOperator(req *http.Request, userID string, roles ...string) *http.Request {
	op := models.Operator{UserID: userID, Roles: roles}
	return req.WithContext(middleware.WithOperator(req.Context(), op))
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := asOperator(httptest.NewRequest(method, target, strings.NewReader(body)), "42")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return m
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatalf("png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func pending(t *testing.T, e *env) int {
	t.Helper()
	n, err := e.store.Len(context.Background())
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	return n
}

func TestRecordPonto_Confirmed(t *testing.T) {
	e := newEnv(true)

	rr := do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"entrada","latitude":-3.73,"longitude":-38.52}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := e.api.submitted()
	if len(got) != 1 || got[0].UserID != "42" || got[0].Type != models.EventEntrada || got[0].Location == nil {
		t.Fatalf("submitted=%+v", got)
	}
	if body := decode(t, rr); body["status"] != "confirmed" {
		t.Fatalf("body=%v", body)
	}
}

func TestRecordPonto_OfflineQueuesThenConnectivityDrains(t *testing.T) {
	e := newEnv(false)

	rr := do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"entrada","photo":"`+pngDataURL(t)+`"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if pending(t, e) != 1 || len(e.api.submitted()) != 0 {
		t.Fatalf("expected one queued event and no submit")
	}

	rr = do(t, PendingPonto(e.rec), http.MethodGet, "/api/ponto/pending", "")
	body := decode(t, rr)
	if body["pending"] != float64(1) || body["online"] != false {
		t.Fatalf("pending body=%v", body)
	}
	if strings.Contains(rr.Body.String(), "data:image") {
		t.Fatalf("pending listing must not carry photos")
	}

	rr = do(t, QueueDump(e.rec), http.MethodGet, "/api/ponto/queue", "")
	if !strings.Contains(rr.Body.String(), "data:image/jpeg") {
		t.Fatalf("queue dump should keep the photo: %s", rr.Body.String())
	}

	rr = do(t, Connectivity(e.rec), http.MethodPost, "/api/ponto/connectivity", `{"online":true}`)
	body = decode(t, rr)
	if rr.Code != http.StatusOK || body["online"] != true || body["pending"] != float64(0) {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}
	if got := e.api.submitted(); len(got) != 1 || !got[0].HasPhoto() {
		t.Fatalf("drained=%+v", got)
	}
}

func TestRecordPonto_PhotoRequired(t *testing.T) {
	e := newEnv(true)

	rr := do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"saida","require_photo":true}`)
	if rr.Code != http.StatusPreconditionRequired {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if decode(t, rr)["status"] != "photo_required" {
		t.Fatalf("body=%s", rr.Body.String())
	}
	if len(e.api.submitted()) != 0 || pending(t, e) != 0 {
		t.Fatalf("nothing should be submitted or queued")
	}

	rr = do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"saida","require_photo":true,"photo":"`+pngDataURL(t)+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := e.api.submitted()
	if len(got) != 1 || !strings.HasPrefix(got[0].Photo, "data:image/jpeg;base64,") {
		t.Fatalf("submitted=%+v", got)
	}
}

func TestRecordPonto_Failures(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
		code string
	}{
		{"invalid type", `{"type":"almoco"}`, http.StatusBadRequest, "invalid_type"},
		{"invalid json", `{`, http.StatusBadRequest, "invalid_json"},
		{"location required", `{"type":"entrada","require_location":true}`, http.StatusUnprocessableEntity, "location_unavailable"},
		{"broken photo", `{"type":"entrada","photo":"data:image/png;base64,AAAA"}`, http.StatusUnprocessableEntity, "photo_capture_failed"},
		{"not a data url", `{"type":"entrada","photo":"foto.jpg"}`, http.StatusUnprocessableEntity, "photo_capture_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(true)
			rr := do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tc.want, rr.Body.String())
			}
			if got := decode(t, rr)["error"]; got != tc.code {
				t.Fatalf("error=%v want=%s", got, tc.code)
			}
			if len(e.api.submitted()) != 0 || pending(t, e) != 0 {
				t.Fatalf("nothing should be submitted or queued")
			}
		})
	}
}

func TestRecordPonto_Rejected(t *testing.T) {
	e := newEnv(true)
	e.api.reject = "ponto de entrada já registrado hoje"

	rr := do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"entrada"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["status"] != "rejected" || body["rejection"] != e.api.reject {
		t.Fatalf("body=%v", body)
	}
	if pending(t, e) != 0 || !e.rec.Online() {
		t.Fatalf("rejection must not queue nor flip offline")
	}
}

func TestRecordPonto_TransportFailureQueues(t *testing.T) {
	e := newEnv(true)
	e.api.down = true

	rr := do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"entrada"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if pending(t, e) != 1 || e.rec.Online() {
		t.Fatalf("expected queued event and offline recorder")
	}
}

func TestRecordPonto_Unauthenticated(t *testing.T) {
	e := newEnv(true)
	rr := httptest.NewRecorder()
	RecordPonto(e.rec)(rr, httptest.NewRequest(http.MethodPost, "/api/ponto", strings.NewReader(`{"type":"entrada"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestSyncPonto(t *testing.T) {
	e := newEnv(false)
	do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"entrada"}`)

	rr := do(t, SyncPonto(e.rec), http.MethodPost, "/api/ponto/sync", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("offline sync status=%d", rr.Code)
	}

	// volta online mas a API recusa o evento da frente: drain para e nada é perdido
	e.api.reject = "fora do horário"
	rr = do(t, Connectivity(e.rec), http.MethodPost, "/api/ponto/connectivity", `{"online":true}`)
	if rr.Code != http.StatusOK || pending(t, e) != 1 {
		t.Fatalf("status=%d pending=%d", rr.Code, pending(t, e))
	}

	rr = do(t, SyncPonto(e.rec), http.MethodPost, "/api/ponto/sync", "")
	body := decode(t, rr)
	if rr.Code != http.StatusOK || body["interrupted"] != true || body["pending"] != float64(1) {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}

	e.api.reject = ""
	rr = do(t, SyncPonto(e.rec), http.MethodPost, "/api/ponto/sync", "")
	body = decode(t, rr)
	if rr.Code != http.StatusOK || body["interrupted"] != false || body["pending"] != float64(0) {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}
	if confirmed, _ := body["confirmed"].([]any); len(confirmed) != 1 {
		t.Fatalf("confirmed=%v", body["confirmed"])
	}
}

func TestConnectivity_Offline(t *testing.T) {
	e := newEnv(true)

	rr := do(t, Connectivity(e.rec), http.MethodPost, "/api/ponto/connectivity", `{"online":false}`)
	if rr.Code != http.StatusOK || e.rec.Online() {
		t.Fatalf("status=%d online=%v", rr.Code, e.rec.Online())
	}

	rr = do(t, Connectivity(e.rec), http.MethodPost, "/api/ponto/connectivity", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing flag status=%d", rr.Code)
	}
}

func TestTodayPonto(t *testing.T) {
	e := newEnv(true)
	do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"entrada"}`)
	e.rec.Unreachable()
	do(t, RecordPonto(e.rec), http.MethodPost, "/api/ponto", `{"type":"saida_almoco"}`)

	rr := do(t, TodayPonto(e.rec), http.MethodGet, "/api/ponto/today", "")
	body := decode(t, rr)
	entries, _ := body["entries"].([]any)
	if rr.Code != http.StatusOK || len(entries) != 2 || body["next"] != "retorno_almoco" || body["complete"] != false {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}

	// outro funcionário só para gerente/admin
	rr = do(t, TodayPonto(e.rec), http.MethodGet, "/api/ponto/today?user_id=7", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rr.Code)
	}

	req := asOperator(httptest.NewRequest(http.MethodGet, "/api/ponto/today?user_id=7", nil), "1", "gerente")
	rr = httptest.NewRecorder()
	TodayPonto(e.rec)(rr, req)
	body = decode(t, rr)
	entries, _ = body["entries"].([]any)
	if rr.Code != http.StatusOK || len(entries) != 0 || body["next"] != "entrada" {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}
}

func TestHello(t *testing.T) {
	rr := httptest.NewRecorder()
	Hello(rr, httptest.NewRequest(http.MethodGet, "/api/hello", nil))
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "ok" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}
