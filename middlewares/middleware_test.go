package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MaldivaSky/mercadinhosys-sub003/jsonlog"
)

const secret = "segredo-de-teste"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims(roles ...string) Claims {
	return Claims{
		UserID:   "42",
		Username: "maria",
		Role:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func echoOperator() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, ok := OperatorFromContext(r.Context())
		if !ok {
			http.Error(w, "no operator", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(op)
	})
}

func TestAuthJWT(t *testing.T) {
	good := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("caixa"))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noUser := validClaims()
	noUser.UserID = ""

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer " + good, "", http.StatusOK},
		{"query token", "", good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("outro"), validClaims()), "", http.StatusUnauthorized},
		{"wrong alg", "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims()), "", http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), expired), "", http.StatusUnauthorized},
		{"no user id", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), noUser), "", http.StatusUnauthorized},
	}

	h := AuthJWT(secret)(echoOperator())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/api/ponto"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tc.want, rr.Body.String())
			}
			if tc.want == http.StatusOK && !strings.Contains(rr.Body.String(), `"user_id":"42"`) {
				t.Fatalf("operator not injected: %s", rr.Body.String())
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	h := AuthJWT(secret)(RequireRoles("admin", "gerente")(echoOperator()))

	for _, tc := range []struct {
		roles []string
		want  int
	}{
		{[]string{"gerente"}, http.StatusOK},
		{[]string{"caixa", "admin"}, http.StatusOK},
		{[]string{"caixa"}, http.StatusForbidden},
		{nil, http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/ponto/queue", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims(tc.roles...)))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("roles=%v status=%d want=%d", tc.roles, rr.Code, tc.want)
		}
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonlog.New(&buf)

	var seen string
	h := RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/ponto", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("request id=%q header=%q", seen, rr.Header().Get(RequestIDHeader))
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line: %v (%s)", err, buf.String())
	}
	if line["msg"] != "http_request" || line["rid"] != seen || line["status"] != float64(http.StatusAccepted) {
		t.Fatalf("log=%v", line)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc-123" {
		t.Fatalf("incoming request id not kept: %q", seen)
	}
}
