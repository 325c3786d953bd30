package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

type ctxKey string

const (
	ctxOperator  ctxKey = "operator"
	ctxRequestID ctxKey = "request_id"
)

// Claims do token emitido pela API principal.
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		// o browser não manda header no upgrade do websocket
		if t := r.URL.Query().Get("token"); t != "" {
			return t, nil
		}
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	if parts[1] == "" {
		return "", errors.New("empty token")
	}
	return parts[1], nil
}

// AuthJWT valida HS256 e injeta o operador no contexto.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	secretBytes := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := bearerToken(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				// trava o algoritmo
				if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, errors.New("unexpected signing method")
				}
				return secretBytes, nil
			})
			if err != nil || token == nil || !token.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
					return
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			if claims.ExpiresAt != nil && time.Until(claims.ExpiresAt.Time) <= 0 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
				return
			}

			if claims.UserID == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token claims"})
				return
			}

			op := models.Operator{UserID: claims.UserID, Username: claims.Username, Roles: claims.Role}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
		})
	}
}

// RequireRoles exige pelo menos 1 role da lista
func RequireRoles(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := OperatorFromContext(r.Context())
			if !ok || !op.HasRole(allowed...) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithOperator(ctx context.Context, op models.Operator) context.Context {
	return context.WithValue(ctx, ctxOperator, op)
}

func OperatorFromContext(ctx context.Context) (models.Operator, bool) {
	op, ok := ctx.Value(ctxOperator).(models.Operator)
	return op, ok
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	op, ok := OperatorFromContext(ctx)
	if !ok || op.UserID == "" {
		return "", false
	}
	return op.UserID, true
}
