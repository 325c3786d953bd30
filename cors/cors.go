package cors

import (
	"net/http"
	"net/url"
	"strings"
)

// Allow devolve o teste de origem usado pelo CORS e pelo upgrade do websocket.
func Allow(allowedOrigins []string) func(origin string) bool {
	orig := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			orig[o] = struct{}{}
		}
	}

	return func(origin string) bool {
		if origin == "" {
			return false
		}
		// libera se a Origin estiver na whitelist "exata"
		if _, ok := orig[origin]; ok {
			return true
		}
		// o SPA roda no mesmo terminal: qualquer localhost/127.0.0.1 (qualquer porta)
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	}
}

func Cors(allowedOrigins []string, allowCredentials bool) func(http.Handler) http.Handler {
	allowed := Allow(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if allowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			// evita preflight repetido por 10 min:
			w.Header().Set("Access-Control-Max-Age", "600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
