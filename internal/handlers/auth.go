package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"video-rewrite/internal/logging"
)

// AuthMiddleware requires the API password on /api routes. The password is
// taken from a bearer token or from the password of HTTP basic auth; the
// basic auth user name is ignored. Health and version routes stay open.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.passwordHash == nil || !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		password, ok := requestPassword(r)
		if !ok || bcrypt.CompareHashAndPassword(h.passwordHash, []byte(password)) != nil {
			logging.Debug("Rejected unauthenticated %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="video-rewrite"`)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestPassword(r *http.Request) (string, bool) {
	if _, password, ok := r.BasicAuth(); ok {
		return password, password != ""
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
