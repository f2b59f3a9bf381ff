// Package httpauth provides the HTTP Basic Authentication shared by the API
// and the WebDAV view.
package httpauth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/to-wer/media-renamer/internal/config"
)

// Middleware wraps an http.Handler with HTTP Basic Authentication
type Middleware struct {
	next     http.Handler
	realm    string
	username string
	password string
}

// Wrap returns next protected by basic auth. If auth is disabled, next is
// returned unwrapped.
func Wrap(next http.Handler, cfg config.AuthConfig, realm string) http.Handler {
	if !cfg.Enabled {
		return next
	}

	return &Middleware{
		next:     next,
		realm:    realm,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// ServeHTTP implements http.Handler
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()

	if !ok {
		m.unauthorized(w, r, "missing credentials")
		return
	}

	if !m.validCredentials(username, password) {
		m.unauthorized(w, r, "invalid credentials")
		return
	}

	m.next.ServeHTTP(w, r)
}

// validCredentials compares both values in constant time.
func (m *Middleware) validCredentials(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	return usernameMatch && passwordMatch
}

func (m *Middleware) unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("Auth failed",
		"realm", m.realm,
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
	http.Error(w, "401 Unauthorized", http.StatusUnauthorized)
}

// LogConfig logs warnings for weak auth settings.
func LogConfig(cfg config.AuthConfig) {
	if !cfg.Enabled {
		slog.Info("HTTP authentication is disabled")
		return
	}
	if len(cfg.Password) < 8 {
		slog.Warn("HTTP auth password is less than 8 characters, consider using a stronger password")
	}
}
