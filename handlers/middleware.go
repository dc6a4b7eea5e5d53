package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/satheeshds/trackey/models"
)

// Response is the standard JSON envelope for all API responses.
type Response struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Data: data})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: msg, Kind: kind})
}

var kindStatus = map[string]int{
	"validation": http.StatusBadRequest,
	"duplicate":  http.StatusBadRequest,
	"limit":      http.StatusUnprocessableEntity,
	"conflict":   http.StatusConflict,
	"not_found":  http.StatusNotFound,
	"forbidden":  http.StatusForbidden,
	"store":      http.StatusServiceUnavailable,
}

// writeErr maps a service error onto the envelope. Store failures are logged
// and reported without their cause.
func (h *Handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.ErrorKind(err)
	msg := err.Error()
	if kind == "store" {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "store unavailable, try again"
	}
	writeError(w, kindStatus[kind], kind, msg)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "validation", "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// BasicAuth returns middleware that enforces HTTP Basic Authentication.
// With no credentials configured it lets every request through.
func BasicAuth(user, pass string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if user == "" && pass == "" {
			slog.Warn("AUTH_USER and AUTH_PASS not set, API is unauthenticated")
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				w.Header().Set("WWW-Authenticate", `Basic realm="trackey"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type scopeKey struct{}

// Tenant resolves the caller's scope from X-Store-ID, X-User-ID and
// X-Session-ID. A missing user id means the store owner is acting.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		storeID, err := strconv.ParseInt(r.Header.Get("X-Store-ID"), 10, 64)
		if err != nil || storeID <= 0 {
			writeError(w, http.StatusBadRequest, "validation", "X-Store-ID header is required")
			return
		}
		scope := models.Scope{StoreID: storeID, SessionID: r.Header.Get("X-Session-ID")}

		if raw := r.Header.Get("X-User-ID"); raw != "" {
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				writeError(w, http.StatusBadRequest, "validation", "invalid X-User-ID header")
				return
			}
			scope.UserID = &userID
		}
		if scope.SessionID == "" {
			scope.SessionID = uuid.NewString()
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, scope)))
	})
}

var errNoScope = errors.New("request has no tenant scope")

func scopeFrom(r *http.Request) (models.Scope, error) {
	scope, ok := r.Context().Value(scopeKey{}).(models.Scope)
	if !ok {
		return models.Scope{}, errNoScope
	}
	return scope, nil
}

// scoped adapts a handler that needs the tenant scope.
func scoped(fn func(w http.ResponseWriter, r *http.Request, scope models.Scope)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", err.Error())
			return
		}
		fn(w, r, scope)
	}
}
