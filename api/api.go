// Package api holds the helpers shared by the REST handlers: JSON
// encoding, error to status mapping and middleware.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/model"
	coremon "github.com/kilianp07/techdispatch/core/monitoring"
	"github.com/kilianp07/techdispatch/core/store"
	"github.com/kilianp07/techdispatch/infra/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case dispatch.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrJobNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, directory.ErrUnknownTechnician):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrInvalidJob),
		errors.Is(err, model.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.New("api").Errorf("encode response: %v", err)
	}
}

// WriteError writes err with the status returned by StatusFor.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), ErrorBody{Error: err.Error()})
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: msg})
}

// DecodeJSON reads the request body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// RequireBearer rejects requests without "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireBearer(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		got, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Recover turns handler panics into a 500 after reporting them.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				coremon.Current().ReportPanic(rec)
				logger.New("api").Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				WriteJSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
