package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/store"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("accept: %w", dispatch.ErrInvalidTransition), http.StatusConflict},
		{dispatch.ErrReservationConflict, http.StatusConflict},
		{dispatch.ErrNotOffered, http.StatusConflict},
		{dispatch.ErrDuplicateJob, http.StatusConflict},
		{dispatch.ErrJobNotFound, http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{directory.ErrUnknownTechnician, http.StatusNotFound},
		{fmt.Errorf("%w: tier", dispatch.ErrInvalidJob), http.StatusBadRequest},
		{model.ErrInvalidLocation, http.StatusBadRequest},
		{dispatch.ErrClosed, http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusFor(c.err), "%v", c.err)
	}
}

func TestRequireBearer(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireBearer("tok", ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	for _, header := range []string{"Bearer tokk", "Bearer to", "Bearer ", "bearer tok", "Basic tok", "tok"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
	}

	rr = httptest.NewRecorder()
	RequireBearer("", ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "internal error"))
}
