package technicians

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/model"
)

func newMux(t *testing.T) (*http.ServeMux, *directory.Directory) {
	t.Helper()
	d := directory.New()
	require.NoError(t, d.Seed([]model.Technician{
		{ID: "near", Location: model.Location{Lat: 6.93, Lng: 79.86}, Skills: []string{"plumbing"}, Available: true},
		{ID: "far", Location: model.Location{Lat: 7.30, Lng: 79.86}, Skills: []string{"plumbing"}, Available: true},
		{ID: "busy", Location: model.Location{Lat: 6.93, Lng: 79.86}, Skills: []string{"electrical"}, Available: true},
	}))
	require.True(t, d.TryReserve("busy"))
	mux := http.NewServeMux()
	NewHandler(d).Register(mux)
	return mux, d
}

func do(t *testing.T, mux http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func ids(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	var techs []model.Technician
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &techs))
	out := make([]string, len(techs))
	for i, tech := range techs {
		out[i] = tech.ID
	}
	return out
}

func TestAvailableFiltersByRadiusAndReservation(t *testing.T) {
	mux, _ := newMux(t)
	rr := do(t, mux, http.MethodGet, "/api/technicians/available?lat=6.9271&lng=79.8612&radius_km=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"near"}, ids(t, rr))

	rr = do(t, mux, http.MethodGet, "/api/technicians/available?lat=6.9271&lng=79.8612", nil)
	assert.Equal(t, []string{"near", "far"}, ids(t, rr))

	rr = do(t, mux, http.MethodGet, "/api/technicians?skill=electrical", nil)
	assert.Equal(t, []string{"busy"}, ids(t, rr))
}

func TestAvailableRejectsBadQuery(t *testing.T) {
	mux, _ := newMux(t)
	for _, q := range []string{"lat=abc&lng=1", "lat=1", "lat=95&lng=1", "lat=1&lng=1&radius_km=-2"} {
		rr := do(t, mux, http.MethodGet, "/api/technicians/available?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestLocationUpdate(t *testing.T) {
	mux, d := newMux(t)
	rr := do(t, mux, http.MethodPost, "/api/technicians/far/location", map[string]any{"lat": 6.95, "lng": 79.87, "online": false})
	require.Equal(t, http.StatusOK, rr.Code)
	tech, _ := d.Get("far")
	assert.InDelta(t, 6.95, tech.Location.Lat, 1e-9)
	assert.False(t, tech.Available)

	rr = do(t, mux, http.MethodPost, "/api/technicians/ghost/location", map[string]any{"lat": 6.95, "lng": 79.87})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, mux, http.MethodPost, "/api/technicians/far/location", map[string]any{"lat": 600, "lng": 79.87})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPutAndGet(t *testing.T) {
	mux, _ := newMux(t)
	rr := do(t, mux, http.MethodPut, "/api/technicians/new", model.Technician{Location: model.Location{Lat: 6.9, Lng: 79.9}, Skills: []string{"hvac"}, Available: true, Rating: 4.2})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, mux, http.MethodGet, "/api/technicians/new", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tech model.Technician
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tech))
	assert.Equal(t, "new", tech.ID)
	assert.True(t, tech.HasSkill("hvac"))

	rr = do(t, mux, http.MethodGet, "/api/technicians/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
