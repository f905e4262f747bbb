package jobs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/techdispatch/core/clock"
	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/notify"
	"github.com/kilianp07/techdispatch/infra/logger"
)

var colombo = model.Location{Lat: 6.9271, Lng: 79.8612}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := directory.New()
	require.NoError(t, dir.Seed([]model.Technician{
		{ID: "t1", Location: model.Location{Lat: colombo.Lat + 0.01, Lng: colombo.Lng}, Skills: []string{"plumbing"}, Available: true, Rating: 4.8},
		{ID: "t2", Location: model.Location{Lat: colombo.Lat + 0.02, Lng: colombo.Lng}, Skills: []string{"plumbing"}, Available: true, Rating: 4.5},
	}))
	c, err := dispatch.NewCoordinator(dir, dispatch.DefaultPolicy(), notify.NopNotifier{}, notify.NopAlerter{},
		clock.NewFake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)), logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	mux := http.NewServeMux()
	NewHandler(c).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body any) (*http.Response, model.Job) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var j model.Job
	if resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&j))
	}
	return resp, j
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)

	resp, job := post(t, srv.URL+"/api/jobs", SubmitRequest{ID: "job-1", Location: colombo, ServiceType: "plumbing", Tier: "urgent"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.StatusBroadcasting, job.Status)
	assert.ElementsMatch(t, []string{"t1", "t2"}, job.BroadcastSet)
	assert.InDelta(t, 1.5, job.SurgeMultiplier, 1e-9)

	resp, job = post(t, srv.URL+"/api/jobs/job-1/accept", map[string]string{"technician_id": "t2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusAccepted, job.Status)
	assert.Equal(t, "t2", job.AssignedTechnician)

	resp, _ = post(t, srv.URL+"/api/jobs/job-1/accept", map[string]string{"technician_id": "t1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, job = post(t, srv.URL+"/api/jobs/job-1/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusInProgress, job.Status)

	resp, job = post(t, srv.URL+"/api/jobs/job-1/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusCompleted, job.Status)

	get, err := http.Get(srv.URL + "/api/jobs/job-1")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)

	list, err := http.Get(srv.URL + "/api/jobs?status=completed&tier=urgent")
	require.NoError(t, err)
	defer list.Body.Close()
	var jobs []model.Job
	require.NoError(t, json.NewDecoder(list.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
}

func TestCancelOverHTTP(t *testing.T) {
	srv := newServer(t)
	resp, _ := post(t, srv.URL+"/api/jobs", SubmitRequest{ID: "job-2", Location: colombo, ServiceType: "plumbing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, job := post(t, srv.URL+"/api/jobs/job-2/cancel", map[string]string{"reason": "customer changed plans"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusCancelled, job.Status)
	assert.Equal(t, "customer changed plans", job.CancelReason)

	resp, _ = post(t, srv.URL+"/api/jobs/job-2/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)
	cases := []struct {
		name string
		url  string
		body any
		want int
	}{
		{"unknown tier", "/api/jobs", SubmitRequest{Location: colombo, Tier: "critical"}, http.StatusBadRequest},
		{"bad location", "/api/jobs", SubmitRequest{Location: model.Location{Lat: 120}}, http.StatusBadRequest},
		{"unknown field", "/api/jobs", map[string]any{"colour": "red"}, http.StatusBadRequest},
		{"missing technician", "/api/jobs/x/accept", map[string]string{}, http.StatusBadRequest},
		{"unknown job", "/api/jobs/nope/accept", map[string]string{"technician_id": "t1"}, http.StatusNotFound},
		{"unknown job start", "/api/jobs/nope/start", nil, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, _ := post(t, srv.URL+c.url, c.body)
			assert.Equal(t, c.want, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/api/jobs?status=lost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDuplicateSubmitConflicts(t *testing.T) {
	srv := newServer(t)
	resp, _ := post(t, srv.URL+"/api/jobs", SubmitRequest{ID: "dup", Location: colombo, ServiceType: "plumbing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = post(t, srv.URL+"/api/jobs", SubmitRequest{ID: "dup", Location: colombo, ServiceType: "plumbing"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListFiltersByTechnician(t *testing.T) {
	srv := newServer(t)
	resp, _ := post(t, srv.URL+"/api/jobs", SubmitRequest{ID: "j1", Location: colombo, ServiceType: "plumbing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = post(t, srv.URL+"/api/jobs/j1/accept", map[string]string{"technician_id": "t1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, job := post(t, srv.URL+"/api/jobs", SubmitRequest{ID: "j2", Location: colombo, ServiceType: "plumbing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, model.StatusBroadcasting, job.Status)

	list, err := http.Get(srv.URL + "/api/jobs?technician_id=t1")
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)
	var jobs []model.Job
	require.NoError(t, json.NewDecoder(list.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "j1", jobs[0].ID)

	none, err := http.Get(srv.URL + "/api/jobs?technician_id=t2&status=accepted")
	require.NoError(t, err)
	defer none.Body.Close()
	jobs = nil
	require.NoError(t, json.NewDecoder(none.Body).Decode(&jobs))
	assert.Empty(t, jobs)
}
