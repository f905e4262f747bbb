// Package jobs exposes the job lifecycle over HTTP.
package jobs

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/techdispatch/api"
	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/store"
)

// Service is the subset of the coordinator used by the handlers.
type Service interface {
	SubmitJob(ctx context.Context, job model.Job) (model.Job, error)
	Get(ctx context.Context, jobID string) (model.Job, error)
	Accept(ctx context.Context, jobID, technicianID string) (model.Job, error)
	StartWork(ctx context.Context, jobID string) (model.Job, error)
	Complete(ctx context.Context, jobID string) (model.Job, error)
	Cancel(ctx context.Context, jobID, reason string) (model.Job, error)
	History(ctx context.Context, q store.Query) ([]model.Job, error)
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	ID          string         `json:"id"`
	Location    model.Location `json:"location"`
	ServiceType string         `json:"service_type"`
	Tier        string         `json:"tier"`
}

type acceptRequest struct {
	TechnicianID string `json:"technician_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Handler serves /api/jobs.
type Handler struct {
	svc Service
}

// NewHandler wraps the coordinator.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/jobs", h.submit)
	mux.HandleFunc("GET /api/jobs", h.list)
	mux.HandleFunc("GET /api/jobs/{id}", h.get)
	mux.HandleFunc("POST /api/jobs/{id}/accept", h.accept)
	mux.HandleFunc("POST /api/jobs/{id}/start", h.start)
	mux.HandleFunc("POST /api/jobs/{id}/complete", h.complete)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", h.cancel)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	tier, err := model.ParseTier(req.Tier)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	job, err := h.svc.SubmitJob(r.Context(), model.Job{
		ID:          req.ID,
		Location:    req.Location,
		ServiceType: req.ServiceType,
		Tier:        tier,
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, job)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var q store.Query
	params := r.URL.Query()
	for _, s := range params["status"] {
		for _, name := range strings.Split(s, ",") {
			st, err := model.ParseStatus(strings.TrimSpace(name))
			if err != nil {
				api.BadRequest(w, err.Error())
				return
			}
			q.Status = append(q.Status, st)
		}
	}
	if s := params.Get("tier"); s != "" {
		tier, err := model.ParseTier(s)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		q.Tier = &tier
	}
	q.TechnicianID = strings.TrimSpace(params.Get("technician_id"))
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			api.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	jobs, err := h.svc.History(r.Context(), q)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	api.WriteJSON(w, http.StatusOK, jobs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), r.PathValue("id"))
	respond(w, job, err)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	if req.TechnicianID == "" {
		api.BadRequest(w, "technician_id is required")
		return
	}
	job, err := h.svc.Accept(r.Context(), r.PathValue("id"), req.TechnicianID)
	respond(w, job, err)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.StartWork(r.Context(), r.PathValue("id"))
	respond(w, job, err)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Complete(r.Context(), r.PathValue("id"))
	respond(w, job, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	job, err := h.svc.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	respond(w, job, err)
}

func respond(w http.ResponseWriter, job model.Job, err error) {
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, job)
}
