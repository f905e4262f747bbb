// Package technicians exposes the technician directory over HTTP.
package technicians

import (
	"net/http"
	"strconv"

	"github.com/kilianp07/techdispatch/api"
	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/model"
)

// Directory is the subset of the technician directory used here.
type Directory interface {
	List(f directory.Filter) []model.Technician
	Get(id string) (model.Technician, bool)
	Upsert(t model.Technician) error
	UpdateLocation(id string, loc model.Location, online *bool) error
}

type locationRequest struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Online *bool   `json:"online"`
}

// Handler serves /api/technicians.
type Handler struct {
	dir Directory
}

// NewHandler wraps a directory.
func NewHandler(dir Directory) *Handler {
	return &Handler{dir: dir}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/technicians", h.list)
	mux.HandleFunc("GET /api/technicians/available", h.available)
	mux.HandleFunc("GET /api/technicians/{id}", h.get)
	mux.HandleFunc("PUT /api/technicians/{id}", h.put)
	mux.HandleFunc("POST /api/technicians/{id}/location", h.location)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	writeList(w, h.dir.List(f))
}

// available lists online, unreserved technicians, nearest first when a
// position is given.
func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	f.AvailableOnly = true
	writeList(w, h.dir.List(f))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.dir.Get(r.PathValue("id"))
	if !ok {
		api.WriteError(w, directory.ErrUnknownTechnician)
		return
	}
	api.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var t model.Technician
	if err := api.DecodeJSON(r, &t); err != nil {
		api.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	t.ID = r.PathValue("id")
	if err := h.dir.Upsert(t); err != nil {
		api.BadRequest(w, err.Error())
		return
	}
	saved, _ := h.dir.Get(t.ID)
	api.WriteJSON(w, http.StatusOK, saved)
}

func (h *Handler) location(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	id := r.PathValue("id")
	if err := h.dir.UpdateLocation(id, model.Location{Lat: req.Lat, Lng: req.Lng}, req.Online); err != nil {
		api.WriteError(w, err)
		return
	}
	t, _ := h.dir.Get(id)
	api.WriteJSON(w, http.StatusOK, t)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (directory.Filter, bool) {
	q := r.URL.Query()
	f := directory.Filter{Skill: q.Get("skill")}
	lat, lng := q.Get("lat"), q.Get("lng")
	if lat == "" && lng == "" {
		return f, true
	}
	la, err1 := strconv.ParseFloat(lat, 64)
	ln, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		api.BadRequest(w, "lat and lng must both be numbers")
		return f, false
	}
	origin := model.Location{Lat: la, Lng: ln}
	if err := origin.Validate(); err != nil {
		api.WriteError(w, err)
		return f, false
	}
	f.Origin = &origin
	if s := q.Get("radius_km"); s != "" {
		rad, err := strconv.ParseFloat(s, 64)
		if err != nil || rad < 0 {
			api.BadRequest(w, "radius_km must be a non-negative number")
			return f, false
		}
		f.RadiusKm = rad
	}
	return f, true
}

func writeList(w http.ResponseWriter, techs []model.Technician) {
	if techs == nil {
		techs = []model.Technician{}
	}
	api.WriteJSON(w, http.StatusOK, techs)
}
