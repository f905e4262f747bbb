// Package directory keeps the live registry of technicians and owns their
// reservation flag.
package directory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/techdispatch/core/geo"
	"github.com/kilianp07/techdispatch/core/model"
)

// ErrUnknownTechnician is returned for ids not present in the directory.
var ErrUnknownTechnician = errors.New("unknown technician")

// cell holds one technician. online is the technician's own duty toggle;
// reserved is owned by TryReserve/Release and nothing else.
type cell struct {
	mu       sync.Mutex
	tech     model.Technician
	online   bool
	reserved bool
}

func (c *cell) snapshot() model.Technician {
	t := c.tech
	t.Skills = append([]string(nil), c.tech.Skills...)
	t.Available = c.online && !c.reserved
	return t
}

// Filter narrows List results.
type Filter struct {
	Skill         string
	Origin        *model.Location
	RadiusKm      float64
	AvailableOnly bool
}

// Directory is an arena of technician cells indexed by id. The map lock
// only guards membership; reservations lock a single cell.
type Directory struct {
	mu    sync.RWMutex
	cells map[string]*cell
	now   func() time.Time
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{cells: make(map[string]*cell), now: time.Now}
}

// Upsert adds or updates a technician. The Available field sets the
// technician's online flag; an existing reservation is preserved.
func (d *Directory) Upsert(t model.Technician) error {
	if t.ID == "" {
		return fmt.Errorf("technician id is required")
	}
	if err := t.Location.Validate(); err != nil {
		return fmt.Errorf("technician %s: %w", t.ID, err)
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = d.now()
	}
	t.Skills = append([]string(nil), t.Skills...)

	d.mu.Lock()
	c, ok := d.cells[t.ID]
	if !ok {
		d.cells[t.ID] = &cell{tech: t, online: t.Available}
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	c.mu.Lock()
	c.tech = t
	c.online = t.Available
	c.mu.Unlock()
	return nil
}

// Seed inserts every technician, stopping at the first invalid record.
func (d *Directory) Seed(techs []model.Technician) error {
	for _, t := range techs {
		if err := d.Upsert(t); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLocation records a technician's own location report. When online
// is non-nil it also toggles the duty flag.
func (d *Directory) UpdateLocation(id string, loc model.Location, online *bool) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	c := d.cell(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTechnician, id)
	}
	c.mu.Lock()
	c.tech.Location = loc
	c.tech.UpdatedAt = d.now()
	if online != nil {
		c.online = *online
	}
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the technician.
func (d *Directory) Get(id string) (model.Technician, bool) {
	c := d.cell(id)
	if c == nil {
		return model.Technician{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(), true
}

// Len returns the number of registered technicians.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cells)
}

// FindCandidates returns available technicians with the skill within
// radiusKm of origin, skipping excluded ids. Results are ordered by
// distance, then rating descending, then id.
func (d *Directory) FindCandidates(serviceType string, origin model.Location, radiusKm float64, exclude map[string]struct{}) []model.Candidate {
	var out []model.Candidate
	for _, c := range d.all() {
		c.mu.Lock()
		t := c.tech
		avail := c.online && !c.reserved
		c.mu.Unlock()

		if !avail {
			continue
		}
		if _, skip := exclude[t.ID]; skip {
			continue
		}
		if !t.HasSkill(serviceType) {
			continue
		}
		dist, err := geo.DistanceKm(origin, t.Location)
		if err != nil || dist > radiusKm {
			continue
		}
		out = append(out, model.Candidate{TechnicianID: t.ID, DistanceKm: dist, Rating: t.Rating})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(c []model.Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].DistanceKm != c[j].DistanceKm {
			return c[i].DistanceKm < c[j].DistanceKm
		}
		if c[i].Rating != c[j].Rating {
			return c[i].Rating > c[j].Rating
		}
		return c[i].TechnicianID < c[j].TechnicianID
	})
}

// TryReserve atomically flips the technician from available to reserved.
// It returns false when the technician is unknown, offline or already
// reserved.
func (d *Directory) TryReserve(id string) bool {
	c := d.cell(id)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.online || c.reserved {
		return false
	}
	c.reserved = true
	return true
}

// Hold reserves the technician whatever its online flag. It returns
// false when the technician is unknown or already reserved.
func (d *Directory) Hold(id string) bool {
	c := d.cell(id)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reserved {
		return false
	}
	c.reserved = true
	return true
}

// Release clears the reservation. It is idempotent.
func (d *Directory) Release(id string) {
	c := d.cell(id)
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reserved = false
	c.mu.Unlock()
}

// List returns technicians matching f ordered by distance when an origin
// is given and by id otherwise.
func (d *Directory) List(f Filter) []model.Technician {
	type entry struct {
		tech model.Technician
		dist float64
	}
	var entries []entry
	for _, c := range d.all() {
		c.mu.Lock()
		t := c.snapshot()
		c.mu.Unlock()
		if f.AvailableOnly && !t.Available {
			continue
		}
		if f.Skill != "" && !t.HasSkill(f.Skill) {
			continue
		}
		e := entry{tech: t}
		if f.Origin != nil {
			dist, err := geo.DistanceKm(*f.Origin, t.Location)
			if err != nil {
				continue
			}
			if f.RadiusKm > 0 && dist > f.RadiusKm {
				continue
			}
			e.dist = dist
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].dist != entries[j].dist {
			return entries[i].dist < entries[j].dist
		}
		return entries[i].tech.ID < entries[j].tech.ID
	})
	res := make([]model.Technician, len(entries))
	for i, e := range entries {
		res[i] = e.tech
	}
	return res
}

func (d *Directory) cell(id string) *cell {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cells[id]
}

func (d *Directory) all() []*cell {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make([]*cell, 0, len(d.cells))
	for _, c := range d.cells {
		res = append(res, c)
	}
	return res
}

// Counts returns the number of registered technicians and how many of
// them are online and unreserved.
func (d *Directory) Counts() (total, available int) {
	for _, c := range d.all() {
		c.mu.Lock()
		if c.online && !c.reserved {
			available++
		}
		c.mu.Unlock()
		total++
	}
	return total, available
}

// MarkStale takes offline every online technician whose last report is
// older than cutoff and returns their ids. Reserved technicians keep
// their reservation.
func (d *Directory) MarkStale(cutoff time.Time) []string {
	var ids []string
	for _, c := range d.all() {
		c.mu.Lock()
		if c.online && c.tech.UpdatedAt.Before(cutoff) {
			c.online = false
			ids = append(ids, c.tech.ID)
		}
		c.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}
