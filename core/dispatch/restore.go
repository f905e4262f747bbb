package dispatch

import (
	"context"
	"fmt"

	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/monitoring"
	"github.com/kilianp07/techdispatch/core/store"
)

// holder is implemented by directories that can pin a reservation on a
// technician whatever its online flag.
type holder interface {
	Hold(technicianID string) bool
}

// Restore reloads every non-terminal job from the job store after a
// restart. Assigned technicians are reserved again, broadcast deadlines
// are re-armed for the time left (an overdue deadline fires on the next
// tick) and jobs persisted before their first broadcast are dispatched.
// It must run before the coordinator serves requests.
func (c *Coordinator) Restore(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.mu.RLock()
	st := c.store
	c.mu.RUnlock()
	jobs, err := st.List(ctx, store.Query{Status: []model.Status{
		model.StatusRequested,
		model.StatusBroadcasting,
		model.StatusAccepted,
		model.StatusInProgress,
	}})
	if err != nil {
		return fmt.Errorf("restore jobs: %w", err)
	}

	var pending []model.Job
	for _, j := range jobs {
		log := c.logger.With("job_id", j.ID)
		switch j.Status {
		case model.StatusRequested:
			pending = append(pending, j)
			continue
		case model.StatusAccepted, model.StatusInProgress:
			if !c.reserve(j.AssignedTechnician) {
				log.Errorf("restore: technician %s could not be reserved for %s job", j.AssignedTechnician, j.Status)
				monitoring.CaptureMessage("restored job without technician reservation", map[string]string{
					"job_id":        j.ID,
					"technician_id": j.AssignedTechnician,
				})
			}
		}
		stored := j.Clone()
		c.mu.Lock()
		c.jobs[j.ID] = &stored
		c.mu.Unlock()
		if j.Status == model.StatusBroadcasting {
			c.scheduler.Arm(j.ID, j.DeadlineAt.Sub(c.clk.Now()), c.onDeadline)
		}
		log.Debugf("restored %s job at level %d", j.Status, j.EscalationLevel)
	}

	for _, j := range pending {
		if err := c.redispatch(ctx, j); err != nil {
			c.logger.With("job_id", j.ID).Errorf("restore dispatch: %v", err)
			monitoring.CaptureException(err, map[string]string{"job_id": j.ID, "op": "restore"})
		}
	}

	c.mu.RLock()
	active := len(c.jobs)
	c.mu.RUnlock()
	activeJobs.Set(float64(active))
	c.logger.Infof("restored %d active jobs", active)
	return nil
}

// reserve pins the technician of a restored assignment.
func (c *Coordinator) reserve(technicianID string) bool {
	if technicianID == "" {
		return false
	}
	if h, ok := c.dir.(holder); ok {
		return h.Hold(technicianID)
	}
	return c.dir.TryReserve(technicianID)
}

// redispatch broadcasts a job that was stored before its first offer.
func (c *Coordinator) redispatch(ctx context.Context, j model.Job) error {
	unlock := c.locks.Lock(j.ID)
	t := c.begin(j)
	if err := c.tryDispatch(t); err != nil {
		unlock()
		return err
	}
	if err := c.commit(ctx, t); err != nil {
		unlock()
		return err
	}
	unlock()
	c.deliver(ctx, t)
	return nil
}
