package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/techdispatch/core/clock"
	"github.com/kilianp07/techdispatch/core/dispatch/logging"
	"github.com/kilianp07/techdispatch/core/events"
	"github.com/kilianp07/techdispatch/core/logger"
	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/monitoring"
	"github.com/kilianp07/techdispatch/core/notify"
	"github.com/kilianp07/techdispatch/core/pricing"
	"github.com/kilianp07/techdispatch/core/store"
	"github.com/kilianp07/techdispatch/internal/eventbus"
)

// SubmitRequest is a job submission received from an asynchronous intake.
// Reply, when set, receives the outcome of SubmitJob.
type SubmitRequest struct {
	Job   model.Job
	Reply chan<- error
}

// Coordinator is the only writer of job state. Operations on one job are
// serialized by a per-job lock; different jobs proceed in parallel and
// only meet in the technician directory.
//
// Each operation works on a copy of the job. The copy replaces the live
// record once JobStore.Save succeeds; side effects such as timers, events
// and notifications are applied only after that point.
type Coordinator struct {
	dir       TechnicianDirectory
	policy    *Policy
	matcher   *MatchingEngine
	scheduler *EscalationScheduler
	notifier  notify.Notifier
	alerter   notify.AdminAlerter
	clk       clock.Clock
	logger    logger.Logger
	locks     *jobLocks

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]*model.Job
	store   store.JobStore
	journal logging.LogStore
	bus     eventbus.EventBus[events.Event]
	pricing pricing.Service
	closed  bool
}

// NewCoordinator creates a Coordinator. Jobs are kept in a MemoryStore
// until SetJobStore is called.
func NewCoordinator(dir TechnicianDirectory, policy *Policy, n notify.Notifier, a notify.AdminAlerter, clk clock.Clock, log logger.Logger) (*Coordinator, error) {
	if dir == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	if n == nil {
		n = notify.NopNotifier{}
	}
	if a == nil {
		a = notify.NopAlerter{}
	}
	if clk == nil {
		clk = clock.Real()
	}
	surge, err := pricing.NewStatic(pricing.Config{})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		dir:       dir,
		policy:    policy,
		matcher:   NewMatchingEngine(dir, policy),
		scheduler: NewEscalationScheduler(clk),
		notifier:  n,
		alerter:   a,
		clk:       clk,
		logger:    log,
		locks:     newJobLocks(),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*model.Job),
		store:     store.NewMemoryStore(),
		pricing:   surge,
	}, nil
}

// SetJobStore configures the store used to commit job records.
func (c *Coordinator) SetJobStore(s store.JobStore) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.store = s
	c.mu.Unlock()
}

// SetLogStore configures the store used to journal transitions.
func (c *Coordinator) SetLogStore(s logging.LogStore) {
	c.mu.Lock()
	c.journal = s
	c.mu.Unlock()
}

// SetEventBus configures the bus receiving lifecycle events.
func (c *Coordinator) SetEventBus(b eventbus.EventBus[events.Event]) {
	c.mu.Lock()
	c.bus = b
	c.mu.Unlock()
}

// SetPricing configures the source of surge multipliers.
func (c *Coordinator) SetPricing(p pricing.Service) {
	if p == nil {
		return
	}
	c.mu.Lock()
	c.pricing = p
	c.mu.Unlock()
}

// Policy returns the priority table in use.
func (c *Coordinator) Policy() *Policy { return c.policy }

// txn collects the changes of one operation on a job copy.
type txn struct {
	job        model.Job
	now        time.Time
	records    []logging.LogRecord
	evs        []events.Event
	offers     []notify.Offer
	alert      *notify.Alert
	arm        bool
	disarm     bool
	release    string
	submitted  bool
	escalated  int
	acceptedIn time.Duration
}

func (c *Coordinator) begin(j model.Job) *txn {
	return &txn{job: j.Clone(), now: c.clk.Now()}
}

// transition moves the working copy to status to, rejecting anything the
// transition table does not allow.
func (t *txn) transition(to model.Status, reason string) error {
	from := t.job.Status
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	t.job.Status = to
	t.job.UpdatedAt = t.now
	rec := logging.LogRecord{
		Timestamp:    t.now,
		JobID:        t.job.ID,
		Tier:         t.job.Tier,
		From:         from,
		To:           to,
		Level:        t.job.EscalationLevel,
		TechnicianID: t.job.AssignedTechnician,
		Reason:       reason,
	}
	t.records = append(t.records, rec)
	t.evs = append(t.evs, events.TransitionEvent{
		JobID:        t.job.ID,
		Tier:         t.job.Tier,
		From:         from,
		To:           to,
		Level:        t.job.EscalationLevel,
		TechnicianID: t.job.AssignedTechnician,
		Reason:       reason,
		Latency:      t.now.Sub(t.job.CreatedAt),
		At:           t.now,
	})
	return nil
}

// SubmitJob registers a job and dispatches it at level 0. The returned job
// is either broadcasting or, when nobody could be found at any level,
// unmatched. An empty ID is replaced by a generated one.
func (c *Coordinator) SubmitJob(ctx context.Context, req model.Job) (model.Job, error) {
	if err := c.checkOpen(); err != nil {
		return model.Job{}, err
	}
	if err := req.Location.Validate(); err != nil {
		return model.Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if !req.Tier.Valid() {
		return model.Job{}, fmt.Errorf("%w: unknown tier %d", ErrInvalidJob, int(req.Tier))
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := c.logger.With("job_id", req.ID)

	unlock := c.locks.Lock(req.ID)
	exists, err := c.exists(ctx, req.ID)
	if err != nil {
		unlock()
		return model.Job{}, err
	}
	if exists {
		unlock()
		return model.Job{}, fmt.Errorf("%w: %s", ErrDuplicateJob, req.ID)
	}

	now := c.clk.Now()
	job := model.Job{
		ID:              req.ID,
		Location:        req.Location,
		ServiceType:     req.ServiceType,
		Tier:            req.Tier,
		Status:          model.StatusRequested,
		SurgeMultiplier: c.surge(req.Tier),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	t := c.begin(job)
	t.submitted = true
	if err := c.tryDispatch(t); err != nil {
		unlock()
		return model.Job{}, err
	}
	if err := c.commit(ctx, t); err != nil {
		unlock()
		log.Errorf("submit not committed: %v", err)
		return model.Job{}, err
	}
	unlock()

	log.Infof("submitted %s job (%s): %s at level %d", t.job.Tier, t.job.ServiceType, t.job.Status, t.job.EscalationLevel)
	c.deliver(ctx, t)
	return t.job.Clone(), nil
}

// tryDispatch broadcasts the job to new candidates at its current level,
// escalating immediately while a level yields nobody.
func (c *Coordinator) tryDispatch(t *txn) error {
	for {
		cands, tp, err := c.matcher.Match(t.job)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			alive, err := c.escalate(t, true)
			if err != nil || !alive {
				return err
			}
			continue
		}
		ids := make([]string, len(cands))
		for i, cand := range cands {
			ids[i] = cand.TechnicianID
		}
		t.job.AddToBroadcast(ids...)
		t.job.DeadlineAt = t.now.Add(tp.Deadline)
		if err := t.transition(model.StatusBroadcasting, "broadcast"); err != nil {
			return err
		}
		t.records[len(t.records)-1].Candidates = ids
		t.arm = true
		t.disarm = false

		kind := notify.KindOffer
		if t.job.EscalationLevel > 0 {
			kind = notify.KindEscalated
		}
		t.offers = append(t.offers, notify.Offer{
			Job:        notify.Summarize(t.job),
			Kind:       kind,
			Level:      t.job.EscalationLevel,
			Candidates: cands,
			DeadlineAt: t.job.DeadlineAt,
		})
		t.evs = append(t.evs, events.BroadcastEvent{
			JobID:      t.job.ID,
			Tier:       t.job.Tier,
			Level:      t.job.EscalationLevel,
			Candidates: cands,
			At:         t.now,
		})
		return nil
	}
}

// escalate raises the level by one or, past the tier ceiling, ends the job
// unmatched with a single admin alert. It reports whether the job is still
// being dispatched.
func (c *Coordinator) escalate(t *txn, immediate bool) (bool, error) {
	base, err := c.policy.For(t.job.Tier)
	if err != nil {
		return false, err
	}
	if t.job.EscalationLevel+1 > base.EscalationCeiling {
		t.job.DeadlineAt = time.Time{}
		if err := t.transition(model.StatusUnmatched, "escalation exhausted"); err != nil {
			return false, err
		}
		t.arm = false
		t.disarm = true
		t.alert = &notify.Alert{
			Job:        notify.Summarize(t.job),
			Level:      t.job.EscalationLevel,
			Broadcasts: len(t.job.BroadcastSet),
			Message: fmt.Sprintf("%s job %s (%s) unmatched after %d escalation levels, %d technicians notified",
				t.job.Tier, t.job.ID, t.job.ServiceType, t.job.EscalationLevel, len(t.job.BroadcastSet)),
			At: t.now,
		}
		return false, nil
	}
	t.job.EscalationLevel++
	t.job.UpdatedAt = t.now
	t.escalated++
	t.evs = append(t.evs, events.EscalationEvent{
		JobID:     t.job.ID,
		Tier:      t.job.Tier,
		Level:     t.job.EscalationLevel,
		Immediate: immediate,
		At:        t.now,
	})
	return true, nil
}

// Accept assigns the job to technicianID if the job is still broadcasting,
// the technician was offered it and the reservation succeeds. The losing
// side of a race gets ErrReservationConflict; the job is never modified on
// error.
func (c *Coordinator) Accept(ctx context.Context, jobID, technicianID string) (model.Job, error) {
	if err := c.checkOpen(); err != nil {
		return model.Job{}, err
	}
	unlock := c.locks.Lock(jobID)
	j, err := c.lookup(ctx, jobID)
	if err != nil {
		unlock()
		return model.Job{}, err
	}
	if j.Status != model.StatusBroadcasting {
		unlock()
		if j.AssignedTechnician != "" && j.AssignedTechnician != technicianID {
			reservationConflicts.Inc()
			return model.Job{}, fmt.Errorf("%w: job %s already assigned", ErrReservationConflict, jobID)
		}
		return model.Job{}, fmt.Errorf("%w: accept from %s", ErrInvalidTransition, j.Status)
	}
	if !j.HasOffered(technicianID) {
		unlock()
		return model.Job{}, fmt.Errorf("%w: %s on job %s", ErrNotOffered, technicianID, jobID)
	}
	if !c.dir.TryReserve(technicianID) {
		unlock()
		reservationConflicts.Inc()
		return model.Job{}, fmt.Errorf("%w: technician %s is not available", ErrReservationConflict, technicianID)
	}

	t := c.begin(j)
	t.job.AssignedTechnician = technicianID
	t.job.AcceptedAt = t.now
	t.job.DeadlineAt = time.Time{}
	if err := t.transition(model.StatusAccepted, "accepted"); err != nil {
		c.dir.Release(technicianID)
		unlock()
		return model.Job{}, err
	}
	t.disarm = true
	t.acceptedIn = t.now.Sub(t.job.CreatedAt)
	if err := c.commit(ctx, t); err != nil {
		c.dir.Release(technicianID)
		unlock()
		return model.Job{}, err
	}
	unlock()
	c.logger.With("job_id", jobID).Infof("accepted by %s after %s", technicianID, t.acceptedIn)
	return t.job.Clone(), nil
}

// StartWork moves an accepted job to in_progress.
func (c *Coordinator) StartWork(ctx context.Context, jobID string) (model.Job, error) {
	return c.step(ctx, jobID, func(t *txn) error {
		return t.transition(model.StatusInProgress, "work started")
	})
}

// Complete finishes an in-progress job and releases its technician.
func (c *Coordinator) Complete(ctx context.Context, jobID string) (model.Job, error) {
	return c.step(ctx, jobID, func(t *txn) error {
		if err := t.transition(model.StatusCompleted, "completed"); err != nil {
			return err
		}
		t.job.CompletedAt = t.now
		t.release = t.job.AssignedTechnician
		return nil
	})
}

// Cancel stops a broadcasting or accepted job. The deadline timer is
// disarmed and a reserved technician is released.
func (c *Coordinator) Cancel(ctx context.Context, jobID, reason string) (model.Job, error) {
	if reason == "" {
		reason = "cancelled"
	}
	return c.step(ctx, jobID, func(t *txn) error {
		tech := t.job.AssignedTechnician
		if err := t.transition(model.StatusCancelled, reason); err != nil {
			return err
		}
		t.job.AssignedTechnician = ""
		t.job.DeadlineAt = time.Time{}
		t.job.CancelReason = reason
		t.disarm = true
		t.release = tech
		return nil
	})
}

// step runs a simple transition under the job lock and commits it.
func (c *Coordinator) step(ctx context.Context, jobID string, apply func(t *txn) error) (model.Job, error) {
	if err := c.checkOpen(); err != nil {
		return model.Job{}, err
	}
	unlock := c.locks.Lock(jobID)
	j, err := c.lookup(ctx, jobID)
	if err != nil {
		unlock()
		return model.Job{}, err
	}
	t := c.begin(j)
	if err := apply(t); err != nil {
		unlock()
		return model.Job{}, err
	}
	if err := c.commit(ctx, t); err != nil {
		unlock()
		return model.Job{}, err
	}
	unlock()
	c.logger.With("job_id", jobID).Infof("job %s", t.job.Status)
	return t.job.Clone(), nil
}

// onDeadline is invoked by the scheduler when a broadcast window expires.
// A job that already left broadcasting is ignored.
func (c *Coordinator) onDeadline(jobID string) {
	defer monitoring.Recover()
	if c.checkOpen() != nil {
		return
	}
	log := c.logger.With("job_id", jobID)
	unlock := c.locks.Lock(jobID)
	c.mu.RLock()
	live, ok := c.jobs[jobID]
	var j model.Job
	if ok {
		j = live.Clone()
	}
	c.mu.RUnlock()
	if !ok || j.Status != model.StatusBroadcasting {
		unlock()
		log.Debugf("deadline ignored")
		return
	}

	t := c.begin(j)
	alive, err := c.escalate(t, false)
	if err == nil && alive {
		err = c.tryDispatch(t)
	}
	if err == nil {
		err = c.commit(c.ctx, t)
	}
	if err != nil {
		// The job stays broadcasting at its current level; try again after
		// another window so it cannot be stranded.
		tp, perr := c.policy.AtLevel(j.Tier, j.EscalationLevel)
		if perr == nil {
			c.scheduler.Arm(jobID, tp.Deadline, c.onDeadline)
		}
		unlock()
		log.Errorf("escalation not committed: %v", err)
		monitoring.CaptureException(err, map[string]string{"job_id": jobID, "op": "escalate"})
		return
	}
	unlock()
	log.Infof("deadline expired: %s at level %d", t.job.Status, t.job.EscalationLevel)
	c.deliver(c.ctx, t)
}

// commit persists the working copy and applies local side effects. It
// must be called with the job lock held.
func (c *Coordinator) commit(ctx context.Context, t *txn) error {
	if err := t.job.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	c.mu.RLock()
	st := c.store
	c.mu.RUnlock()
	if err := st.Save(ctx, t.job); err != nil {
		return fmt.Errorf("commit job %s: %w", t.job.ID, err)
	}

	stored := t.job.Clone()
	c.mu.Lock()
	if stored.Status.IsTerminal() {
		delete(c.jobs, stored.ID)
	} else {
		c.jobs[stored.ID] = &stored
	}
	active := len(c.jobs)
	journal, bus := c.journal, c.bus
	c.mu.Unlock()

	if t.disarm {
		c.scheduler.Disarm(t.job.ID)
	}
	if t.arm {
		c.scheduler.Arm(t.job.ID, t.job.DeadlineAt.Sub(c.clk.Now()), c.onDeadline)
	}
	if t.release != "" {
		c.dir.Release(t.release)
	}

	if t.submitted {
		jobsSubmitted.WithLabelValues(t.job.Tier.String()).Inc()
	}
	for i := 0; i < t.escalated; i++ {
		lvl := t.job.EscalationLevel - t.escalated + 1 + i
		escalations.WithLabelValues(t.job.Tier.String(), strconv.Itoa(lvl)).Inc()
	}
	for _, r := range t.records {
		jobTransitions.WithLabelValues(r.From.String(), r.To.String()).Inc()
	}
	if t.acceptedIn > 0 {
		acceptLatency.WithLabelValues(t.job.Tier.String()).Observe(t.acceptedIn.Seconds())
	}
	activeJobs.Set(float64(active))

	if journal != nil {
		for _, r := range t.records {
			if err := journal.Append(ctx, r); err != nil {
				c.logger.Errorf("journal append for job %s: %v", r.JobID, err)
			}
		}
	}
	if bus != nil {
		for _, e := range t.evs {
			bus.Publish(e)
		}
	}
	return nil
}

// deliver sends the offers and alert collected by a committed txn.
// Failures never roll back the transition.
func (c *Coordinator) deliver(ctx context.Context, t *txn) {
	for _, o := range t.offers {
		if err := c.notifier.NotifyCandidates(ctx, o); err != nil {
			c.deliveryFailed(t.job.ID, "offer", err)
		}
	}
	if t.alert != nil {
		c.logger.With("job_id", t.job.ID).Warnf("%s", t.alert.Message)
		if err := c.alerter.AlertUnmatched(ctx, *t.alert); err != nil {
			c.deliveryFailed(t.job.ID, "alert", err)
		}
	}
}

func (c *Coordinator) deliveryFailed(jobID, channel string, err error) {
	notifyFailures.WithLabelValues(channel).Inc()
	c.logger.With("job_id", jobID).Warnf("%s delivery failed: %v", channel, err)
	c.mu.RLock()
	bus := c.bus
	c.mu.RUnlock()
	if bus != nil {
		bus.Publish(events.NotifyFailureEvent{JobID: jobID, Channel: channel, Err: err, At: c.clk.Now()})
	}
}

// Get returns a copy of the job, looking in the store for archived jobs.
func (c *Coordinator) Get(ctx context.Context, jobID string) (model.Job, error) {
	return c.lookup(ctx, jobID)
}

// Jobs returns copies of every active job ordered by creation time.
func (c *Coordinator) Jobs() []model.Job {
	c.mu.RLock()
	res := make([]model.Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		res = append(res, j.Clone())
	}
	c.mu.RUnlock()
	sort.Slice(res, func(a, b int) bool {
		if !res[a].CreatedAt.Equal(res[b].CreatedAt) {
			return res[a].CreatedAt.Before(res[b].CreatedAt)
		}
		return res[a].ID < res[b].ID
	})
	return res
}

// History returns committed jobs from the store.
func (c *Coordinator) History(ctx context.Context, q store.Query) ([]model.Job, error) {
	c.mu.RLock()
	st := c.store
	c.mu.RUnlock()
	return st.List(ctx, q)
}

// Journal returns the configured transition journal, if any.
func (c *Coordinator) Journal() logging.LogStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.journal
}

// Run submits jobs received on the channel until the context is canceled
// or the channel is closed.
func (c *Coordinator) Run(ctx context.Context, reqs <-chan SubmitRequest) {
	for {
		select {
		case req, ok := <-reqs:
			if !ok {
				return
			}
			_, err := c.SubmitJob(ctx, req.Job)
			if err != nil {
				c.logger.Errorf("submit %s: %v", req.Job.ID, err)
			}
			if req.Reply != nil {
				select {
				case req.Reply <- err:
				default:
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close disarms every timer and releases the journal and event bus.
// Job records are left in the store.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	journal, bus := c.journal, c.bus
	c.mu.Unlock()

	c.scheduler.Stop()
	c.cancel()
	if bus != nil {
		bus.Close()
	}
	if journal != nil {
		return journal.Close()
	}
	return nil
}

func (c *Coordinator) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Coordinator) surge(tier model.Tier) float64 {
	c.mu.RLock()
	p := c.pricing
	c.mu.RUnlock()
	return p.SurgeMultiplier(tier)
}

// lookup returns the live job or, for archived jobs, the stored record.
func (c *Coordinator) lookup(ctx context.Context, jobID string) (model.Job, error) {
	c.mu.RLock()
	live, ok := c.jobs[jobID]
	var j model.Job
	if ok {
		j = live.Clone()
	}
	st := c.store
	c.mu.RUnlock()
	if ok {
		return j, nil
	}
	j, err := st.Get(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return model.Job{}, err
	}
	return j, nil
}

func (c *Coordinator) exists(ctx context.Context, jobID string) (bool, error) {
	_, err := c.lookup(ctx, jobID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrJobNotFound) {
		return false, nil
	}
	return false, err
}
