package scenarios

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/kilianp07/techdispatch/core/clock"
	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/notify"
	"github.com/kilianp07/techdispatch/infra/logger"
)

// Start is the fake clock origin of every scenario.
var Start = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

var errorKinds = map[string]func(error) bool{
	"conflict":           dispatch.IsConflict,
	"invalid_transition": func(err error) bool { return errors.Is(err, dispatch.ErrInvalidTransition) },
	"not_found":          func(err error) bool { return errors.Is(err, dispatch.ErrJobNotFound) },
	"duplicate":          func(err error) bool { return errors.Is(err, dispatch.ErrDuplicateJob) },
	"invalid":            func(err error) bool { return errors.Is(err, dispatch.ErrInvalidJob) },
	"reservation":        func(err error) bool { return errors.Is(err, dispatch.ErrReservationConflict) },
	"not_offered":        func(err error) bool { return errors.Is(err, dispatch.ErrNotOffered) },
}

var actions = map[string]bool{
	"submit": true, "accept": true, "start": true, "complete": true,
	"cancel": true, "advance": true, "offline": true, "online": true,
}

// Run replays sc against a fresh coordinator on a fake clock and returns
// every mismatch with the expectations. An error means the scenario
// itself is malformed.
func Run(sc *Scenario) ([]string, error) {
	dir := directory.New()
	for _, t := range sc.Technicians {
		if err := dir.Upsert(t.ToModel()); err != nil {
			return nil, err
		}
	}
	jobs := make(map[string]model.Job, len(sc.Jobs))
	for _, jd := range sc.Jobs {
		j, err := jd.ToModel()
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", jd.ID, err)
		}
		jobs[jd.ID] = j
	}

	clk := clock.NewFake(Start)
	rec := &notify.Recorder{}
	coord, err := dispatch.NewCoordinator(dir, dispatch.DefaultPolicy(), rec, rec, clk, logger.NopLogger{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = coord.Close() }()

	for i, st := range sc.Steps {
		if err := validate(st, jobs, dir); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	ctx := context.Background()
	var failures []string
	for i, st := range sc.Steps {
		if msg := checkError(st, apply(ctx, coord, dir, clk, jobs, st)); msg != "" {
			failures = append(failures, fmt.Sprintf("step %d (%s %s): %s", i, st.Action, st.Job, msg))
		}
	}
	return append(failures, verify(ctx, coord, dir, rec, sc.Expected)...), nil
}

func validate(st Step, jobs map[string]model.Job, dir *directory.Directory) error {
	if !actions[st.Action] {
		return fmt.Errorf("unknown action %q", st.Action)
	}
	if st.ExpectError != "" {
		if _, ok := errorKinds[st.ExpectError]; !ok {
			return fmt.Errorf("unknown error kind %q", st.ExpectError)
		}
	}
	switch st.Action {
	case "submit":
		if _, ok := jobs[st.Job]; !ok {
			return fmt.Errorf("unknown job %q", st.Job)
		}
	case "offline", "online":
		if _, ok := dir.Get(st.Technician); !ok {
			return fmt.Errorf("unknown technician %q", st.Technician)
		}
	}
	return nil
}

// apply runs one step and returns the engine's error, if any.
func apply(ctx context.Context, coord *dispatch.Coordinator, dir *directory.Directory, clk *clock.Fake, jobs map[string]model.Job, st Step) error {
	var err error
	switch st.Action {
	case "submit":
		_, err = coord.SubmitJob(ctx, jobs[st.Job])
	case "accept":
		_, err = coord.Accept(ctx, st.Job, st.Technician)
	case "start":
		_, err = coord.StartWork(ctx, st.Job)
	case "complete":
		_, err = coord.Complete(ctx, st.Job)
	case "cancel":
		_, err = coord.Cancel(ctx, st.Job, st.Reason)
	case "advance":
		clk.Advance(time.Duration(st.Duration))
	case "offline", "online":
		t, _ := dir.Get(st.Technician)
		online := st.Action == "online"
		err = dir.UpdateLocation(t.ID, t.Location, &online)
	}
	return err
}

func checkError(st Step, err error) string {
	if st.ExpectError == "" {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}
	if err == nil || !errorKinds[st.ExpectError](err) {
		return fmt.Sprintf("expected %s error, got %v", st.ExpectError, err)
	}
	return ""
}

func verify(ctx context.Context, coord *dispatch.Coordinator, dir *directory.Directory, rec *notify.Recorder, exp Expected) []string {
	var failures []string
	ids := make([]string, 0, len(exp.Jobs))
	for id := range exp.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		want := exp.Jobs[id]
		got, err := coord.Get(ctx, id)
		if err != nil {
			failures = append(failures, fmt.Sprintf("job %s: %v", id, err))
			continue
		}
		if got.Status.String() != want.Status {
			failures = append(failures, fmt.Sprintf("job %s: status %s, want %s", id, got.Status, want.Status))
		}
		if got.AssignedTechnician != want.Technician {
			failures = append(failures, fmt.Sprintf("job %s: technician %q, want %q", id, got.AssignedTechnician, want.Technician))
		}
		if want.Level != nil && got.EscalationLevel != *want.Level {
			failures = append(failures, fmt.Sprintf("job %s: level %d, want %d", id, got.EscalationLevel, *want.Level))
		}
		if want.Broadcast != nil && !slices.Equal(got.BroadcastSet, want.Broadcast) {
			failures = append(failures, fmt.Sprintf("job %s: broadcast %v, want %v", id, got.BroadcastSet, want.Broadcast))
		}
	}

	if n := len(rec.Alerts()); n != exp.Alerts {
		failures = append(failures, fmt.Sprintf("alerts: %d, want %d", n, exp.Alerts))
	}
	if exp.Offers != nil {
		got := make(map[string]int)
		for _, o := range rec.Offers() {
			for _, c := range o.Candidates {
				got[c.TechnicianID]++
			}
		}
		for id, want := range exp.Offers {
			if got[id] != want {
				failures = append(failures, fmt.Sprintf("offers to %s: %d, want %d", id, got[id], want))
			}
		}
	}
	if exp.Available != nil {
		var avail []string
		for _, t := range dir.List(directory.Filter{AvailableOnly: true}) {
			avail = append(avail, t.ID)
		}
		if !slices.Equal(avail, exp.Available) {
			failures = append(failures, fmt.Sprintf("available %v, want %v", avail, exp.Available))
		}
	}
	return failures
}
