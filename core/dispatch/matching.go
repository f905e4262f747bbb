package dispatch

import "github.com/kilianp07/techdispatch/core/model"

// TechnicianDirectory is the part of the technician registry used by
// dispatch. TryReserve and Release are the only calls that change
// availability.
type TechnicianDirectory interface {
	FindCandidates(serviceType string, origin model.Location, radiusKm float64, exclude map[string]struct{}) []model.Candidate
	TryReserve(technicianID string) bool
	Release(technicianID string)
}

// MatchingEngine selects the technicians to notify for a job at its
// current escalation level.
type MatchingEngine struct {
	dir    TechnicianDirectory
	policy *Policy
}

// NewMatchingEngine creates a MatchingEngine.
func NewMatchingEngine(dir TechnicianDirectory, policy *Policy) *MatchingEngine {
	return &MatchingEngine{dir: dir, policy: policy}
}

// Match returns up to the level's broadcast count of new candidates,
// skipping technicians already in the job's broadcast set, along with the
// parameters used.
func (m *MatchingEngine) Match(j model.Job) ([]model.Candidate, TierPolicy, error) {
	tp, err := m.policy.AtLevel(j.Tier, j.EscalationLevel)
	if err != nil {
		return nil, TierPolicy{}, err
	}
	cands := m.dir.FindCandidates(j.ServiceType, j.Location, tp.RadiusKm, j.Offered())
	if len(cands) > tp.BroadcastCount {
		cands = cands[:tp.BroadcastCount]
	}
	return cands, tp, nil
}
