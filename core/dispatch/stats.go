package dispatch

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/techdispatch/core/model"
	"github.com/kilianp07/techdispatch/core/store"
)

// TierStats summarizes the dispatch outcomes of one tier.
type TierStats struct {
	Tier                string         `json:"tier"`
	Submitted           int            `json:"submitted"`
	ByStatus            map[string]int `json:"by_status"`
	Accepted            int            `json:"accepted"`
	Unmatched           int            `json:"unmatched"`
	AcceptRate          float64        `json:"accept_rate"`
	MeanAcceptSeconds   float64        `json:"mean_accept_seconds"`
	P50AcceptSeconds    float64        `json:"p50_accept_seconds"`
	P90AcceptSeconds    float64        `json:"p90_accept_seconds"`
	MeanEscalationLevel float64        `json:"mean_escalation_level"`
	MeanBroadcastSize   float64        `json:"mean_broadcast_size"`
}

// Stats is a snapshot of dispatch statistics.
type Stats struct {
	GeneratedAt time.Time   `json:"generated_at"`
	ActiveJobs  int         `json:"active_jobs"`
	Tiers       []TierStats `json:"tiers"`
}

// ComputeStats aggregates jobs per tier. A job counts as accepted once it
// has an acceptance time, even if it was cancelled afterwards.
func ComputeStats(jobs []model.Job) []TierStats {
	byTier := make(map[model.Tier][]model.Job)
	for _, j := range jobs {
		byTier[j.Tier] = append(byTier[j.Tier], j)
	}
	res := make([]TierStats, 0, len(model.Tiers))
	for _, tier := range model.Tiers {
		res = append(res, tierStats(tier, byTier[tier]))
	}
	return res
}

func tierStats(tier model.Tier, jobs []model.Job) TierStats {
	ts := TierStats{Tier: tier.String(), Submitted: len(jobs), ByStatus: make(map[string]int)}
	if len(jobs) == 0 {
		return ts
	}
	var latencies []float64
	levels := make([]float64, len(jobs))
	sizes := make([]float64, len(jobs))
	for i, j := range jobs {
		ts.ByStatus[j.Status.String()]++
		if j.Status == model.StatusUnmatched {
			ts.Unmatched++
		}
		if !j.AcceptedAt.IsZero() {
			ts.Accepted++
			latencies = append(latencies, j.AcceptedAt.Sub(j.CreatedAt).Seconds())
		}
		levels[i] = float64(j.EscalationLevel)
		sizes[i] = float64(len(j.BroadcastSet))
	}
	ts.AcceptRate = float64(ts.Accepted) / float64(ts.Submitted)
	ts.MeanEscalationLevel = stat.Mean(levels, nil)
	ts.MeanBroadcastSize = stat.Mean(sizes, nil)
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		ts.MeanAcceptSeconds = stat.Mean(latencies, nil)
		ts.P50AcceptSeconds = stat.Quantile(0.5, stat.Empirical, latencies, nil)
		ts.P90AcceptSeconds = stat.Quantile(0.9, stat.Empirical, latencies, nil)
	}
	return ts
}

// Stats computes statistics over every job in the store.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	jobs, err := c.History(ctx, store.Query{})
	if err != nil {
		return Stats{}, err
	}
	c.mu.RLock()
	active := len(c.jobs)
	c.mu.RUnlock()
	return Stats{GeneratedAt: c.clk.Now(), ActiveJobs: active, Tiers: ComputeStats(jobs)}, nil
}
