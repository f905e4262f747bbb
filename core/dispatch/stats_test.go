package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/techdispatch/core/model"
)

func TestComputeStats(t *testing.T) {
	base := time.Unix(1000, 0)
	jobs := []model.Job{
		{ID: "a", Tier: model.TierUrgent, Status: model.StatusCompleted, CreatedAt: base, AcceptedAt: base.Add(10 * time.Second), BroadcastSet: []string{"x", "y", "z"}},
		{ID: "b", Tier: model.TierUrgent, Status: model.StatusCancelled, CreatedAt: base, AcceptedAt: base.Add(30 * time.Second), BroadcastSet: []string{"x"}},
		{ID: "c", Tier: model.TierUrgent, Status: model.StatusUnmatched, CreatedAt: base, EscalationLevel: 3, BroadcastSet: []string{"x", "y"}},
		{ID: "d", Tier: model.TierEmergency, Status: model.StatusBroadcasting, CreatedAt: base, EscalationLevel: 1, BroadcastSet: []string{"q"}},
	}
	stats := ComputeStats(jobs)
	require.Len(t, stats, 3)

	normal, urgent, emergency := stats[0], stats[1], stats[2]
	assert.Equal(t, "normal", normal.Tier)
	assert.Zero(t, normal.Submitted)

	assert.Equal(t, 3, urgent.Submitted)
	assert.Equal(t, 2, urgent.Accepted)
	assert.Equal(t, 1, urgent.Unmatched)
	assert.Equal(t, 1, urgent.ByStatus["completed"])
	assert.InDelta(t, 2.0/3.0, urgent.AcceptRate, 1e-9)
	assert.InDelta(t, 20, urgent.MeanAcceptSeconds, 1e-9)
	assert.InDelta(t, 10, urgent.P50AcceptSeconds, 1e-9)
	assert.InDelta(t, 30, urgent.P90AcceptSeconds, 1e-9)
	assert.InDelta(t, 1, urgent.MeanEscalationLevel, 1e-9)
	assert.InDelta(t, 2, urgent.MeanBroadcastSize, 1e-9)

	assert.Equal(t, 1, emergency.Submitted)
	assert.Zero(t, emergency.Accepted)
	assert.Zero(t, emergency.P50AcceptSeconds)
}
