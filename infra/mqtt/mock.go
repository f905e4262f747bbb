package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/techdispatch/core/notify"
)

// MockNotifier records offers per technician and can be told to fail
// deliveries for specific technicians.
type MockNotifier struct {
	Offers  map[string][]notify.Offer
	Alerts  []notify.Alert
	FailIDs map[string]bool
	mu      sync.Mutex
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Offers:  make(map[string][]notify.Offer),
		FailIDs: make(map[string]bool),
	}
}

// NotifyCandidates records the offer or returns an error if configured to fail.
func (m *MockNotifier) NotifyCandidates(_ context.Context, offer notify.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var failed []string
	for _, c := range offer.Candidates {
		if m.FailIDs[c.TechnicianID] {
			failed = append(failed, c.TechnicianID)
			continue
		}
		m.Offers[c.TechnicianID] = append(m.Offers[c.TechnicianID], offer)
	}
	if len(failed) > 0 {
		return fmt.Errorf("publish failed for %v", failed)
	}
	return nil
}

// AlertUnmatched records the alert.
func (m *MockNotifier) AlertUnmatched(_ context.Context, alert notify.Alert) error {
	m.mu.Lock()
	m.Alerts = append(m.Alerts, alert)
	m.mu.Unlock()
	return nil
}

// OfferCount returns how many offers technicianID received.
func (m *MockNotifier) OfferCount(technicianID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Offers[technicianID])
}
