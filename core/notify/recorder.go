package notify

import (
	"context"
	"sync"
)

// Recorder keeps every offer and alert in memory. It is used by tests and
// by the scenario runner.
type Recorder struct {
	mu     sync.Mutex
	offers []Offer
	alerts []Alert
	// Err, when set, is returned from every call after recording.
	Err error
}

func (r *Recorder) NotifyCandidates(_ context.Context, o Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.Candidates = append(o.Candidates[:0:0], o.Candidates...)
	r.offers = append(r.offers, o)
	return r.Err
}

func (r *Recorder) AlertUnmatched(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.Err
}

// Offers returns a copy of the recorded offers.
func (r *Recorder) Offers() []Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Offer(nil), r.offers...)
}

// Alerts returns a copy of the recorded alerts.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

// OffersFor returns the offers sent for one job, oldest first.
func (r *Recorder) OffersFor(jobID string) []Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Offer
	for _, o := range r.offers {
		if o.Job.ID == jobID {
			res = append(res, o)
		}
	}
	return res
}

// AlertsFor returns the alerts raised for one job.
func (r *Recorder) AlertsFor(jobID string) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Alert
	for _, a := range r.alerts {
		if a.Job.ID == jobID {
			res = append(res, a)
		}
	}
	return res
}
