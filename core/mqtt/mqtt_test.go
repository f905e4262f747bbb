package mqtt

import (
	"errors"
	"testing"

	"github.com/kilianp07/techdispatch/core/model"
)

func TestTechnicianFromTopic(t *testing.T) {
	id, err := TechnicianFromTopic(ResponseTopic("tech-1"), "response")
	if err != nil || id != "tech-1" {
		t.Fatalf("got %q, %v", id, err)
	}
	for _, topic := range []string{"technician//response", "technician/a/offer", "admin/a/response", "technician/a/b/response"} {
		if _, err := TechnicianFromTopic(topic, "response"); !errors.Is(err, ErrMalformedTopic) {
			t.Errorf("%s: expected ErrMalformedTopic, got %v", topic, err)
		}
	}
}

func TestResponseNormalize(t *testing.T) {
	r := ResponseMessage{JobID: "j", Action: " ACCEPT "}
	if err := r.Normalize(); err != nil || r.Action != ActionAccept {
		t.Fatalf("unexpected %v %q", err, r.Action)
	}
	r = ResponseMessage{JobID: "j"}
	if err := r.Normalize(); err != nil || r.Action != ActionAccept {
		t.Fatalf("empty action should default to accept, got %v %q", err, r.Action)
	}
	r = ResponseMessage{JobID: "j", Action: "maybe"}
	if err := r.Normalize(); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	r = ResponseMessage{Action: "accept"}
	if err := r.Normalize(); err == nil {
		t.Fatal("missing job id must be rejected")
	}
}

func TestJobRequestMessage(t *testing.T) {
	j, err := JobRequestMessage{ID: "j1", Lat: 6.9, Lng: 79.8, ServiceType: "plumbing", Tier: "urgent"}.Job()
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if j.Tier != model.TierUrgent || j.Location.Lat != 6.9 || j.ServiceType != "plumbing" {
		t.Fatalf("unexpected job %+v", j)
	}
	if _, err := (JobRequestMessage{Tier: "critical"}).Job(); err == nil {
		t.Fatal("unknown tier must be rejected")
	}
}
