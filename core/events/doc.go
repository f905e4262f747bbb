// Package events defines the job lifecycle events published on the event
// bus by the dispatch coordinator.
//
// Available event types:
//   - TransitionEvent: a committed status change
//   - BroadcastEvent: offers sent to a batch of candidates
//   - EscalationEvent: a job moved to a wider escalation level
//   - NotifyFailureEvent: an offer or alert could not be delivered
package events
