package model

import "fmt"

// Status is the lifecycle state of a job.
type Status int

const (
	StatusRequested Status = iota
	StatusBroadcasting
	StatusAccepted
	StatusInProgress
	StatusCompleted
	StatusCancelled
	StatusUnmatched
)

var statusNames = map[Status]string{
	StatusRequested:    "requested",
	StatusBroadcasting: "broadcasting",
	StatusAccepted:     "accepted",
	StatusInProgress:   "in_progress",
	StatusCompleted:    "completed",
	StatusCancelled:    "cancelled",
	StatusUnmatched:    "unmatched",
}

// transitions is the closed set of allowed status changes. A broadcasting
// job may re-enter broadcasting when an escalation widens the search.
var transitions = map[Status]map[Status]bool{
	StatusRequested: {
		StatusBroadcasting: true,
		StatusUnmatched:    true,
	},
	StatusBroadcasting: {
		StatusBroadcasting: true,
		StatusAccepted:     true,
		StatusCancelled:    true,
		StatusUnmatched:    true,
	},
	StatusAccepted: {
		StatusInProgress: true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseStatus converts a wire name into a Status.
func ParseStatus(s string) (Status, error) {
	for st, n := range statusNames {
		if n == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusUnmatched
}

// HoldsTechnician reports whether a job in status s owns a technician
// reservation.
func (s Status) HoldsTechnician() bool {
	return s == StatusAccepted || s == StatusInProgress || s == StatusCompleted
}

// CanTransition reports whether the transition table allows from -> to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

func (s Status) MarshalText() ([]byte, error) {
	n, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(n), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
