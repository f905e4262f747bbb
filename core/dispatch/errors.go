package dispatch

import "errors"

var (
	// ErrInvalidTransition is returned when an operation is attempted from
	// a status that does not allow it. The job is left untouched.
	ErrInvalidTransition = errors.New("invalid job transition")
	// ErrReservationConflict is returned to the losing side of a race for
	// a job or a technician.
	ErrReservationConflict = errors.New("reservation conflict")
	// ErrNotOffered is returned when a technician accepts a job that was
	// never broadcast to them.
	ErrNotOffered = errors.New("job was not offered to technician")

	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateJob = errors.New("job already exists")
	ErrInvalidJob   = errors.New("invalid job")

	// ErrClosed is returned once the coordinator has been closed.
	ErrClosed = errors.New("coordinator closed")
)

// IsConflict reports whether err should be surfaced as a conflict to the
// caller.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrReservationConflict) ||
		errors.Is(err, ErrNotOffered) ||
		errors.Is(err, ErrDuplicateJob)
}
