package mqtt

import "errors"

var (
	// ErrMalformedTopic is returned when a technician id cannot be read from a topic.
	ErrMalformedTopic = errors.New("malformed topic")
	// ErrUnknownAction is returned for technician responses other than accept or decline.
	ErrUnknownAction = errors.New("unknown response action")
)
