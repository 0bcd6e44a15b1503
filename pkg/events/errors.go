package events

import "errors"

var (
	// ErrBrokerStopped is returned when publishing after Stop.
	ErrBrokerStopped = errors.New("event broker is stopped")

	// ErrBrokerSaturated is returned when the distribution loop cannot
	// accept more events within the publish retry budget.
	ErrBrokerSaturated = errors.New("event broker is saturated")
)
