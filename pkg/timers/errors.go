package timers

import "errors"

// ErrUnknownPayloadVersion is returned when a reminder payload carries
// a schema version this build does not understand.
var ErrUnknownPayloadVersion = errors.New("unknown reminder payload version")
