package app

import "errors"

// Sentinel kinds for ingress validation errors. The HTTP layer maps these
// to request-level responses; none of them ever reach the aggregator.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrMissingSubject      = errors.New("missing subject id")
	ErrMissingHeartRate    = errors.New("missing heart rate")
	ErrHeartRateOutOfRange = errors.New("heart rate out of range")
)
