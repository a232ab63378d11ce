package errors

import "errors"

// The error taxonomy of the store and its repositories. Callers test with errors.Is.
var (
	NotFound           = errors.New("not found")
	Conflict           = errors.New("conflict")
	PreconditionFailed = errors.New("precondition failed")
	InvalidInput       = errors.New("invalid input")
	AlreadyExists      = errors.New("already exists")

	// SlowConsumer is reported by a subscription that was dropped because it stopped reading.
	SlowConsumer = errors.New("slow consumer")
)
