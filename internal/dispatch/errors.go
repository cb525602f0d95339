package dispatch

import (
	"errors"
	"fmt"
)

// Dispatch error taxonomy. Callers match with errors.Is.
var (
	// ErrValidation means the request is malformed or out of range.
	ErrValidation = errors.New("dispatch: validation failed")

	// ErrCommandNotFound means the command id is not in the catalog.
	// It is a validation failure that the HTTP layer reports as 404.
	ErrCommandNotFound = fmt.Errorf("%w: command not found", ErrValidation)

	// ErrTargetNotFound means a coordinator or node does not exist.
	ErrTargetNotFound = errors.New("dispatch: target not found")

	// ErrBrokerUnavailable means the broker link is down; nothing was published.
	ErrBrokerUnavailable = errors.New("dispatch: broker unavailable")

	// ErrPartialPublish means publishing stopped part-way through the fan-out.
	// Frames already sent are not retried or rolled back.
	ErrPartialPublish = errors.New("dispatch: partial publish")
)
