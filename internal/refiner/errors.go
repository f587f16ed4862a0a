package refiner

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is the cause recorded when an oracle returns blank text.
var ErrEmptyResponse = errors.New("oracle returned empty text")

// OracleFailure is returned (or recorded) when an oracle or the scorer
// could not produce a result.
type OracleFailure struct {
	Stage StepKind
	Round int
	Err   error
}

func (e *OracleFailure) Error() string {
	return fmt.Sprintf("%s failed in round %d: %v", e.Stage, e.Round, e.Err)
}

func (e *OracleFailure) Unwrap() error { return e.Err }

// ConfigurationError is returned before any oracle call when the run
// cannot start.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}
