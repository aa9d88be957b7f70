package gantt

import (
	"github.com/pkg/errors"
)

// Structural Errors
var (
	ErrDuplicateName       = newError("Duplicate name")
	ErrInvalidResource     = newError("Invalid resource")
	ErrUnboundVariable     = newError("Unbound variable")
	ErrFrozenProblem       = newError("Problem is frozen")
	ErrInvalidArgument     = newError("Invalid argument")
	ErrInvalidSelection    = newError("Invalid worker selection")
	ErrMalformedExpression = newError("Malformed expression")
	ErrAmbiguousObjective  = newError("Only one objective is supported")
	ErrPrecedenceCycle     = newError("Precedence cycle")
)

// Solution Errors
var (
	ErrInvalidSolutionAccess = newError("Solution is not feasible")
	ErrNotFound              = newError("Not found")
)

// Backend Errors
var (
	ErrBackend           = newError("Backend")
	ErrBackendNotFound   = newError("Backend not found")
	ErrBackendDuplicated = newError("Backend duplicated")
	ErrModel             = newError("Canonical model is invalid")
)

// Codec Errors
var (
	ErrFormat     = newError("Unsupported format")
	ErrDefinition = newError("Definition is invalid")
)

func newError(message string) error {
	return errors.New(message)
}

func newErrorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

func wrapError(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
