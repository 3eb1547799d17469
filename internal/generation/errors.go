package generation

import (
	"errors"
	"fmt"

	"textgend/internal/engine"
)

// invalidArgumentError signals a malformed or out-of-bound request parameter.
// It is the designed rejection path, detected before engine invocation and
// never retried.
type invalidArgumentError struct{ msg string }

func (e invalidArgumentError) Error() string { return e.msg }

// ErrInvalidArgument constructs an invalidArgumentError.
func ErrInvalidArgument(format string, args ...any) error {
	return invalidArgumentError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument reports whether err is a request-validation rejection
// (map to 400).
func IsInvalidArgument(err error) bool {
	var e invalidArgumentError
	return errors.As(err, &e)
}

// IsResourceExhausted reports whether err indicates engine-side memory
// exhaustion (map to 429).
func IsResourceExhausted(err error) bool {
	return errors.Is(err, engine.ErrResourceExhausted)
}

// IsUnavailable reports whether err indicates a missing runtime dependency
// (map to 503).
func IsUnavailable(err error) bool {
	return errors.Is(err, engine.ErrUnavailable)
}
