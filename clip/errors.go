package clip

import "fmt"

// OutOfRangeError reports a frame or sample request outside a clip's
// timespan under the Strict policy.
type OutOfRangeError struct {
	T        float64
	Duration Rational
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("time %.6fs outside clip span [0s, %s)", e.T, e.Duration)
}

// FormatMismatchError reports incompatible sample rates, channel counts or
// resolutions discovered during compositing or synchronization.
type FormatMismatchError struct {
	Op   string
	Want string
	Got  string
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("%s: format mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// InvalidTransitionError reports concatenation parameters that would
// produce a negative-length segment.
type InvalidTransitionError struct {
	Transition Rational
	ClipIndex  int
	Duration   Rational
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s is not shorter than clip %d duration %s",
		e.Transition, e.ClipIndex, e.Duration)
}

// ResourceError reports a decoder or encoder process that failed to spawn
// or exited abnormally. Stderr carries the tail of its diagnostic output.
type ResourceError struct {
	Op     string
	Path   string
	Stderr string
	Err    error
}

func (e *ResourceError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *ResourceError) Unwrap() error { return e.Err }

// IOError reports a pipe read or write failure while streaming frames to or
// from an external process.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
