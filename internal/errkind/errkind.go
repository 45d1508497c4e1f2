// Package errkind carries the Shadow-Cast error taxonomy through every
// completion in the capture->encode->mux pipeline.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a failure without committing to a concrete Go type per
// failure site, mirroring the original's use of std::errc over a custom
// exception hierarchy.
type Kind int

const (
	// Unknown is the zero value and should never be returned deliberately.
	Unknown Kind = iota
	ConfigError
	IoError
	CaptureFailure
	GpuFailure
	EncoderFailure
	MuxerFailure
	Cancelled
	Timeout
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config_error"
	case IoError:
		return "io_error"
	case CaptureFailure:
		return "capture_failure"
	case GpuFailure:
		return "gpu_failure"
	case EncoderFailure:
		return "encoder_failure"
	case MuxerFailure:
		return "muxer_failure"
	case Cancelled:
		return "cancelled"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind so callers can branch on failure class
// with errors.Is while still retaining the underlying error for logging.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, errkind.IsCancelled) work by comparing Kind, not
// identity — every site that wraps a Cancelled cause is still "cancelled".
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// sentinel returns a comparable *Error usable as an errors.Is target, e.g.
// errors.Is(err, errkind.IsCancelled).
func sentinel(k Kind) *Error { return &Error{Kind: k} }

var (
	// IsCancelled is the errors.Is target for a Cancelled-kind error.
	IsCancelled = sentinel(Cancelled)
	IsTimeout   = sentinel(Timeout)
)

// OfKind reports the Kind of err, walking Unwrap chains, or Unknown if err
// does not carry one.
func OfKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err's Kind equals k.
func IsKind(err error, k Kind) bool {
	return OfKind(err) == k
}
