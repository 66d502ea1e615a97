package frnn

import (
	"errors"
	"fmt"

	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/internal/snapshot"
	"github.com/hupe1980/frnn/ragged"
)

var (
	// ErrInvalidArgument is matched by every *ValidationError.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedType is matched by every *UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported type")
)

// ValidationError reports a malformed argument: bad shapes, inconsistent
// batch counts, non-monotonic row splits, a non-positive radius or an unknown
// metric tag.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ValidationError struct {
	// Arg names the offending argument, e.g. "points_row_splits".
	Arg string
	// Reason describes the violated constraint.
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("frnn: invalid %s: %s", e.Arg, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Is reports ErrInvalidArgument as a match.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// UnsupportedTypeError reports an index width or coordinate precision outside
// the supported set, or one too narrow for the data it must hold.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type UnsupportedTypeError struct {
	// Type names the offending type, e.g. "int32" or "float16".
	Type string
	// Reason describes why the type cannot be used.
	Reason string
	cause  error
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("frnn: unsupported type %s: %s", e.Type, e.Reason)
}

func (e *UnsupportedTypeError) Unwrap() error { return e.cause }

// Is reports ErrUnsupportedType as a match.
func (e *UnsupportedTypeError) Is(target error) bool { return target == ErrUnsupportedType }

func invalid(arg, format string, args ...any) *ValidationError {
	return &ValidationError{Arg: arg, Reason: fmt.Sprintf(format, args...)}
}

// translateError maps errors of the subpackages onto the public taxonomy.
// arg names the argument the error is attributed to.
func translateError(arg string, err error) error {
	if err == nil {
		return nil
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	var ute *UnsupportedTypeError
	if errors.As(err, &ute) {
		return err
	}

	switch {
	case errors.Is(err, ragged.ErrEmptySplits),
		errors.Is(err, ragged.ErrSplitsStart),
		errors.Is(err, ragged.ErrSplitsDecreasing),
		errors.Is(err, ragged.ErrSplitsTotal):
		return &ValidationError{Arg: arg, Reason: err.Error(), cause: err}
	case errors.Is(err, distance.ErrUnknownMetric):
		return &ValidationError{Arg: arg, Reason: err.Error(), cause: err}
	}

	var ct *snapshot.CoordTypeError
	if errors.As(err, &ct) {
		return &UnsupportedTypeError{Type: ct.Stored.String(), Reason: err.Error(), cause: err}
	}

	return err
}
