package bitmapist

import (
	"errors"
	"fmt"

	"github.com/hupe1980/bitmapist/store"
)

var (
	// ErrInvalidMarkValue is returned when a mark value is not 0 or 1.
	ErrInvalidMarkValue = errors.New("can only mark bitmaps with 0 or 1")

	// ErrInvalidOperandCount is returned when a bit operation gets the wrong
	// number of operands.
	ErrInvalidOperandCount = errors.New("invalid operand count")

	// ErrNoGranularity is returned when an event is marked with an empty set
	// of granularities.
	ErrNoGranularity = errors.New("no granularity selected")

	// ErrIdentityOutOfRange is returned for identities the store cannot address.
	ErrIdentityOutOfRange = errors.New("identity out of range")

	// ErrStoreUnavailable indicates a transport or connection failure.
	// It is never retried by this package.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPartialBatch indicates that a batch of writes may have been partially applied.
	ErrPartialBatch = errors.New("partial batch failure")
)

// OperandCountError reports a bit operation called with the wrong arity.
// It matches ErrInvalidOperandCount with errors.Is.
type OperandCountError struct {
	Op    Op
	Count int
}

func (e *OperandCountError) Error() string {
	if e.Op == Not {
		return fmt.Sprintf("%v: NOT takes exactly 1 operand, got %d", ErrInvalidOperandCount, e.Count)
	}
	return fmt.Sprintf("%v: %s takes at least 1 operand, got %d", ErrInvalidOperandCount, e.Op, e.Count)
}

func (e *OperandCountError) Is(target error) bool { return target == ErrInvalidOperandCount }

// MarkValueError reports a mark value outside {0, 1}.
// It matches ErrInvalidMarkValue with errors.Is.
type MarkValueError struct {
	Value int
}

func (e *MarkValueError) Error() string {
	return fmt.Sprintf("%v: got %d", ErrInvalidMarkValue, e.Value)
}

func (e *MarkValueError) Is(target error) bool { return target == ErrInvalidMarkValue }

// PartialBatchError reports a batch that failed part way through. Commands
// that were applied before the failure are not rolled back.
//
// The original underlying error can be accessed via errors.Unwrap.
type PartialBatchError struct {
	Attempted int
	Failed    int
	cause     error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%v: %d of %d commands failed: %v", ErrPartialBatch, e.Failed, e.Attempted, e.cause)
}

func (e *PartialBatchError) Is(target error) bool { return target == ErrPartialBatch }

func (e *PartialBatchError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// batchError classifies the result of a pipeline execution.
func batchError(attempted, failed int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnavailable) && failed >= attempted {
		return translateError(err)
	}
	return &PartialBatchError{Attempted: attempted, Failed: failed, cause: translateError(err)}
}
