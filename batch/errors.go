package batch

import (
	"errors"
	"fmt"

	"github.com/mevdschee/tqentity/entity"
)

var (
	// ErrMaxShapes is returned when the configured shape cap cannot hold
	// both the reserved overflow shape and at least one routed shape.
	ErrMaxShapes = errors.New("batch: max shapes must be at least 2")

	// ErrBatchSize is returned when the configured batch size is neither
	// positive nor the unbounded sentinel.
	ErrBatchSize = errors.New("batch: batch size must be positive")

	// ErrOptimisticLock is the match target for optimistic lock conflicts.
	// A conflict is an expected business condition: the caller may retry
	// or surface it, unlike a generic write failure.
	ErrOptimisticLock = errors.New("batch: optimistic lock conflict")

	// ErrWriteFailed is the match target for fatal batch write failures.
	ErrWriteFailed = errors.New("batch: write failed")
)

// LockError reports a batched row that affected zero rows while a version
// column was in play.
type LockError struct {
	Table string
	Shape Shape
	Row   int
	Key   entity.Key
}

func (e *LockError) Error() string {
	return fmt.Sprintf("batch: optimistic lock conflict on %s row %d key %v (shape %s)",
		e.Table, e.Row, e.Key, e.Shape)
}

func (e *LockError) Unwrap() error { return ErrOptimisticLock }

// WriteError reports a batched row with an unexpected affected-row count.
// It aborts the whole orchestration call.
type WriteError struct {
	Table    string
	Shape    Shape
	Row      int
	Key      entity.Key
	Affected int64
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("batch: write failed on %s row %d key %v: %d rows affected, want 1 (shape %s)",
		e.Table, e.Row, e.Key, e.Affected, e.Shape)
}

func (e *WriteError) Unwrap() error { return ErrWriteFailed }
