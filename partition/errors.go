package partition

import "errors"

var (
	// ErrChunkSize is returned when the chunk size is neither positive nor
	// the Unbounded sentinel.
	ErrChunkSize = errors.New("partition: chunk size must be positive")

	// ErrMaxKeys is returned when the distinct-key cap is neither positive
	// nor NoKeyLimit.
	ErrMaxKeys = errors.New("partition: max keys must be positive")

	// ErrOverflowKey is returned when a finite key cap is configured
	// without an overflow key to redirect excess keys to.
	ErrOverflowKey = errors.New("partition: overflow key required when max keys is limited")
)
