package errors

import (
	"fmt"
)

// InvalidRankError occurs when a rank outside of the worker group is queried
type InvalidRankError struct {
	Rank int
	Size int
}

// Error returns a textual representation of this InvalidRankError
func (e InvalidRankError) Error() string {
	return fmt.Sprintf("Invalid rank specified: %d. %d is the limit", e.Rank, e.Size)
}

// OutOfRangeError occurs when a point index lies beyond the end of a partition
type OutOfRangeError struct {
	Index int
	Size  int
}

// Error returns a textual representation of this OutOfRangeError
func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("Point index %d is out of range for a partition of %d points", e.Index, e.Size)
}

// TransportError occurs when a message to or from a peer cannot be delivered
type TransportError struct {
	Op   string
	Rank int
	Err  error
}

// Error returns a textual representation of this TransportError
func (e *TransportError) Error() string {
	return fmt.Sprintf("Transport failure during %s with rank %d: %v", e.Op, e.Rank, e.Err)
}

// Unwrap returns the underlying cause of this TransportError
func (e *TransportError) Unwrap() error {
	return e.Err
}

// UninitializedAccessError occurs when a table is used before it has been initialized or indexed
type UninitializedAccessError struct {
	Op string
}

// Error returns a textual representation of this UninitializedAccessError
func (e UninitializedAccessError) Error() string {
	return fmt.Sprintf("%s called before the table was ready", e.Op)
}

// DuplicateInitError occurs when something which may only be initialized once is initialized again
type DuplicateInitError struct {
	What string
}

// Error returns a textual representation of this DuplicateInitError
func (e DuplicateInitError) Error() string {
	return fmt.Sprintf("%s has already been initialized", e.What)
}
