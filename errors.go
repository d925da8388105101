package seqio

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrTaskNotFound is returned when a task name is not registered.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateTask is returned when a task name is registered twice.
	ErrDuplicateTask = errors.New("task already registered")

	// ErrUnknownSplit is returned when a source is asked for a split it
	// does not declare.
	ErrUnknownSplit = errors.New("unknown split")

	// ErrShardOutOfRange is returned when a shard descriptor does not
	// match the source's partitioning.
	ErrShardOutOfRange = errors.New("shard out of range")

	// ErrChecksum is returned when a record frame fails checksum
	// verification on read.
	ErrChecksum = errors.New("record checksum mismatch")
)

// StatsKeyError reports an internal-consistency violation in the
// statistics aggregator: two of the sub-aggregates (example count,
// per-feature token sums, per-feature token maxima) produced the same
// output key. It is fatal for the affected task's pipeline; the
// colliding value is never silently overwritten.
type StatsKeyError struct {
	Key string
}

// Error implements the error interface.
func (e *StatsKeyError) Error() string {
	return fmt.Sprintf("statistics sub-aggregates produced overlapping key %q", e.Key)
}
