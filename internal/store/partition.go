package store

import "errors"

// Partition names one of the two independent local data stores. Every
// entity resides in exactly one partition at a time; the partition is
// derived from which database holds the row, never stored on the row.
type Partition string

const (
	// PartitionOwned mirrors the private remote scope. The local identity
	// owns everything in it.
	PartitionOwned Partition = "owned"
	// PartitionShared mirrors the shared remote scope: zones the local
	// identity participates in or has promoted a subgraph into.
	PartitionShared Partition = "shared"
)

var (
	// ErrNotFound indicates no partition holds the requested entity.
	ErrNotFound = errors.New("store: entity not found")
	// ErrStorageFailure indicates the underlying partition rejected a read
	// or write. Writes fail atomically; partial application across the
	// entities of one transaction is never observable. The core does not
	// retry; retry policy belongs to the caller.
	ErrStorageFailure = errors.New("store: storage failure")
	// ErrUnknownPartition indicates a partition name outside Owned/Shared.
	ErrUnknownPartition = errors.New("store: unknown partition")
)

// Partitions lists both partitions in owned-first order, the order every
// cross-partition lookup probes them in.
func Partitions() []Partition {
	return []Partition{PartitionOwned, PartitionShared}
}
