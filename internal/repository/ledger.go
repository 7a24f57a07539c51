package repository

import (
	"context"
	"encoding/json"
	"iter"
)

// Partition names the ledger resources. Each partition is an ordered,
// append-only sequence of JSON records.
type Partition string

const (
	PartitionDrivers    Partition = "drivers"
	PartitionPassengers Partition = "passengers"
	PartitionSchools    Partition = "schools"
	// PartitionUsers mirrors every user record for visibility. Writes to it
	// are best-effort.
	PartitionUsers Partition = "users"
)

// Ledger persists records append-only per partition.
type Ledger interface {
	// ReadAll returns the raw records of a partition in append order. The
	// sequence is lazy and may be ranged over more than once; each range
	// re-reads the underlying resource. Malformed entries are skipped. A
	// read failure is yielded once as a *domain.StorageError.
	ReadAll(ctx context.Context, partition Partition) iter.Seq2[json.RawMessage, error]
	// Append serializes record and adds it to the partition atomically with
	// respect to other Append calls on the same partition.
	Append(ctx context.Context, partition Partition, record any) error
	Close() error
}

// Decode adapts a raw ledger sequence into typed records. Entries that do not
// decode into T are skipped.
func Decode[T any](seq iter.Seq2[json.RawMessage, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for raw, err := range seq {
			var v T
			if err != nil {
				if !yield(v, err) {
					return
				}
				continue
			}
			if json.Unmarshal(raw, &v) != nil {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
