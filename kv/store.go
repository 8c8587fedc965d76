// Package kv is the narrow contract spec §6 names as a collaborator: "any
// ordered embedded KV with prefix scans and atomic batches suffices". This
// package defines that contract as a Go interface and backs it with
// cockroachdb/pebble (grounded on ethereum-go-ethereum's go.mod), because an
// ordered LSM store with a pluggable merge operator is exactly what the
// associative bookmark/refcount counters in spec §3-4.4 need.
package kv

import "io"

// Store is the minimal ordered KV contract every package in this module
// depends on, never on *pebble.DB directly — so an in-memory or
// alternative-backend Store can stand in for tests or other deployments.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Merge applies the counter merge operator: the stored value is
	// interpreted as a big-endian int64 and incremented by delta,
	// creating the key with value=delta if absent.
	Merge(key []byte, delta int64) error
	NewBatch() Batch
	NewIterator(lowerBound, upperBound []byte) Iterator
	Close() error
}

// Batch groups writes (including merges) for atomic commit. A KV error
// mid-batch aborts the whole batch, matching the "metadata is written
// atomically with its chunks or rolled back" invariant of spec §3.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	Merge(key []byte, delta int64) error
	Commit() error
	io.Closer
}

// Iterator walks a key range in ascending order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	io.Closer
}

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "kv: key not found" }
