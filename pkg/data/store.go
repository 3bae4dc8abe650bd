package data

import (
	"context"
	"errors"
	"fmt"
)

// ErrStorageUnavailable marks failures of the persistent backend itself, as
// opposed to a plain cache miss.
var ErrStorageUnavailable = errors.New("storage unavailable")

type Partition string

const (
	ChaptersPartition Partition = "chapters"
	ImagesPartition   Partition = "images"
)

func (p Partition) valid() bool {
	return p == ChaptersPartition || p == ImagesPartition
}

type Entry struct {
	Key   string
	Value []byte
}

// Store is a two-partition key/value store. Get reports a miss with
// found == false and a nil error.
type Store interface {
	Put(ctx context.Context, partition Partition, key string, value []byte) error
	Get(ctx context.Context, partition Partition, key string) (value []byte, found bool, err error)
	Keys(ctx context.Context, partition Partition) ([]string, error)
	All(ctx context.Context, partition Partition) ([]Entry, error)
	Delete(ctx context.Context, partition Partition, key string) error
	Close() error
}

// Cascader is implemented by stores that can drop a chapter record and its
// page blobs atomically.
type Cascader interface {
	DeleteCascade(ctx context.Context, chapterKey, imagePrefix string) (removed bool, err error)
}

// KV is a single-namespace string slot store, used for the download ledger.
type KV interface {
	GetValue(ctx context.Context, key string) (value string, found bool, err error)
	SetValue(ctx context.Context, key, value string) error
}

func unavailable(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrStorageUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func invalidPartition(p Partition) error {
	return fmt.Errorf("unknown partition %q", p)
}
