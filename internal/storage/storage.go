// Package storage abstracts the file backends a copy operates between.
// A Backend exposes the small set of operations the copy engine needs:
// streaming reads and writes, metadata, atomic rename, and a backend-native
// content checksum.
package storage

import (
	"bytes"
	"context"
	"io"
)

// FileStatus is immutable metadata for a stored object.
type FileStatus struct {
	Path        string
	Size        int64
	Replication int
	BlockSize   int64
}

// CreateOptions control how a backend creates an object for writing.
type CreateOptions struct {
	Overwrite   bool
	BufferSize  int
	Replication int
	BlockSize   int64
}

// Checksum is a backend-native content checksum. Checksums from different
// algorithms are not comparable; see Comparable.
type Checksum struct {
	Algorithm string
	Sum       []byte
}

// Comparable reports whether two checksums were produced by the same
// algorithm and can therefore be meaningfully compared.
func (c Checksum) Comparable(other Checksum) bool {
	return c.Algorithm != "" && c.Algorithm == other.Algorithm
}

// Equal reports whether two comparable checksums have the same digest.
func (c Checksum) Equal(other Checksum) bool {
	return c.Comparable(other) && bytes.Equal(c.Sum, other.Sum)
}

// Backend is the storage capability the copy engine is written against.
// Implementations must provide atomic rename semantics at single-path
// granularity; nothing else is assumed.
type Backend interface {
	// Open opens the object at path for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create opens the object at path for writing. Parent directories are
	// created as needed. With opts.Overwrite false, Create fails if the
	// object already exists.
	Create(ctx context.Context, path string, opts CreateOptions) (io.WriteCloser, error)

	// Exists reports whether an object or directory exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object at path. Directories require recursive.
	Delete(ctx context.Context, path string, recursive bool) error

	// MkdirAll creates the directory at path along with any parents.
	MkdirAll(ctx context.Context, path string) error

	// Rename atomically moves src to dst.
	Rename(ctx context.Context, src, dst string) error

	// Stat returns metadata for the object at path.
	Stat(ctx context.Context, path string) (FileStatus, error)

	// Checksum returns the backend's native content checksum for path.
	Checksum(ctx context.Context, path string) (Checksum, error)

	// DefaultReplication is the replication factor used when the caller
	// does not preserve the source's.
	DefaultReplication() int

	// DefaultBlockSize is the block size used when the caller does not
	// preserve the source's.
	DefaultBlockSize() int64
}
