package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/zeebo/blake3"
)

const (
	// ChecksumBLAKE3 is the checksum algorithm billy-backed backends expose.
	ChecksumBLAKE3 = "blake3"

	defaultReplication = 1
	defaultBlockSize   = 4 << 20
)

// BillyFS implements Backend over a billy.Filesystem. It serves both the
// local filesystem (osfs) and the in-memory filesystem (memfs) used by
// engine tests. Replication and block size are accepted but have no effect
// on these filesystems; Stat reports the backend defaults.
type BillyFS struct {
	fs billy.Filesystem
}

// NewLocal returns a Backend over the local filesystem rooted at root.
func NewLocal(root string) *BillyFS {
	return &BillyFS{fs: osfs.New(root)}
}

// NewMemory returns a Backend over a fresh in-memory filesystem.
func NewMemory() *BillyFS {
	return &BillyFS{fs: memfs.New()}
}

// Open implements Backend.Open.
func (b *BillyFS) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Create implements Backend.Create.
func (b *BillyFS) Create(_ context.Context, path string, opts CreateOptions) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create parent dir %s: %w", dir, err)
		}
	}

	flag := os.O_WRONLY | os.O_CREATE
	if opts.Overwrite {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_EXCL
	}
	f, err := b.fs.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	if opts.BufferSize > 0 {
		return &bufferedWriter{w: bufio.NewWriterSize(f, opts.BufferSize), c: f}, nil
	}
	return f, nil
}

// Exists implements Backend.Exists.
func (b *BillyFS) Exists(_ context.Context, path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// Delete implements Backend.Delete.
func (b *BillyFS) Delete(_ context.Context, path string, recursive bool) error {
	if recursive {
		if err := util.RemoveAll(b.fs, path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}
	if err := b.fs.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// MkdirAll implements Backend.MkdirAll.
func (b *BillyFS) MkdirAll(_ context.Context, path string) error {
	if err := b.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// Rename implements Backend.Rename.
func (b *BillyFS) Rename(_ context.Context, src, dst string) error {
	if err := b.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// Stat implements Backend.Stat.
func (b *BillyFS) Stat(_ context.Context, path string) (FileStatus, error) {
	info, err := b.fs.Stat(path)
	if err != nil {
		return FileStatus{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileStatus{
		Path:        path,
		Size:        info.Size(),
		Replication: defaultReplication,
		BlockSize:   defaultBlockSize,
	}, nil
}

// Checksum implements Backend.Checksum by streaming the object through
// BLAKE3.
func (b *BillyFS) Checksum(_ context.Context, path string) (Checksum, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return Checksum{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Checksum{}, fmt.Errorf("checksum %s: %w", path, err)
	}
	return Checksum{Algorithm: ChecksumBLAKE3, Sum: h.Sum(nil)}, nil
}

// DefaultReplication implements Backend.DefaultReplication.
func (b *BillyFS) DefaultReplication() int { return defaultReplication }

// DefaultBlockSize implements Backend.DefaultBlockSize.
func (b *BillyFS) DefaultBlockSize() int64 { return defaultBlockSize }

// bufferedWriter flushes its bufio layer before closing the underlying file.
type bufferedWriter struct {
	w *bufio.Writer
	c io.Closer
}

func (bw *bufferedWriter) Write(p []byte) (int, error) { return bw.w.Write(p) }

func (bw *bufferedWriter) Close() error {
	if err := bw.w.Flush(); err != nil {
		bw.c.Close()
		return err
	}
	return bw.c.Close()
}
