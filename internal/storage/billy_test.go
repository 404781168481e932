package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObject(t *testing.T, b Backend, path string, data []byte) {
	t.Helper()
	w, err := b.Create(context.Background(), path, CreateOptions{Overwrite: true})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"memory": NewMemory(),
		"local":  NewLocal(t.TempDir()),
	}
}

func TestBillyRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			writeObject(t, b, "dir/sub/file.txt", []byte("hello world"))

			r, err := b.Open(ctx, "dir/sub/file.txt")
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, []byte("hello world"), got)

			st, err := b.Stat(ctx, "dir/sub/file.txt")
			require.NoError(t, err)
			assert.Equal(t, int64(11), st.Size)
			assert.Equal(t, b.DefaultReplication(), st.Replication)
			assert.Equal(t, b.DefaultBlockSize(), st.BlockSize)
		})
	}
}

func TestBillyCreateNoOverwrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			writeObject(t, b, "file.txt", []byte("one"))

			_, err := b.Create(ctx, "file.txt", CreateOptions{Overwrite: false})
			assert.Error(t, err)

			// Overwrite replaces the content.
			writeObject(t, b, "file.txt", []byte("two"))
			r, err := b.Open(ctx, "file.txt")
			require.NoError(t, err)
			got, _ := io.ReadAll(r)
			r.Close()
			assert.Equal(t, []byte("two"), got)
		})
	}
}

func TestBillyCreateBuffered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()

	w, err := b.Create(ctx, "buf.txt", CreateOptions{Overwrite: true, BufferSize: 64 * 1024})
	require.NoError(t, err)
	_, err = w.Write([]byte("buffered"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	st, err := b.Stat(ctx, "buf.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.Size)
}

func TestBillyExistsDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := b.Exists(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			writeObject(t, b, "f", []byte("x"))
			ok, err = b.Exists(ctx, "f")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, b.Delete(ctx, "f", false))
			ok, err = b.Exists(ctx, "f")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBillyDeleteRecursive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewMemory()

	writeObject(t, b, "tree/a", []byte("a"))
	writeObject(t, b, "tree/sub/b", []byte("b"))

	require.NoError(t, b.Delete(ctx, "tree", true))
	ok, err := b.Exists(ctx, "tree/a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBillyRename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			writeObject(t, b, "old", []byte("data"))
			require.NoError(t, b.Rename(ctx, "old", "new"))

			ok, err := b.Exists(ctx, "old")
			require.NoError(t, err)
			assert.False(t, ok)

			r, err := b.Open(ctx, "new")
			require.NoError(t, err)
			got, _ := io.ReadAll(r)
			r.Close()
			assert.Equal(t, []byte("data"), got)
		})
	}
}

func TestBillyChecksum(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := NewMemory()
	local := NewLocal(t.TempDir())
	writeObject(t, mem, "f", []byte("same content"))
	writeObject(t, local, "f", []byte("same content"))

	c1, err := mem.Checksum(ctx, "f")
	require.NoError(t, err)
	c2, err := local.Checksum(ctx, "f")
	require.NoError(t, err)

	assert.Equal(t, ChecksumBLAKE3, c1.Algorithm)
	assert.True(t, c1.Comparable(c2))
	assert.True(t, c1.Equal(c2))

	writeObject(t, mem, "g", []byte("different"))
	c3, err := mem.Checksum(ctx, "g")
	require.NoError(t, err)
	assert.False(t, c1.Equal(c3))
}

func TestChecksumComparable(t *testing.T) {
	t.Parallel()

	a := Checksum{Algorithm: "blake3", Sum: []byte{1}}
	b := Checksum{Algorithm: "etag", Sum: []byte{1}}
	assert.False(t, a.Comparable(b))
	assert.False(t, a.Equal(b))
	assert.False(t, Checksum{}.Comparable(Checksum{}))
}
