package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferryd/ferry/internal/storage"
)

func TestKeyFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data/file.bin", keyFor("/data/file.bin"))
	assert.Equal(t, "data/file.bin", keyFor("data/file.bin"))
}

func TestETagChecksum(t *testing.T) {
	t.Parallel()

	c := etagChecksum(`"d41d8cd98f00b204e9800998ecf8427e"`)
	assert.Equal(t, ChecksumETag, c.Algorithm)
	assert.Equal(t, []byte("d41d8cd98f00b204e9800998ecf8427e"), c.Sum)

	// ETags never compare equal to content hashes from other backends.
	other := storage.Checksum{Algorithm: storage.ChecksumBLAKE3, Sum: c.Sum}
	assert.False(t, c.Comparable(other))
	assert.False(t, c.Equal(other))
}
