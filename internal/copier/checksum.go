package copier

import (
	"context"
	"fmt"

	"github.com/ferryd/ferry/internal/storage"
)

// Verification is the outcome of comparing source and destination checksums.
type Verification int

const (
	// Match means both backends produced the same checksum.
	Match Verification = iota
	// Mismatch means comparable checksums differ: the copy is corrupt.
	Mismatch
	// Unverifiable means the backends use different checksum algorithms or
	// block layouts, so equality cannot be established either way.
	Unverifiable
)

func (v Verification) String() string {
	switch v {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case Unverifiable:
		return "unverifiable"
	default:
		return "unknown"
	}
}

// CompareChecksums retrieves each backend's native checksum for the given
// paths and compares them. Checksums produced by different algorithms are
// reported Unverifiable, never silently equal.
func CompareChecksums(
	ctx context.Context,
	src storage.Backend, srcPath string,
	dst storage.Backend, dstPath string,
) (Verification, error) {
	srcSum, err := src.Checksum(ctx, srcPath)
	if err != nil {
		return Unverifiable, fmt.Errorf("source checksum %s: %w", srcPath, err)
	}
	dstSum, err := dst.Checksum(ctx, dstPath)
	if err != nil {
		return Unverifiable, fmt.Errorf("destination checksum %s: %w", dstPath, err)
	}

	if !srcSum.Comparable(dstSum) {
		return Unverifiable, nil
	}
	if !srcSum.Equal(dstSum) {
		return Mismatch, nil
	}
	return Match, nil
}
