// Package copier implements the staged single-file copy: stream the source
// into a uniquely named temp file on the destination, verify length and
// checksum, then atomically promote the temp file to the final target. The
// target path never references a partially written or unverified file.
package copier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/ferryd/ferry/internal/storage"
	"github.com/ferryd/ferry/internal/task"
)

// DefaultBufferSize is the stream buffer size used when the config does not
// set one.
const DefaultBufferSize = 8 * 1024

const tmpPrefix = ".ferry.tmp."

// Config carries the knobs one copy runs under. It is passed explicitly so
// the engine holds no ambient state and is safe for concurrent use.
type Config struct {
	// BandwidthBytesPerSec caps the average read rate. Zero or negative
	// means unlimited.
	BandwidthBytesPerSec int64

	// WorkDir is the staging directory temp files are written under. Empty
	// means the target's own parent directory.
	WorkDir string

	// BufferSize is the copy buffer size. Zero means DefaultBufferSize.
	BufferSize int

	// StrictChecksums treats an unverifiable checksum pairing (backends
	// with different algorithms) as a mismatch. When false the pairing is
	// logged and the copy proceeds on the length check alone.
	StrictChecksums bool
}

// Attributes selects which destination properties to preserve from the
// source rather than inherit from destination-backend defaults.
type Attributes struct {
	Replication bool
	BlockSize   bool
}

// Copier copies single files from one backend to another. It holds no
// per-copy mutable state; one Copier may serve many concurrent Copy calls.
type Copier struct {
	Source storage.Backend
	Target storage.Backend
	Config Config
}

// Copy transfers one file and returns the number of bytes copied and
// verified. On any failure the temp file is removed before the classified
// error propagates; the final target is left exactly as it was.
func (c *Copier) Copy(
	ctx context.Context,
	source storage.FileStatus,
	target string,
	attrs Attributes,
	tc *task.Context,
) (int64, error) {
	tmpPath := TempPath(target, c.Config.WorkDir, tc.AttemptID)
	slog.Debug("copying", "source", source.Path, "target", target, "tmp", tmpPath)

	// The temp file is removed on every exit path. A cleanup failure is
	// logged, never allowed to mask the copy's own outcome.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if ok, err := c.Target.Exists(cleanupCtx, tmpPath); err == nil && ok {
			if err := c.Target.Delete(cleanupCtx, tmpPath, false); err != nil {
				slog.Warn("failed to remove temp file", "path", tmpPath, "error", err)
			}
		}
	}()

	bytesRead, err := c.copyToTemp(ctx, source, tmpPath, attrs, tc)
	if err != nil {
		return bytesRead, err
	}

	if err := c.compareLengths(ctx, source, target, tmpPath, bytesRead); err != nil {
		return bytesRead, err
	}
	if bytesRead > 0 {
		if err := c.verifyChecksums(ctx, source, target, tmpPath); err != nil {
			return bytesRead, err
		}
	}
	if err := c.promote(ctx, tmpPath, target, source.Path); err != nil {
		return bytesRead, err
	}

	return bytesRead, nil
}

// TempPath derives the staging path for a copy attempt. It is a pure
// function of the target path and attempt ID, injective across IDs, so
// concurrent tasks writing into the same directory never collide. The temp
// file is rooted at workDir, falling back to the target's parent when no
// workDir is set, or to workDir's parent when the target is workDir itself.
func TempPath(target, workDir, attemptID string) string {
	var root string
	switch {
	case workDir == "":
		root = filepath.Dir(target)
	case filepath.Clean(target) == filepath.Clean(workDir):
		root = filepath.Dir(filepath.Clean(workDir))
	default:
		root = workDir
	}
	return filepath.Join(root, tmpPrefix+attemptID)
}

func (c *Copier) copyToTemp(
	ctx context.Context,
	source storage.FileStatus,
	tmpPath string,
	attrs Attributes,
	tc *task.Context,
) (int64, error) {
	in, err := c.Source.Open(ctx, source.Path)
	if err != nil {
		return 0, &Error{Kind: ReadFailure, Source: source.Path, Target: tmpPath, Err: err}
	}
	defer in.Close()

	bufSize := c.Config.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	out, err := c.Target.Create(ctx, tmpPath, storage.CreateOptions{
		Overwrite:   true,
		BufferSize:  bufSize,
		Replication: resolveReplication(attrs, source, c.Target),
		BlockSize:   resolveBlockSize(attrs, source, c.Target),
	})
	if err != nil {
		return 0, &Error{Kind: WriteFailure, Source: source.Path, Target: tmpPath, Err: err}
	}

	throttled := NewThrottledReader(ctx, in, c.Config.BandwidthBytesPerSec)
	description := fmt.Sprintf("copying %s", source.Path)

	var total int64
	buf := make([]byte, bufSize)
	for {
		n, rerr := throttled.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return total, &Error{Kind: WriteFailure, Source: source.Path, Target: tmpPath, Err: werr}
			}
			total += int64(n)
			tc.SetStatus(FormatProgress(total, source.Size, description))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return total, &Error{Kind: ReadFailure, Source: source.Path, Target: tmpPath, Err: rerr}
		}
	}

	if err := out.Close(); err != nil {
		return total, &Error{Kind: WriteFailure, Source: source.Path, Target: tmpPath, Err: err}
	}

	if tc.Counters != nil {
		tc.Counters.AddSleepTime(throttled.SleepTime())
	}
	slog.Debug("stream stats", "source", source.Path, "stats", throttled.String())
	return total, nil
}

func (c *Copier) compareLengths(
	ctx context.Context,
	source storage.FileStatus,
	target, tmpPath string,
	bytesRead int64,
) error {
	tmpStat, err := c.Target.Stat(ctx, tmpPath)
	if err != nil {
		return &Error{Kind: WriteFailure, Source: source.Path, Target: target,
			Err: fmt.Errorf("stat temp file %s: %w", tmpPath, err)}
	}
	if tmpStat.Size != source.Size {
		return &Error{Kind: LengthMismatch, Source: source.Path, Target: target,
			Err: fmt.Errorf("source is %d bytes, wrote %d bytes (%d read)",
				source.Size, tmpStat.Size, bytesRead)}
	}
	return nil
}

func (c *Copier) verifyChecksums(
	ctx context.Context,
	source storage.FileStatus,
	target, tmpPath string,
) error {
	result, err := CompareChecksums(ctx, c.Source, source.Path, c.Target, tmpPath)
	if err != nil {
		return &Error{Kind: ChecksumMismatch, Source: source.Path, Target: target, Err: err}
	}
	switch result {
	case Mismatch:
		return &Error{Kind: ChecksumMismatch, Source: source.Path, Target: target}
	case Unverifiable:
		if c.Config.StrictChecksums {
			return &Error{Kind: ChecksumMismatch, Source: source.Path, Target: target,
				Err: fmt.Errorf("backends use different checksum algorithms")}
		}
		slog.Warn("checksums not comparable, relying on length check only",
			"source", source.Path, "target", target)
	}
	return nil
}

// promote publishes the verified temp file as the final target:
// delete an existing target, create the target's parent, then rename.
// The sequence is not crash-atomic; if the process dies between the delete
// and the rename the target is transiently absent. That window is inherited
// behavior, kept as is.
func (c *Copier) promote(ctx context.Context, tmpPath, target, sourcePath string) error {
	fail := func(step string, err error) error {
		return &Error{Kind: PromotionFailure, Source: sourcePath, Target: target,
			Err: fmt.Errorf("%s: %w", step, err)}
	}

	exists, err := c.Target.Exists(ctx, target)
	if err != nil {
		return fail("check existing target", err)
	}
	if exists {
		if err := c.Target.Delete(ctx, target, false); err != nil {
			return fail("delete existing target", err)
		}
	}

	parent := filepath.Dir(target)
	if parent != "." && parent != string(filepath.Separator) {
		parentExists, err := c.Target.Exists(ctx, parent)
		if err != nil {
			return fail("check target parent", err)
		}
		if !parentExists {
			if err := c.Target.MkdirAll(ctx, parent); err != nil {
				return fail("create target parent", err)
			}
		}
	}

	if err := c.Target.Rename(ctx, tmpPath, target); err != nil {
		return fail(fmt.Sprintf("rename temp file %s", tmpPath), err)
	}
	return nil
}

func resolveReplication(attrs Attributes, source storage.FileStatus, dst storage.Backend) int {
	if attrs.Replication {
		return source.Replication
	}
	return dst.DefaultReplication()
}

func resolveBlockSize(attrs Attributes, source storage.FileStatus, dst storage.Backend) int64 {
	if attrs.BlockSize {
		return source.BlockSize
	}
	return dst.DefaultBlockSize()
}
