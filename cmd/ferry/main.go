package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferryd/ferry/internal/config"
	"github.com/ferryd/ferry/internal/copier"
	"github.com/ferryd/ferry/internal/retry"
	"github.com/ferryd/ferry/internal/stats"
	"github.com/ferryd/ferry/internal/storage"
	"github.com/ferryd/ferry/internal/storage/s3"
	"github.com/ferryd/ferry/internal/task"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// location is a parsed source or target argument.
type location struct {
	s3     bool
	bucket string
	path   string
}

func parseLocation(raw string) location {
	if after, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, _ := strings.Cut(after, "/")
		return location{s3: true, bucket: bucket, path: key}
	}
	return location{path: raw}
}

// backendFor builds the storage backend for a location and returns the
// path to use against it.
func backendFor(loc location, s3cfg config.S3Config) (storage.Backend, string, error) {
	if loc.s3 {
		if loc.bucket == "" {
			return nil, "", fmt.Errorf("s3 location missing bucket")
		}
		b, err := s3.New(s3.Options{
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			Bucket:    loc.bucket,
			UseSSL:    s3cfg.UseSSL,
		})
		if err != nil {
			return nil, "", err
		}
		return b, loc.path, nil
	}

	abs, err := filepath.Abs(loc.path)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", loc.path, err)
	}
	return storage.NewLocal("/"), abs, nil
}

// parseSize parses a byte count with an optional K/M/G/T suffix.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	case 'T', 't':
		mult = 1 << 40
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// parsePreserve maps a flag string like "rb" onto copy attributes:
// r preserves the replication factor, b the block size.
func parsePreserve(s string) (copier.Attributes, error) {
	var attrs copier.Attributes
	for _, c := range s {
		switch c {
		case 'r':
			attrs.Replication = true
		case 'b':
			attrs.BlockSize = true
		default:
			return copier.Attributes{}, fmt.Errorf("unknown preserve flag %q (want r, b)", c)
		}
	}
	return attrs, nil
}

func run() int {
	var (
		bwLimitStr        string
		workDir           string
		attempts          int
		retryDelayStr     string
		preserveStr       string
		skipOnReadFailure bool
		relaxedChecksums  bool
		verbose           bool
		quiet             bool
		showVersion       bool
	)

	rootCmd := &cobra.Command{
		Use:   "ferry [flags] <source> <target>",
		Short: "Reliable single-file copy with staged writes, verification and throttling",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "ferry %s\n", version)
				return nil
			}

			// Configure logging.
			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			} else if quiet {
				logLevel = slog.LevelWarn
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			}))
			slog.SetDefault(logger)

			// Load optional config file and apply defaults for flags not
			// explicitly set on the CLI.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			if !cmd.Flags().Changed("bwlimit") && cfg.Defaults.BWLimit != nil {
				bwLimitStr = *cfg.Defaults.BWLimit
			}
			if !cmd.Flags().Changed("work-dir") && cfg.Defaults.WorkDir != nil {
				workDir = *cfg.Defaults.WorkDir
			}
			if !cmd.Flags().Changed("attempts") && cfg.Defaults.Attempts != nil {
				attempts = *cfg.Defaults.Attempts
			}
			if !cmd.Flags().Changed("retry-delay") && cfg.Defaults.RetryDelay != nil {
				retryDelayStr = *cfg.Defaults.RetryDelay
			}

			var bwLimit int64
			if bwLimitStr != "" {
				bwLimit, err = parseSize(bwLimitStr)
				if err != nil {
					return fmt.Errorf("invalid --bwlimit: %w", err)
				}
			}
			retryDelay, err := time.ParseDuration(retryDelayStr)
			if err != nil {
				return fmt.Errorf("invalid --retry-delay: %w", err)
			}
			attrs, err := parsePreserve(preserveStr)
			if err != nil {
				return err
			}

			srcLoc := parseLocation(args[0])
			dstLoc := parseLocation(args[1])

			srcBackend, srcPath, err := backendFor(srcLoc, cfg.S3)
			if err != nil {
				return fmt.Errorf("source %s: %w", args[0], err)
			}
			dstBackend, dstPath, err := backendFor(dstLoc, cfg.S3)
			if err != nil {
				return fmt.Errorf("target %s: %w", args[1], err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			source, err := srcBackend.Stat(ctx, srcPath)
			if err != nil {
				return fmt.Errorf("source %s: %w", args[0], err)
			}

			cp := &copier.Copier{
				Source: srcBackend,
				Target: dstBackend,
				Config: copier.Config{
					BandwidthBytesPerSec: bwLimit,
					WorkDir:              workDir,
					StrictChecksums:      !relaxedChecksums,
				},
			}

			collector := stats.NewCollector()
			status := func(s string) { slog.Debug("progress", "status", s) }

			slog.Info("starting copy",
				"source", args[0], "target", args[1],
				"size", stats.FormatBytes(source.Size), "attempts", attempts)

			// Each attempt runs under a fresh task context so retries
			// never reuse a temp path.
			op := func(ctx context.Context) (int64, error) {
				collector.AddAttempts(1)
				tc := task.New(collector, status)
				return cp.Copy(ctx, source, dstPath, attrs, tc)
			}

			bytesCopied, err := retry.Do(ctx, retry.Policy{
				MaxAttempts: attempts,
				Delay:       retryDelay,
				Backoff:     2,
			}, op, copier.IsRetriable)

			if err != nil {
				if skipOnReadFailure && copier.IsRetriable(err) {
					collector.AddFilesSkipped(1)
					slog.Warn("skipping file after repeated read failures", "error", err)
					printSummary(quiet, collector)
					return &exitError{code: 1}
				}
				collector.AddFilesFailed(1)
				slog.Error("copy failed", "error", err)
				printSummary(quiet, collector)
				return &exitError{code: 2}
			}

			collector.AddFilesCopied(1)
			collector.AddBytesCopied(bytesCopied)
			slog.Info("copy complete", "bytes", stats.FormatBytes(bytesCopied))
			printSummary(quiet, collector)
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().StringVar(&bwLimitStr, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	rootCmd.Flags().StringVar(&workDir, "work-dir", "", "staging directory for temp files (default: target's parent)")
	rootCmd.Flags().IntVar(&attempts, "attempts", 3, "attempt budget for read failures")
	rootCmd.Flags().StringVar(&retryDelayStr, "retry-delay", "1s", "delay before the first retry")
	rootCmd.Flags().StringVarP(&preserveStr, "preserve", "p", "", "preserve source attributes: r (replication), b (block size)")
	rootCmd.Flags().BoolVar(&skipOnReadFailure, "skip-on-read-failure", false, "abandon the file instead of failing when reads keep failing")
	rootCmd.Flags().BoolVar(&relaxedChecksums, "relaxed-checksums", false, "proceed on length check alone when checksums are not comparable")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func printSummary(quiet bool, collector *stats.Collector) {
	if quiet {
		return
	}
	fmt.Fprintln(os.Stderr, collector.Snapshot().String())
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
