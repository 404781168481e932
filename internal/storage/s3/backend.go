// Package s3 implements the storage backend over any S3-compatible object
// store. Objects have no replication or block layout to preserve, so create
// options map onto multipart upload sizing, and the native checksum is the
// object ETag. ETags are not comparable with content hashes from other
// backends; cross-backend copies surface that as an unverifiable pairing.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ferryd/ferry/internal/storage"
)

// ChecksumETag is the checksum algorithm S3 backends expose.
const ChecksumETag = "etag"

const (
	defaultReplication = 1
	defaultPartSize    = 64 << 20
)

// Options configure a connection to an S3-compatible endpoint.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Backend implements storage.Backend over a single bucket.
type Backend struct {
	client *minio.Client
	bucket string
}

// New connects to the endpoint described by opts.
func New(opts Options) (*Backend, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 connect %s: %w", opts.Endpoint, err)
	}
	return &Backend{client: client, bucket: opts.Bucket}, nil
}

// keyFor maps a path to an object key. S3 keys have no leading slash.
func keyFor(path string) string {
	return strings.TrimPrefix(path, "/")
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.Code == "NotFound"
}

// Open implements storage.Backend.Open.
func (b *Backend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, keyFor(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 open %s: %w", path, err)
	}
	// GetObject is lazy; force the request so a missing key fails here,
	// not on the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("s3 open %s: %w", path, err)
	}
	return obj, nil
}

// Create implements storage.Backend.Create. The returned writer streams
// into a multipart upload; Close completes the upload and reports its
// outcome. BlockSize is used as the multipart part size.
func (b *Backend) Create(ctx context.Context, path string, opts storage.CreateOptions) (io.WriteCloser, error) {
	if !opts.Overwrite {
		exists, err := b.Exists(ctx, path)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("s3 create %s: object already exists", path)
		}
	}

	partSize := uint64(defaultPartSize)
	if opts.BlockSize > 0 {
		partSize = uint64(opts.BlockSize)
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := b.client.PutObject(ctx, b.bucket, keyFor(path), pr, -1,
			minio.PutObjectOptions{PartSize: partSize})
		// Unblock any writer still waiting on the pipe.
		pr.CloseWithError(err)
		done <- err
	}()

	return &uploadWriter{pw: pw, done: done, path: path}, nil
}

// Exists implements storage.Backend.Exists.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, keyFor(path), minio.StatObjectOptions{})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("s3 stat %s: %w", path, err)
	}
}

// Delete implements storage.Backend.Delete. Recursive deletes remove every
// object under the path prefix.
func (b *Backend) Delete(ctx context.Context, path string, recursive bool) error {
	key := keyFor(path)
	if !recursive {
		if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("s3 remove %s: %w", path, err)
		}
		return nil
	}

	prefix := strings.TrimSuffix(key, "/") + "/"
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("s3 list %s: %w", path, obj.Err)
		}
		if err := b.client.RemoveObject(ctx, b.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("s3 remove %s: %w", obj.Key, err)
		}
	}
	// The path itself may also name an object.
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove %s: %w", path, err)
	}
	return nil
}

// MkdirAll implements storage.Backend.MkdirAll. Object stores have no
// directories; prefixes exist implicitly.
func (b *Backend) MkdirAll(context.Context, string) error { return nil }

// Rename implements storage.Backend.Rename as a server-side copy followed
// by a delete of the source object.
func (b *Backend) Rename(ctx context.Context, src, dst string) error {
	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.bucket, Object: keyFor(dst)},
		minio.CopySrcOptions{Bucket: b.bucket, Object: keyFor(src)},
	)
	if err != nil {
		return fmt.Errorf("s3 copy %s -> %s: %w", src, dst, err)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, keyFor(src), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove %s after copy: %w", src, err)
	}
	return nil
}

// Stat implements storage.Backend.Stat.
func (b *Backend) Stat(ctx context.Context, path string) (storage.FileStatus, error) {
	info, err := b.client.StatObject(ctx, b.bucket, keyFor(path), minio.StatObjectOptions{})
	if err != nil {
		return storage.FileStatus{}, fmt.Errorf("s3 stat %s: %w", path, err)
	}
	return storage.FileStatus{
		Path:        path,
		Size:        info.Size,
		Replication: defaultReplication,
		BlockSize:   defaultPartSize,
	}, nil
}

// Checksum implements storage.Backend.Checksum using the object ETag.
func (b *Backend) Checksum(ctx context.Context, path string) (storage.Checksum, error) {
	info, err := b.client.StatObject(ctx, b.bucket, keyFor(path), minio.StatObjectOptions{})
	if err != nil {
		return storage.Checksum{}, fmt.Errorf("s3 checksum %s: %w", path, err)
	}
	return etagChecksum(info.ETag), nil
}

// DefaultReplication implements storage.Backend.DefaultReplication.
func (b *Backend) DefaultReplication() int { return defaultReplication }

// DefaultBlockSize implements storage.Backend.DefaultBlockSize.
func (b *Backend) DefaultBlockSize() int64 { return defaultPartSize }

func etagChecksum(etag string) storage.Checksum {
	return storage.Checksum{
		Algorithm: ChecksumETag,
		Sum:       []byte(strings.Trim(etag, `"`)),
	}
}

// uploadWriter adapts a streaming PutObject to io.WriteCloser.
type uploadWriter struct {
	pw   *io.PipeWriter
	done chan error
	path string
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *uploadWriter) Close() error {
	w.pw.Close()
	if err := <-w.done; err != nil {
		return fmt.Errorf("s3 upload %s: %w", w.path, err)
	}
	return nil
}
