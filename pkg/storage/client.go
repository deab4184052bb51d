// Package storage fetches the companion archive from a public S3 bucket.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/doomdumper/doomdumper/pkg/errors"
)

// ErrChecksumMismatch is returned when a download does not hash to the
// expected value. The partial file is removed.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Client provides S3 storage operations
type Client struct {
	s3Client *s3.Client
	bucket   string
	fs       afero.Fs
}

// Option customizes a Client.
type Option func(*s3.Options)

// WithEndpoint points the client at an S3-compatible endpoint using
// path-style addressing.
func WithEndpoint(url string) Option {
	return func(o *s3.Options) {
		o.BaseEndpoint = aws.String(url)
		o.UsePathStyle = true
	}
}

// NewClient creates a new S3 client for anonymous access. Downloads are
// written to fs.
func NewClient(ctx context.Context, fs afero.Fs, bucket, region string, opts ...Option) (*Client, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	s3Opts := make([]func(*s3.Options), 0, len(opts))
	for _, opt := range opts {
		s3Opts = append(s3Opts, opt)
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg, s3Opts...),
		bucket:   bucket,
		fs:       fs,
	}, nil
}

// DownloadResult contains download metadata
type DownloadResult struct {
	LocalPath string
	SHA256    string
	Size      int64
}

// Download fetches s3Key into localPath and hashes it on the way. When
// wantSHA256 is set the file only lands at localPath if the digest matches.
func (c *Client) Download(ctx context.Context, s3Key, localPath, wantSHA256 string) (*DownloadResult, error) {
	slog.Info("s3_download_start", "bucket", c.bucket, "s3_key", s3Key)

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "s3_key", s3Key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	dir := filepath.Dir(localPath)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create download directory")
	}
	f, err := afero.TempFile(c.fs, dir, "."+filepath.Base(localPath)+"-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create local file")
	}
	tmpName := f.Name()
	discard := func() {
		f.Close()
		c.fs.Remove(tmpName)
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), result.Body)
	if err != nil {
		discard()
		slog.Error("s3_download_failed", "s3_key", s3Key, "error", err)
		return nil, errors.Wrap(err, "failed to download file")
	}
	checksum := hex.EncodeToString(hash.Sum(nil))

	if wantSHA256 != "" && !strings.EqualFold(checksum, wantSHA256) {
		discard()
		slog.Error("s3_download_checksum_mismatch", "s3_key", s3Key, "sha256", checksum, "want", wantSHA256)
		return nil, fmt.Errorf("%w: %s has sha256 %s, want %s", ErrChecksumMismatch, s3Key, checksum, wantSHA256)
	}

	if err := f.Close(); err != nil {
		c.fs.Remove(tmpName)
		return nil, errors.Wrap(err, "failed to close local file")
	}
	if err := c.fs.Rename(tmpName, localPath); err != nil {
		c.fs.Remove(tmpName)
		return nil, errors.Wrap(err, "failed to move download into place")
	}

	slog.Info("s3_download_complete",
		"s3_key", s3Key,
		"size", humanize.IBytes(uint64(size)),
		"local_path", localPath,
		"sha256", checksum[:16]+"...",
	)

	return &DownloadResult{
		LocalPath: localPath,
		SHA256:    checksum,
		Size:      size,
	}, nil
}
