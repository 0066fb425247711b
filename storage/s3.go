package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectURL points at an object in an S3 compatible store, parsed from s3://<bucket>/<key>.
type ObjectURL struct {
	Bucket string
	Key    string
}

func (u ObjectURL) String() string {
	return fmt.Sprintf("s3://%s/%s", u.Bucket, u.Key)
}

func ParseObjectURL(rawURL string) (ObjectURL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ObjectURL{}, fmt.Errorf("invalid upload url: %w", err)
	}

	if parsed.Scheme != "s3" {
		return ObjectURL{}, fmt.Errorf("invalid upload url scheme %q, expected s3", parsed.Scheme)
	}

	out := ObjectURL{
		Bucket: parsed.Host,
		Key:    strings.TrimPrefix(parsed.Path, "/"),
	}
	if out.Bucket == "" {
		return ObjectURL{}, fmt.Errorf("upload url %q has no bucket", rawURL)
	}
	if out.Key == "" || strings.HasSuffix(out.Key, "/") {
		return ObjectURL{}, fmt.Errorf("upload url %q has no object key", rawURL)
	}

	return out, nil
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// S3Uploader talks to S3 compatible stores (MinIO, Ceph, AWS) through an explicit endpoint.
type S3Uploader struct {
	client *minio.Client
	target ObjectURL
	logger *zap.Logger
}

func NewS3Uploader(config S3Config, target ObjectURL, logger *zap.Logger) (*S3Uploader, error) {
	if config.AccessKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("new object storage client: %w", err)
	}

	return &S3Uploader{
		client: client,
		target: target,
		logger: logger,
	}, nil
}

// Upload copies the local file to the target object, creating the bucket when it does not
// exist yet.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) error {
	target := u.target

	exists, err := u.client.BucketExists(ctx, target.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", target.Bucket, err)
	}

	if !exists {
		if err := u.client.MakeBucket(ctx, target.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", target.Bucket, err)
		}
		u.logger.Info("created bucket", zap.String("bucket", target.Bucket))
	}

	info, err := u.client.FPutObject(ctx, target.Bucket, target.Key, localPath, minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("upload %q to %s: %w", localPath, target, err)
	}

	u.logger.Info("uploaded file",
		zap.String("path", localPath),
		zap.Stringer("target", target),
		zap.String("size", humanize.Bytes(uint64(info.Size))),
		zap.String("etag", info.ETag),
	)
	return nil
}
