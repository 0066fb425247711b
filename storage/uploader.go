package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/streamingfast/dstore"
	"go.uber.org/zap"
)

// Uploader copies a finished local file to its remote location.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// NewUploader picks the uploader serving rawURL. s3:// URLs go through the configured S3
// endpoint, any other scheme supported by dstore (gs://, az://, file://) through dstore.
func NewUploader(rawURL string, s3Config S3Config, logger *zap.Logger) (Uploader, error) {
	if strings.HasPrefix(rawURL, "s3://") {
		target, err := ParseObjectURL(rawURL)
		if err != nil {
			return nil, err
		}
		return NewS3Uploader(s3Config, target, logger)
	}

	return NewStoreUploader(rawURL, logger)
}

type StoreUploader struct {
	store  dstore.Store
	name   string
	url    string
	logger *zap.Logger
}

func NewStoreUploader(rawURL string, logger *zap.Logger) (*StoreUploader, error) {
	idx := strings.LastIndex(rawURL, "/")
	if idx <= 0 || idx == len(rawURL)-1 {
		return nil, fmt.Errorf("upload url %q has no object name", rawURL)
	}

	store, err := dstore.NewStore(rawURL[:idx], "", "", true)
	if err != nil {
		return nil, fmt.Errorf("new store %q: %w", rawURL[:idx], err)
	}

	return &StoreUploader{
		store:  store,
		name:   rawURL[idx+1:],
		url:    rawURL,
		logger: logger,
	}, nil
}

func (u *StoreUploader) Upload(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer file.Close()

	if err := u.store.WriteObject(ctx, u.name, file); err != nil {
		return fmt.Errorf("upload %q to %s: %w", localPath, u.url, err)
	}

	fields := []zap.Field{zap.String("path", localPath), zap.String("target", u.url)}
	if info, err := file.Stat(); err == nil {
		fields = append(fields, zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	u.logger.Info("uploaded file", fields...)
	return nil
}
