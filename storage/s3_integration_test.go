package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	"go.uber.org/zap"
)

func setupMinioContainer(t *testing.T) S3Config {
	t.Helper()
	ctx := context.Background()

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		tcminio.WithUsername("bench"),
		tcminio.WithPassword("bench-password"),
	)
	testcontainers.CleanupContainer(t, minioContainer)
	require.NoError(t, err)

	endpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	return S3Config{
		Endpoint:  endpoint,
		AccessKey: "bench",
		SecretKey: "bench-password",
	}
}

func TestS3Uploader_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping minio container test in short mode")
	}

	ctx := context.Background()
	config := setupMinioContainer(t)

	content := "start_timestamp,end_timestamp\n2024-07-19 06:20:15,2024-07-19 06:20:15\n"
	localPath := filepath.Join(t.TempDir(), "ibd.csv")
	require.NoError(t, os.WriteFile(localPath, []byte(content), 0o644))

	target := ObjectURL{Bucket: "ibd-runs", Key: "2024-07-19/ibd.csv"}
	uploader, err := NewS3Uploader(config, target, zap.NewNop())
	require.NoError(t, err)

	exists, err := uploader.client.BucketExists(ctx, target.Bucket)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, uploader.Upload(ctx, localPath))

	exists, err = uploader.client.BucketExists(ctx, target.Bucket)
	require.NoError(t, err)
	assert.True(t, exists, "bucket is created on first upload")

	object, err := uploader.client.GetObject(ctx, target.Bucket, target.Key, minio.GetObjectOptions{})
	require.NoError(t, err)
	defer object.Close()

	uploaded, err := io.ReadAll(object)
	require.NoError(t, err)
	assert.Equal(t, content, string(uploaded))

	info, err := object.Stat()
	require.NoError(t, err)
	assert.Equal(t, "text/csv", info.ContentType)

	// An existing bucket is reused
	require.NoError(t, uploader.Upload(ctx, localPath))
}
