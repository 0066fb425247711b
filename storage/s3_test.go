package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expect      ObjectURL
		expectError bool
	}{
		{name: "simple", url: "s3://bench/ibd.csv", expect: ObjectURL{Bucket: "bench", Key: "ibd.csv"}},
		{name: "nested key", url: "s3://bench/runs/2024-07-19/ibd.csv", expect: ObjectURL{Bucket: "bench", Key: "runs/2024-07-19/ibd.csv"}},
		{name: "wrong scheme", url: "gs://bench/ibd.csv", expectError: true},
		{name: "no bucket", url: "s3:///ibd.csv", expectError: true},
		{name: "no key", url: "s3://bench", expectError: true},
		{name: "directory key", url: "s3://bench/runs/", expectError: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := ParseObjectURL(test.url)
			if test.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expect, out)
			assert.Equal(t, test.url, out.String())
		})
	}
}

func TestNewUploader(t *testing.T) {
	config := S3Config{Endpoint: "localhost:9000", AccessKey: "access", SecretKey: "secret"}

	uploader, err := NewUploader("s3://bench/ibd.csv", config, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &S3Uploader{}, uploader)
	assert.Equal(t, ObjectURL{Bucket: "bench", Key: "ibd.csv"}, uploader.(*S3Uploader).target)

	_, err = NewUploader("s3://bench/ibd.csv", S3Config{Endpoint: "localhost:9000"}, zap.NewNop())
	require.Error(t, err, "credentials are required")

	_, err = NewUploader("s3://bench/ibd.csv", S3Config{Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "s"}, zap.NewNop())
	require.Error(t, err, "endpoint is a host and port")

	uploader, err = NewUploader("file:///tmp/ibd/out.csv", S3Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &StoreUploader{}, uploader)
}

func TestStoreUploader_Local(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "ibd.csv")
	require.NoError(t, os.WriteFile(localPath, []byte("height\n1\n"), 0o644))

	targetDir := filepath.Join(dir, "remote")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))

	uploader, err := NewStoreUploader("file://"+targetDir+"/copy.csv", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, uploader.Upload(context.Background(), localPath))

	content, err := os.ReadFile(filepath.Join(targetDir, "copy.csv"))
	require.NoError(t, err)
	assert.Equal(t, "height\n1\n", string(content))

	_, err = NewStoreUploader("file:///tmp/ibd/", zap.NewNop())
	require.Error(t, err)
}
