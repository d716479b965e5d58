package s3

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filestorm/internal/store"
)

// Runs only against a real S3-compatible endpoint (MinIO, Localstack).
//
//	FILESTORM_S3_TEST_ENDPOINT=http://localhost:9000 \
//	FILESTORM_S3_TEST_BUCKET=filestorm-test go test ./internal/store/s3/
func newTestStore(t *testing.T) *S3Store {
	t.Helper()

	endpoint := os.Getenv("FILESTORM_S3_TEST_ENDPOINT")
	bucket := os.Getenv("FILESTORM_S3_TEST_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("FILESTORM_S3_TEST_ENDPOINT not set, skipping S3 integration test")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("minioadmin", "minioadmin", ""),
		),
	)
	require.NoError(t, err)

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	st, err := New(Config{Client: client, Bucket: bucket, KeyPrefix: "it-" + t.Name()})
	require.NoError(t, err)
	return st
}

func TestS3RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0xfe, 0x00, 0x7f}, 4096)
	require.NoError(t, st.Put(ctx, "blob.bin", payload))
	defer st.Delete(ctx, "blob.bin")

	got, err := st.Get(ctx, "blob.bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))

	names, err := st.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "blob.bin")
}

func TestS3NotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Get(ctx, "absent.bin")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.Delete(ctx, "absent.bin"), store.ErrNotFound)
}
