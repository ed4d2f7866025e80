package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/dadosbr/stager/pkg/infra/s3"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestParseLocation(t *testing.T) {
	t.Run("https with prefix", func(t *testing.T) {
		loc, err := s3.ParseLocation("s3+https://minio.example.com:9000/datasets/futebol/brasileirao")
		gt.NoError(t, err)
		gt.Value(t, loc.Host).Equal("minio.example.com:9000")
		gt.True(t, loc.Secure)
		gt.Value(t, loc.Bucket).Equal("datasets")
		gt.Value(t, loc.Prefix).Equal("futebol/brasileirao/")
	})

	t.Run("http without prefix", func(t *testing.T) {
		loc, err := s3.ParseLocation("s3+http://localhost:9000/datasets")
		gt.NoError(t, err)
		gt.False(t, loc.Secure)
		gt.Value(t, loc.Bucket).Equal("datasets")
		gt.Value(t, loc.Prefix).Equal("")
	})

	t.Run("plain s3 scheme is rejected", func(t *testing.T) {
		_, err := s3.ParseLocation("s3://datasets/futebol")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagInvalidArgument))
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := s3.ParseLocation("s3+https://minio.example.com/")
		gt.Error(t, err)
	})
}

func TestClient_Download_MissingCredentials(t *testing.T) {
	client := s3.NewClient(t.TempDir(), "", "")
	_, err := client.Download(context.Background(), "s3+http://localhost:9000/datasets/futebol")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagInvalidArgument))
}

func TestClient_Download_WithRealEndpoint(t *testing.T) {
	ref := os.Getenv("TEST_S3_DATASET_REF")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if ref == "" || accessKey == "" || secretKey == "" {
		t.Skip("TEST_S3_DATASET_REF or AWS credentials are not set")
	}

	client := s3.NewClient(t.TempDir(), accessKey, secretKey)
	result, err := client.Download(context.Background(), ref)
	gt.NoError(t, err)
	gt.Number(t, len(result.Files)).Greater(0)
}
