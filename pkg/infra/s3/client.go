package s3

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/dadosbr/stager/pkg/infra/mirror"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Location is a parsed s3+http(s)://host/bucket/prefix ref
type Location struct {
	Host   string
	Secure bool
	Bucket string
	Prefix string
}

// ParseLocation parses an s3+http:// or s3+https:// ref
func ParseLocation(ref string) (*Location, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse S3 ref", goerr.V("ref", ref), goerr.T(types.ErrTagInvalidArgument))
	}

	loc := &Location{Host: u.Host}
	switch u.Scheme {
	case "s3+http":
	case "s3+https":
		loc.Secure = true
	default:
		return nil, goerr.New("S3 ref must use s3+http or s3+https", goerr.V("ref", ref), goerr.T(types.ErrTagInvalidArgument))
	}

	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if loc.Host == "" || bucket == "" {
		return nil, goerr.New("S3 ref must look like s3+https://host/bucket/prefix", goerr.V("ref", ref), goerr.T(types.ErrTagInvalidArgument))
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	loc.Bucket = bucket
	loc.Prefix = prefix
	return loc, nil
}

// Client mirrors objects under an S3 prefix into a local cache directory
type Client struct {
	cacheDir        string
	accessKeyID     string
	secretAccessKey string
}

// NewClient creates an S3 dataset client
func NewClient(cacheDir, accessKeyID, secretAccessKey string) *Client {
	return &Client{
		cacheDir:        cacheDir,
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
	}
}

// Download mirrors every object under the ref's prefix into the cache.
// Objects removed upstream disappear from the mirror.
func (c *Client) Download(ctx context.Context, ref string) (*model.DownloadResult, error) {
	logger := ctxlog.From(ctx)

	loc, err := ParseLocation(ref)
	if err != nil {
		return nil, err
	}
	if c.accessKeyID == "" || c.secretAccessKey == "" {
		return nil, goerr.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for S3 datasets", goerr.T(types.ErrTagInvalidArgument))
	}

	mc, err := minio.New(loc.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(c.accessKeyID, c.secretAccessKey, ""),
		Secure: loc.Secure,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create S3 client", goerr.V("host", loc.Host))
	}

	dir := filepath.Join(c.cacheDir, "s3", loc.Host, loc.Bucket, filepath.FromSlash(strings.TrimSuffix(loc.Prefix, "/")))

	logger.Info("Downloading dataset from S3", "host", loc.Host, "bucket", loc.Bucket, "prefix", loc.Prefix, "dir", dir)

	result, err := mirror.Sync(ctx, &remote{client: mc, loc: loc}, dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to mirror S3 prefix", goerr.V("bucket", loc.Bucket), goerr.V("prefix", loc.Prefix))
	}

	logger.Info("Downloaded dataset from S3", "file_count", len(result.Files), "total_size_bytes", result.Size)

	return result, nil
}

// remote lists and reads objects of one bucket prefix
type remote struct {
	client *minio.Client
	loc    *Location
}

func (r *remote) Walk(ctx context.Context, fn func(obj mirror.Object) error) error {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range r.client.ListObjects(listCtx, r.loc.Bucket, minio.ListObjectsOptions{Prefix: r.loc.Prefix, Recursive: true}) {
		if obj.Err != nil {
			return goerr.Wrap(obj.Err, "failed to list objects")
		}

		if err := fn(mirror.Object{
			Name:     obj.Key,
			Key:      strings.TrimPrefix(obj.Key, r.loc.Prefix),
			Size:     obj.Size,
			Modified: obj.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *remote) Open(ctx context.Context, obj mirror.Object) (io.ReadCloser, error) {
	return r.client.GetObject(ctx, r.loc.Bucket, obj.Name, minio.GetObjectOptions{})
}
