package kaggle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/dadosbr/stager/pkg/infra/archive"
	"github.com/dadosbr/stager/pkg/infra/localfs"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultEndpoint is the Kaggle site hosting the public API
const DefaultEndpoint = "https://www.kaggle.com"

// config holds internal client configuration
type config struct {
	endpoint   string
	username   string
	key        string
	cacheDir   string
	httpClient *http.Client
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithEndpoint sets the Kaggle endpoint, e.g. https://www.kaggle.com
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithCredentials sets the API username and key used for basic auth
func WithCredentials(username, key string) Option {
	return func(c *config) {
		c.username = username
		c.key = key
	}
}

// WithCacheDir sets the root of the download cache
func WithCacheDir(dir string) Option {
	return func(c *config) {
		c.cacheDir = dir
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// Client downloads datasets from Kaggle and keeps them in a local cache
type Client struct {
	cfg *config
}

// NewClient creates a new Kaggle dataset client
func NewClient(cacheDir string, opts ...Option) *Client {
	cfg := &config{
		endpoint:   DefaultEndpoint,
		cacheDir:   cacheDir,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{cfg: cfg}
}

// Download returns the local directory of a dataset, downloading it when the
// cache has no complete copy of the requested version
func (c *Client) Download(ctx context.Context, ref string) (*model.DownloadResult, error) {
	logger := ctxlog.From(ctx)

	handle, err := model.ParseDatasetHandle(ref)
	if err != nil {
		return nil, err
	}

	if handle.Version == 0 {
		version, err := c.resolveVersion(ctx, handle)
		if err != nil {
			return nil, err
		}
		handle.Version = version
		logger.Debug("Resolved latest dataset version", "dataset", handle.String())
	}

	dir := c.versionDir(handle)
	marker := dir + ".complete"

	if _, err := os.Stat(marker); err == nil {
		result, err := localfs.Scan(dir)
		if err != nil {
			return nil, err
		}
		result.Cached = true

		logger.Info("Using cached dataset", "dataset", handle.String(), "dir", dir)
		return result, nil
	}

	logger.Info("Downloading dataset", "dataset", handle.String(), "dir", dir)

	// Leftovers from an interrupted download are not trusted
	if err := os.RemoveAll(dir); err != nil {
		return nil, goerr.Wrap(err, "failed to clear incomplete cache entry", goerr.V("dir", dir))
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create cache directory", goerr.V("dir", filepath.Dir(dir)))
	}

	archivePath, err := c.downloadArchive(ctx, handle, filepath.Dir(dir))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove downloaded archive", "path", archivePath, "error", err)
		}
	}()

	result, err := archive.ExtractZip(archivePath, dir)
	if err != nil {
		_ = os.RemoveAll(dir) // partial extraction is useless
		return nil, goerr.Wrap(err, "failed to extract dataset archive", goerr.V("dataset", handle.String()))
	}

	if err := os.WriteFile(marker, nil, 0644); err != nil {
		return nil, goerr.Wrap(err, "failed to write cache marker", goerr.V("path", marker))
	}

	logger.Info("Downloaded dataset",
		"dataset", handle.String(),
		"file_count", len(result.Files),
		"total_size_bytes", result.Size,
	)

	return result, nil
}

// versionDir returns <cache>/datasets/<owner>/<slug>/versions/<N>
func (c *Client) versionDir(h *model.DatasetHandle) string {
	return filepath.Join(c.cfg.cacheDir, "datasets", h.Owner, h.Slug, "versions", strconv.Itoa(h.Version))
}

type datasetView struct {
	CurrentVersionNumber int `json:"currentVersionNumber"`
}

// resolveVersion asks the API for the dataset's current version number
func (c *Client) resolveVersion(ctx context.Context, h *model.DatasetHandle) (int, error) {
	apiURL := fmt.Sprintf("%s/api/v1/datasets/view/%s/%s", c.cfg.endpoint, url.PathEscape(h.Owner), url.PathEscape(h.Slug))

	resp, err := c.get(ctx, apiURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var view datasetView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return 0, goerr.Wrap(err, "failed to decode dataset metadata", goerr.V("url", apiURL))
	}
	if view.CurrentVersionNumber <= 0 {
		return 0, goerr.New("dataset metadata has no current version", goerr.V("dataset", h.String()))
	}

	return view.CurrentVersionNumber, nil
}

// downloadArchive streams the dataset archive into a temporary file under dir
func (c *Client) downloadArchive(ctx context.Context, h *model.DatasetHandle, dir string) (string, error) {
	apiURL := fmt.Sprintf("%s/api/v1/datasets/download/%s/%s?datasetVersionNumber=%d",
		c.cfg.endpoint, url.PathEscape(h.Owner), url.PathEscape(h.Slug), h.Version)

	resp, err := c.get(ctx, apiURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(dir, "download-*.zip")
	if err != nil {
		return "", goerr.Wrap(err, "failed to create temporary archive", goerr.V("dir", dir))
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", goerr.Wrap(err, "failed to read dataset archive", goerr.V("url", apiURL))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", goerr.Wrap(err, "failed to write dataset archive", goerr.V("path", tmp.Name()))
	}

	return tmp.Name(), nil
}

// get performs an authenticated GET and fails on any non-200 response
func (c *Client) get(ctx context.Context, apiURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", apiURL))
	}
	if c.cfg.username != "" && c.cfg.key != "" {
		req.SetBasicAuth(c.cfg.username, c.cfg.key)
	}

	resp, err := c.cfg.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call Kaggle API", goerr.V("url", apiURL))
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()

		opts := []goerr.Option{
			goerr.V("url", apiURL),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		}
		if resp.StatusCode == http.StatusNotFound {
			opts = append(opts, goerr.T(types.ErrTagNotFound))
		}
		return nil, goerr.New("unexpected status code from Kaggle API", opts...)
	}

	return resp, nil
}
