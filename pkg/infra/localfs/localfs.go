package localfs

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Source serves datasets that already exist on the local filesystem (file:// refs)
type Source struct{}

// New creates a local filesystem source
func New() *Source {
	return &Source{}
}

// Download returns the directory named by a file:// ref without copying it
func (s *Source) Download(ctx context.Context, ref string) (*model.DownloadResult, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse file ref", goerr.V("ref", ref), goerr.T(types.ErrTagInvalidArgument))
	}
	if u.Scheme != "file" {
		return nil, goerr.New("not a file ref", goerr.V("ref", ref), goerr.T(types.ErrTagInvalidArgument))
	}

	dir := filepath.FromSlash(u.Path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat dataset directory", goerr.V("dir", dir), goerr.T(types.ErrTagNotFound))
	}
	if !info.IsDir() {
		return nil, goerr.New("dataset path is not a directory", goerr.V("dir", dir), goerr.T(types.ErrTagInvalidArgument))
	}

	result, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	result.Cached = true

	ctxlog.From(ctx).Debug("Using local dataset directory", "dir", dir, "file_count", len(result.Files))
	return result, nil
}

// Scan lists the regular files under dir
func Scan(dir string) (*model.DownloadResult, error) {
	result := &model.DownloadResult{Dir: dir}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		result.Files = append(result.Files, rel)
		result.Size += info.Size()
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan directory", goerr.V("dir", dir))
	}

	return result, nil
}
