package mirror

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Object is one remote file under the mirrored prefix
type Object struct {
	Name     string // Full remote name, passed back to Remote.Open
	Key      string // Slash separated path relative to the prefix
	Size     int64
	Modified time.Time
}

// Remote is an object store listing seen through a prefix
type Remote interface {
	// Walk calls fn for every object under the prefix
	Walk(ctx context.Context, fn func(obj Object) error) error
	// Open returns the content of obj
	Open(ctx context.Context, obj Object) (io.ReadCloser, error)
}

// Sync makes dir hold exactly the objects the remote lists. Objects are
// fetched into a sibling directory which replaces dir only when every object
// arrived, so a failed sync leaves the previous mirror untouched.
func Sync(ctx context.Context, remote Remote, dir string) (*model.DownloadResult, error) {
	logger := ctxlog.From(ctx)

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create cache directory", goerr.V("dir", filepath.Dir(dir)))
	}

	staging, err := os.MkdirTemp(filepath.Dir(dir), filepath.Base(dir)+".partial-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create staging directory", goerr.V("dir", dir))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := os.RemoveAll(staging); err != nil {
			logger.Warn("Failed to remove staging directory", "path", staging, "error", err)
		}
	}()

	result := &model.DownloadResult{Dir: dir}

	err = remote.Walk(ctx, func(obj Object) error {
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			return nil // directory placeholder
		}

		if err := fetch(ctx, remote, obj, staging); err != nil {
			return err
		}

		result.Files = append(result.Files, filepath.FromSlash(obj.Key))
		result.Size += obj.Size
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, goerr.Wrap(err, "failed to remove previous mirror", goerr.V("dir", dir))
	}
	if err := os.Rename(staging, dir); err != nil {
		return nil, goerr.Wrap(err, "failed to move mirror into place", goerr.V("dir", dir))
	}
	committed = true

	return result, nil
}

func fetch(ctx context.Context, remote Remote, obj Object, dir string) error {
	destPath := filepath.Join(dir, filepath.FromSlash(obj.Key))
	if !strings.HasPrefix(destPath, filepath.Clean(dir)+string(os.PathSeparator)) {
		return goerr.New("invalid object name detected", goerr.V("object", obj.Name))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return goerr.Wrap(err, "failed to create parent directories", goerr.V("dir", filepath.Dir(destPath)))
	}

	r, err := remote.Open(ctx, obj)
	if err != nil {
		return goerr.Wrap(err, "failed to open object", goerr.V("object", obj.Name))
	}
	defer r.Close()

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("path", destPath))
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return goerr.Wrap(err, "failed to read object", goerr.V("object", obj.Name))
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close destination file", goerr.V("path", destPath))
	}

	if !obj.Modified.IsZero() {
		if err := os.Chtimes(destPath, time.Time{}, obj.Modified); err != nil {
			return goerr.Wrap(err, "failed to set modification time", goerr.V("path", destPath))
		}
	}

	return nil
}
