package usecase

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dadosbr/stager/pkg/domain/interfaces"
	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type stager struct {
	source      interfaces.DatasetSource
	sourceReady func(dir string)
}

// StagerOption configures a stager
type StagerOption func(*stager)

// WithSourceReady sets a function called with the local dataset directory once
// the download finished and before any file is copied
func WithSourceReady(fn func(dir string)) StagerOption {
	return func(s *stager) {
		s.sourceReady = fn
	}
}

// NewStager creates a new instance of StagerUseCase
func NewStager(source interfaces.DatasetSource, opts ...StagerOption) interfaces.StagerUseCase {
	s := &stager{
		source: source,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage creates the destination directory, fetches the dataset through the
// source and copies every file of it into the destination.
//
// Files are visited in lexical order (filepath.WalkDir). With the flat layout
// a file whose base name was already staged in this run replaces it, so the
// lexically last path wins.
//
// The first walk or copy error stops the copy phase. It is returned in
// StageResult.Failure, not as an error; files copied before it stay on disk.
func (uc *stager) Stage(ctx context.Context, cfg *model.StageConfig) (*model.StageResult, error) {
	logger := ctxlog.From(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := model.ParseLayout(string(cfg.Layout))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Destination, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create destination directory", goerr.V("destination", cfg.Destination))
	}

	dl, err := uc.source.Download(ctx, cfg.Dataset)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download dataset", goerr.V("dataset", cfg.Dataset))
	}

	logger.Info("Dataset available locally",
		"dataset", cfg.Dataset,
		"source_dir", dl.Dir,
		"cached", dl.Cached,
		"file_count", len(dl.Files),
	)
	if uc.sourceReady != nil {
		uc.sourceReady(dl.Dir)
	}

	result := &model.StageResult{
		Destination: cfg.Destination,
		SourceDir:   dl.Dir,
	}

	if err := uc.copyTree(ctx, dl.Dir, cfg.Destination, layout, result); err != nil {
		var failure *model.CopyFailure
		if !errors.As(err, &failure) {
			failure = &model.CopyFailure{Source: dl.Dir, Err: err}
		}
		result.Failure = failure

		logger.Error("Copy stopped by failure",
			"source", failure.Source,
			"destination", failure.Destination,
			"error", failure.Err,
			"copied", len(result.Files),
		)
		return result, nil
	}

	logger.Info("Staged dataset",
		"destination", cfg.Destination,
		"file_count", len(result.Files),
		"collisions", len(result.Collisions),
		"total_size_bytes", result.Bytes,
	)

	return result, nil
}

// copyTree walks srcDir and copies its regular files into destDir
func (uc *stager) copyTree(ctx context.Context, srcDir, destDir string, layout model.Layout, result *model.StageResult) error {
	logger := ctxlog.From(ctx)

	// The destination may live inside the source tree; never copy it into itself
	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return &model.CopyFailure{Source: srcDir, Destination: destDir, Err: err}
	}

	// Last copy staged under each destination name
	staged := make(map[string]model.StagedFile)

	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return &model.CopyFailure{Source: path, Err: walkErr}
		}

		if d.IsDir() {
			if abs, err := filepath.Abs(path); err == nil && abs == absDest && path != srcDir {
				return filepath.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return &model.CopyFailure{Source: path, Err: err}
		}

		ok, err := isRegularFile(path, d)
		if err != nil {
			return &model.CopyFailure{Source: path, Err: err}
		}
		if !ok {
			logger.Debug("Skipping non-regular file", "path", path, "type", d.Type().String())
			return nil
		}

		name := filepath.Base(path)
		if layout == model.LayoutTree {
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return &model.CopyFailure{Source: path, Err: err}
			}
			name = rel
		}
		dst := filepath.Join(destDir, name)

		if prev, exists := staged[name]; exists {
			logger.Warn("File name collision, later file overwrites earlier one",
				"name", name,
				"overwritten", prev.Source,
				"by", path,
			)
			result.Collisions = append(result.Collisions, model.Collision{
				Name:        name,
				Overwritten: prev.Source,
				By:          path,
			})
			// Bytes counts what ends up on disk, not what was written
			result.Bytes -= prev.Size
		}

		if layout == model.LayoutTree {
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return &model.CopyFailure{Source: path, Destination: dst, Err: err}
			}
		}

		size, err := copyFile(path, dst)
		if err != nil {
			return &model.CopyFailure{Source: path, Destination: dst, Err: err}
		}

		logger.Debug("Copied file", "source", path, "destination", dst, "size", size)

		file := model.StagedFile{
			Source:      path,
			Destination: dst,
			Size:        size,
		}
		staged[name] = file
		result.Files = append(result.Files, file)
		result.Bytes += size
		return nil
	})
}

// isRegularFile reports whether path is a regular file, following symlinks.
// Symlinks to directories are not descended into.
func isRegularFile(path string, d fs.DirEntry) (bool, error) {
	if d.Type().IsRegular() {
		return true, nil
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, goerr.Wrap(err, "failed to resolve symlink", goerr.V("path", path))
	}
	return info.Mode().IsRegular(), nil
}

// copyFile copies the content, permission bits and modification time of src to dst
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open source file")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to stat source file")
	}

	// Copying a file onto itself would truncate it
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return info.Size(), nil
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create destination file")
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, goerr.Wrap(err, "failed to copy file content")
	}
	if err := out.Close(); err != nil {
		return n, goerr.Wrap(err, "failed to close destination file")
	}

	// OpenFile only applies the mode when it creates the file
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return n, goerr.Wrap(err, "failed to set file mode")
	}
	// Zero atime leaves the access time untouched
	if err := os.Chtimes(dst, time.Time{}, info.ModTime()); err != nil {
		return n, goerr.Wrap(err, "failed to set modification time")
	}

	return n, nil
}
