package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/dadosbr/stager/pkg/domain/types"
	"github.com/dadosbr/stager/pkg/usecase"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// MockDatasetSource is a mock implementation of DatasetSource
type MockDatasetSource struct {
	downloadFunc func(ctx context.Context, ref string) (*model.DownloadResult, error)
	calls        []string
}

func (m *MockDatasetSource) Download(ctx context.Context, ref string) (*model.DownloadResult, error) {
	m.calls = append(m.calls, ref)
	if m.downloadFunc != nil {
		return m.downloadFunc(ctx, ref)
	}
	return nil, errors.New("mock not configured")
}

// dirSource returns a mock that serves dir for every ref
func dirSource(dir string) *MockDatasetSource {
	return &MockDatasetSource{
		downloadFunc: func(ctx context.Context, ref string) (*model.DownloadResult, error) {
			return &model.DownloadResult{Dir: dir}, nil
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	gt.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		gt.NoError(t, err)
		files[entry.Name()] = string(content)
	}
	return files
}

func newConfig(dest string) *model.StageConfig {
	return &model.StageConfig{
		Destination: dest,
		Dataset:     types.DefaultDataset,
		Layout:      model.LayoutFlat,
	}
}

func TestStager_Stage_Success(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "campeonato-brasileiro-full.csv"), "ID,rodata\n1,1\n")
	writeFile(t, filepath.Join(srcDir, "gols", "campeonato-brasileiro-gols.csv"), "partida_id\n")
	writeFile(t, filepath.Join(srcDir, "a", "b", "c", "cartoes.csv"), "cartao\n")

	mtime := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	gt.NoError(t, os.Chmod(filepath.Join(srcDir, "campeonato-brasileiro-full.csv"), 0600))
	gt.NoError(t, os.Chtimes(filepath.Join(srcDir, "campeonato-brasileiro-full.csv"), mtime, mtime))

	dest := filepath.Join(t.TempDir(), "dados")
	mockSource := dirSource(srcDir)
	uc := usecase.NewStager(mockSource)

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.NoError(t, result.Err())
	gt.Value(t, result.SourceDir).Equal(srcDir)
	gt.Value(t, result.Destination).Equal(dest)
	gt.Number(t, len(result.Files)).Equal(3)
	gt.Number(t, len(result.Collisions)).Equal(0)
	gt.Value(t, mockSource.calls).Equal([]string{types.DefaultDataset})

	gt.Value(t, readDir(t, dest)).Equal(map[string]string{
		"campeonato-brasileiro-full.csv": "ID,rodata\n1,1\n",
		"campeonato-brasileiro-gols.csv": "partida_id\n",
		"cartoes.csv":                    "cartao\n",
	})

	// Subdirectories are not recreated in the flat layout
	entries, err := os.ReadDir(dest)
	gt.NoError(t, err)
	gt.Number(t, len(entries)).Equal(3)

	info, err := os.Stat(filepath.Join(dest, "campeonato-brasileiro-full.csv"))
	gt.NoError(t, err)
	gt.Value(t, info.Mode().Perm()).Equal(os.FileMode(0600))
	gt.True(t, info.ModTime().Equal(mtime))

	gt.Number(t, result.Bytes).Equal(int64(len("ID,rodata\n1,1\n") + len("partida_id\n") + len("cartao\n")))
}

func TestStager_Stage_Idempotent(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "x.csv"), "x")
	writeFile(t, filepath.Join(srcDir, "sub", "y.csv"), "yy")

	dest := filepath.Join(t.TempDir(), "dados")
	uc := usecase.NewStager(dirSource(srcDir))

	_, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	first := readDir(t, dest)

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.Value(t, readDir(t, dest)).Equal(first)
}

func TestStager_Stage_CollisionLastWriteWins(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a", "x.csv"), strings.Repeat("a", 10))
	writeFile(t, filepath.Join(srcDir, "b", "x.csv"), strings.Repeat("b", 20))

	dest := filepath.Join(t.TempDir(), "dados")
	uc := usecase.NewStager(dirSource(srcDir))

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())

	files := readDir(t, dest)
	gt.Number(t, len(files)).Equal(1)
	gt.Number(t, len(files["x.csv"])).Equal(20)

	gt.Number(t, len(result.Collisions)).Equal(1)
	gt.Value(t, result.Collisions[0]).Equal(model.Collision{
		Name:        "x.csv",
		Overwritten: filepath.Join(srcDir, "a", "x.csv"),
		By:          filepath.Join(srcDir, "b", "x.csv"),
	})

	// Overwritten copies do not count towards the staged size
	gt.Number(t, len(result.Files)).Equal(2)
	gt.Number(t, result.Staged()).Equal(1)
	gt.Number(t, result.Bytes).Equal(int64(20))
}

func TestStager_Stage_CollisionIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := ctxlog.With(context.Background(), logger)

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a", "x.csv"), "a")
	writeFile(t, filepath.Join(srcDir, "b", "x.csv"), "b")

	uc := usecase.NewStager(dirSource(srcDir))
	_, err := uc.Stage(ctx, newConfig(filepath.Join(t.TempDir(), "dados")))
	gt.NoError(t, err)

	gt.String(t, buf.String()).Contains("File name collision")
	gt.String(t, buf.String()).Contains(`"level":"WARN"`)
}

func TestStager_Stage_SourceReadyBeforeCopy(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "x.csv"), "x")

	dest := filepath.Join(t.TempDir(), "dados")
	var readyDir string
	var entriesAtReady int
	uc := usecase.NewStager(dirSource(srcDir), usecase.WithSourceReady(func(dir string) {
		readyDir = dir
		entries, err := os.ReadDir(dest)
		gt.NoError(t, err)
		entriesAtReady = len(entries)
	}))

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.Value(t, readyDir).Equal(srcDir)
	gt.Number(t, entriesAtReady).Equal(0)
	gt.Value(t, readDir(t, dest)).Equal(map[string]string{"x.csv": "x"})
}

func TestStager_Stage_SourceReadyNotCalledOnDownloadError(t *testing.T) {
	called := false
	mockSource := &MockDatasetSource{
		downloadFunc: func(ctx context.Context, ref string) (*model.DownloadResult, error) {
			return nil, errors.New("network unreachable")
		},
	}
	uc := usecase.NewStager(mockSource, usecase.WithSourceReady(func(string) { called = true }))

	_, err := uc.Stage(context.Background(), newConfig(filepath.Join(t.TempDir(), "dados")))
	gt.Error(t, err)
	gt.False(t, called)
}

func TestStager_Stage_TreeLayout(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a", "x.csv"), strings.Repeat("a", 10))
	writeFile(t, filepath.Join(srcDir, "b", "x.csv"), strings.Repeat("b", 20))

	dest := filepath.Join(t.TempDir(), "dados")
	uc := usecase.NewStager(dirSource(srcDir))

	cfg := newConfig(dest)
	cfg.Layout = model.LayoutTree

	result, err := uc.Stage(ctx, cfg)
	gt.NoError(t, err)
	gt.Number(t, len(result.Collisions)).Equal(0)

	a, err := os.ReadFile(filepath.Join(dest, "a", "x.csv"))
	gt.NoError(t, err)
	gt.Number(t, len(a)).Equal(10)

	b, err := os.ReadFile(filepath.Join(dest, "b", "x.csv"))
	gt.NoError(t, err)
	gt.Number(t, len(b)).Equal(20)
}

func TestStager_Stage_DownloadError(t *testing.T) {
	ctx := context.Background()

	mockSource := &MockDatasetSource{
		downloadFunc: func(ctx context.Context, ref string) (*model.DownloadResult, error) {
			return nil, errors.New("download error")
		},
	}
	dest := filepath.Join(t.TempDir(), "dados")
	uc := usecase.NewStager(mockSource)

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.Error(t, err)
	gt.Value(t, result).Nil()
	gt.String(t, err.Error()).Contains("failed to download dataset")

	entries, err := os.ReadDir(dest)
	gt.NoError(t, err)
	gt.Number(t, len(entries)).Equal(0)
}

func TestStager_Stage_DestinationError(t *testing.T) {
	ctx := context.Background()

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	writeFile(t, blocker, "file")

	mockSource := dirSource(t.TempDir())
	uc := usecase.NewStager(mockSource)

	result, err := uc.Stage(ctx, newConfig(filepath.Join(blocker, "dados")))
	gt.Error(t, err)
	gt.Value(t, result).Nil()
	gt.String(t, err.Error()).Contains("failed to create destination directory")
	gt.Number(t, len(mockSource.calls)).Equal(0)
}

func TestStager_Stage_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	mockSource := dirSource(t.TempDir())
	uc := usecase.NewStager(mockSource)

	tests := []struct {
		name string
		cfg  *model.StageConfig
	}{
		{
			name: "empty destination",
			cfg:  &model.StageConfig{Dataset: types.DefaultDataset},
		},
		{
			name: "empty dataset",
			cfg:  &model.StageConfig{Destination: t.TempDir()},
		},
		{
			name: "unknown layout",
			cfg:  &model.StageConfig{Destination: t.TempDir(), Dataset: types.DefaultDataset, Layout: "nested"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Stage(ctx, tt.cfg)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagInvalidArgument))
		})
	}

	gt.Number(t, len(mockSource.calls)).Equal(0)
}

func TestStager_Stage_CopyFailureKeepsEarlierFiles(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a.csv"), "a")
	writeFile(t, filepath.Join(srcDir, "b.csv"), "b")
	writeFile(t, filepath.Join(srcDir, "c.csv"), "c")

	// A directory squatting on b.csv makes its copy fail
	dest := filepath.Join(t.TempDir(), "dados")
	gt.NoError(t, os.MkdirAll(filepath.Join(dest, "b.csv"), 0755))

	uc := usecase.NewStager(dirSource(srcDir))

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.False(t, result.Succeeded())
	gt.Value(t, result.Failure.Source).Equal(filepath.Join(srcDir, "b.csv"))
	gt.Value(t, result.Failure.Destination).Equal(filepath.Join(dest, "b.csv"))
	gt.Number(t, len(result.Files)).Equal(1)

	err = result.Err()
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("failed to copy files")

	var failure *model.CopyFailure
	gt.True(t, errors.As(err, &failure))

	content, err := os.ReadFile(filepath.Join(dest, "a.csv"))
	gt.NoError(t, err)
	gt.String(t, string(content)).Equal("a")

	_, err = os.Stat(filepath.Join(dest, "c.csv"))
	gt.True(t, os.IsNotExist(err))
}

func TestStager_Stage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a.csv"), "a")

	uc := usecase.NewStager(&MockDatasetSource{
		downloadFunc: func(ctx context.Context, ref string) (*model.DownloadResult, error) {
			cancel()
			return &model.DownloadResult{Dir: srcDir}, nil
		},
	})

	result, err := uc.Stage(ctx, newConfig(filepath.Join(t.TempDir(), "dados")))
	gt.NoError(t, err)
	gt.False(t, result.Succeeded())
	gt.True(t, errors.Is(result.Failure, context.Canceled))
	gt.Number(t, len(result.Files)).Equal(0)
}

func TestStager_Stage_DestinationInsideSource(t *testing.T) {
	ctx := context.Background()

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "x.csv"), "x")
	dest := filepath.Join(srcDir, "dados")
	writeFile(t, filepath.Join(dest, "old.csv"), "old")

	uc := usecase.NewStager(dirSource(srcDir))

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.Number(t, len(result.Files)).Equal(1)
	gt.Value(t, readDir(t, dest)).Equal(map[string]string{
		"old.csv": "old",
		"x.csv":   "x",
	})
}

func TestStager_Stage_FollowsFileSymlinks(t *testing.T) {
	ctx := context.Background()

	target := filepath.Join(t.TempDir(), "real.csv")
	writeFile(t, target, "linked")

	srcDir := t.TempDir()
	if err := os.Symlink(target, filepath.Join(srcDir, "link.csv")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	gt.NoError(t, os.Symlink(t.TempDir(), filepath.Join(srcDir, "dirlink")))

	dest := filepath.Join(t.TempDir(), "dados")
	uc := usecase.NewStager(dirSource(srcDir))

	result, err := uc.Stage(ctx, newConfig(dest))
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.Value(t, readDir(t, dest)).Equal(map[string]string{"link.csv": "linked"})

	info, err := os.Lstat(filepath.Join(dest, "link.csv"))
	gt.NoError(t, err)
	gt.True(t, info.Mode().IsRegular())
}
