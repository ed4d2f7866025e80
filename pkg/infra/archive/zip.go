package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dadosbr/stager/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// ExtractZip extracts the ZIP file at zipPath into destDir
func ExtractZip(zipPath, destDir string) (*model.DownloadResult, error) {
	zipReader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open zip", goerr.V("path", zipPath))
	}
	defer zipReader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create extraction directory", goerr.V("dir", destDir))
	}

	result := &model.DownloadResult{Dir: destDir}

	for _, file := range zipReader.File {
		if err := extractFile(file, destDir); err != nil {
			return nil, goerr.Wrap(err, "failed to extract file", goerr.V("name", file.Name))
		}

		if file.FileInfo().IsDir() {
			continue
		}
		result.Files = append(result.Files, filepath.FromSlash(file.Name))
		result.Size += int64(file.UncompressedSize64)
	}

	return result, nil
}

// extractFile extracts a single ZIP entry below destDir
func extractFile(file *zip.File, destDir string) error {
	// Security check: prevent path traversal attacks
	destPath := filepath.Join(destDir, file.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return goerr.New("invalid file path detected", goerr.V("file", file.Name), goerr.V("dest", destPath))
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return goerr.Wrap(err, "failed to create parent directories", goerr.V("dir", filepath.Dir(destPath)))
	}

	rc, err := file.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open file in zip")
	}
	defer rc.Close()

	mode := file.FileInfo().Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("path", destPath))
	}

	if _, err := io.Copy(destFile, rc); err != nil {
		_ = destFile.Close()
		return goerr.Wrap(err, "failed to copy file content", goerr.V("path", destPath))
	}
	if err := destFile.Close(); err != nil {
		return goerr.Wrap(err, "failed to close destination file", goerr.V("path", destPath))
	}

	if modified := file.Modified; !modified.IsZero() {
		if err := os.Chtimes(destPath, modified, modified); err != nil {
			return goerr.Wrap(err, "failed to set modification time", goerr.V("path", destPath))
		}
	}

	return nil
}
