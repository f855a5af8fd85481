package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"docwallet/internal/wallet"
)

// OSFileStore is the real filesystem implementation of wallet.FileStore.
// Every error it returns is wrapped with wallet.ErrStorage.
type OSFileStore struct {
	ignore *IgnoreMatcher
}

// NewOSFileStore creates a file store that hides files matching the default
// ignore patterns plus the given ones from ListFiles.
func NewOSFileStore(ignorePatterns []string) *OSFileStore {
	return &OSFileStore{ignore: NewDefaultIgnoreMatcher(ignorePatterns)}
}

// EnsureFolder creates path and any missing parents.
func (s *OSFileStore) EnsureFolder(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("%w: creating folder %s: %w", wallet.ErrStorage, path, err)
	}
	return nil
}

// ImportFile places source at destFolder/desiredName.
// Copies are written to a temp file and renamed into place. Moves try a
// rename first and fall back to copy+remove when crossing devices.
func (s *OSFileStore) ImportFile(source, destFolder, desiredName string, mode wallet.ImportMode) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", fmt.Errorf("%w: source %s: %w", wallet.ErrStorage, source, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: source is not a regular file: %s", wallet.ErrStorage, source)
	}
	if desiredName == "" || filepath.Base(desiredName) != desiredName {
		return "", fmt.Errorf("%w: invalid file name %q", wallet.ErrStorage, desiredName)
	}

	dest := filepath.Join(destFolder, desiredName)

	if mode == wallet.ImportMove {
		if err := os.Rename(source, dest); err == nil {
			return dest, nil
		}
	}

	if err := copyFile(source, dest); err != nil {
		return "", fmt.Errorf("%w: %w", wallet.ErrStorage, err)
	}

	if mode == wallet.ImportMove {
		if err := os.Remove(source); err != nil && !errors.Is(err, os.ErrNotExist) {
			return dest, fmt.Errorf("%w: removing moved source %s: %w", wallet.ErrStorage, source, err)
		}
	}
	return dest, nil
}

// DeleteFile removes path. A missing file is not an error.
func (s *OSFileStore) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: deleting %s: %w", wallet.ErrStorage, path, err)
	}
	return nil
}

// Exists reports whether a regular file exists at path.
func (s *OSFileStore) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %w", wallet.ErrStorage, path, err)
	}
	return info.Mode().IsRegular(), nil
}

// ListFiles returns the sorted names of regular files directly inside folder,
// skipping ignored ones.
func (s *OSFileStore) ListFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: reading folder %s: %w", wallet.ErrStorage, folder, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if s.ignore.Match(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Inspect returns the size and kind of path, and the page count for PDFs.
// An unreadable PDF is still reported, with zero pages.
func (s *OSFileStore) Inspect(path string) (*wallet.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", wallet.ErrStorage, path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", wallet.ErrStorage, path)
	}

	fi := &wallet.FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		Kind:    KindOf(path),
		ModTime: info.ModTime(),
	}
	if fi.Kind == wallet.KindPDF {
		if pages, err := CountPDFPages(path); err == nil {
			fi.Pages = pages
		}
	}
	return fi, nil
}

// WriteAtomic writes r to destPath through a temp file in the same
// directory and an atomic rename. Readers never see a partial file.
func WriteAtomic(destPath string, r io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("writing %s: %w", destPath, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("syncing %s: %w", destPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return written, nil
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	if _, err := WriteAtomic(dest, in); err != nil {
		return fmt.Errorf("copying %s: %w", source, err)
	}
	return nil
}

// Compile-time check that OSFileStore implements wallet.FileStore
var _ wallet.FileStore = (*OSFileStore)(nil)
