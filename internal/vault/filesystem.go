package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docwallet/internal/filestore"
	"docwallet/internal/wallet"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface,
// typically pointed at removable media or a synced folder:
//
//	<root>/
//	  archives/
//	    backup_<timestamp>.zip[.age]
type FileSystemVault struct {
	name        string
	root        string
	archivesDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	archivesDir := filepath.Join(root, "archives")
	if err := os.MkdirAll(archivesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archives directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		archivesDir: archivesDir,
	}, nil
}

// Name returns the configured vault name.
func (v *FileSystemVault) Name() string {
	return v.name
}

// PutArchive stores an archive under name, replacing any archive with the same name.
func (v *FileSystemVault) PutArchive(name string, r io.Reader, size int64) error {
	if err := validArchiveName(name); err != nil {
		return err
	}
	destPath := filepath.Join(v.archivesDir, name)

	// Size is checked before the rename so a short read never replaces a good archive.
	counted := &sizeCheckReader{r: r, want: size}
	if _, err := filestore.WriteAtomic(destPath, counted); err != nil {
		return fmt.Errorf("storing archive %s: %w", name, err)
	}
	return nil
}

// GetArchive writes the archive stored under name to w.
func (v *FileSystemVault) GetArchive(name string, w io.Writer) error {
	if err := validArchiveName(name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(v.archivesDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("archive not found: %s", name)
		}
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return nil
}

// ListArchives returns the archives in the vault ordered by name.
func (v *FileSystemVault) ListArchives() ([]wallet.ArchiveInfo, error) {
	entries, err := os.ReadDir(v.archivesDir)
	if err != nil {
		return nil, fmt.Errorf("reading archives directory: %w", err)
	}

	var out []wallet.ArchiveInfo
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, wallet.ArchiveInfo{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.archivesDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// validArchiveName rejects names that would leave the archives directory.
func validArchiveName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid archive name: %q", name)
	}
	return nil
}

// sizeCheckReader fails at EOF when the number of bytes read differs from want.
type sizeCheckReader struct {
	r    io.Reader
	want int64
	read int64
}

func (s *sizeCheckReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.read += int64(n)
	if err == io.EOF && s.read != s.want {
		return n, fmt.Errorf("size mismatch: expected %d bytes, got %d", s.want, s.read)
	}
	return n, err
}

// Compile-time check that FileSystemVault implements wallet.Vault interface
var _ wallet.Vault = (*FileSystemVault)(nil)
