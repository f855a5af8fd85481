package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"docwallet/internal/filestore"
	"docwallet/internal/wallet"
)

// ZipPackager is a wallet.Packager producing flat zip archives: the files of
// the document folder and the JSON files all sit at the archive root.
type ZipPackager struct {
	ignore *filestore.IgnoreMatcher
}

// NewZipPackager returns a packager that leaves out folder files matching
// the default ignore patterns plus the given ones.
func NewZipPackager(ignorePatterns []string) *ZipPackager {
	return &ZipPackager{ignore: filestore.NewDefaultIgnoreMatcher(ignorePatterns)}
}

// Create writes the archive to dest and returns the number of entries.
// Index and profile files that do not exist yet are skipped. On failure the
// partial archive is removed.
func (p *ZipPackager) Create(targets wallet.BackupTargets, dest string) (n int, err error) {
	entries, err := p.collect(targets)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(dest)
		}
	}()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := addFile(zw, e.name, e.path); err != nil {
			zw.Close()
			f.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("finishing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing archive: %w", err)
	}
	return len(entries), nil
}

type entry struct {
	name string // name inside the archive
	path string // source on disk
}

// collect lists what goes into the archive. Names must be unique at the
// root, so a folder file shadowing a JSON target is an error.
func (p *ZipPackager) collect(targets wallet.BackupTargets) ([]entry, error) {
	dirEntries, err := os.ReadDir(targets.Folder)
	if err != nil {
		return nil, fmt.Errorf("reading document folder: %w", err)
	}

	seen := make(map[string]bool)
	var entries []entry
	for _, d := range dirEntries {
		if !d.Type().IsRegular() || p.ignore.Match(d.Name()) {
			continue
		}
		seen[d.Name()] = true
		entries = append(entries, entry{name: d.Name(), path: filepath.Join(targets.Folder, d.Name())})
	}

	for _, jsonPath := range []string{targets.IndexFile, targets.ProfileFile} {
		if jsonPath == "" {
			continue
		}
		info, err := os.Stat(jsonPath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", jsonPath, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("not a regular file: %s", jsonPath)
		}
		name := filepath.Base(jsonPath)
		if seen[name] {
			// Already in the archive when the JSON file lives in the document folder.
			if filepath.Clean(filepath.Dir(jsonPath)) == filepath.Clean(targets.Folder) {
				continue
			}
			return nil, fmt.Errorf("duplicate archive entry: %s", name)
		}
		seen[name] = true
		entries = append(entries, entry{name: name, path: jsonPath})
	}

	return entries, nil
}

func addFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("compressing %s: %w", name, err)
	}
	return nil
}

// Extract unpacks archive into destFolder, replacing files with the same
// name, and returns the extracted names relative to destFolder. Entries
// that would land outside destFolder are rejected before anything is written.
func (p *ZipPackager) Extract(archive, destFolder string) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(destFolder)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}

	for _, zf := range zr.File {
		if _, err := safeJoin(root, zf.Name); err != nil {
			return nil, err
		}
	}

	var names []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		target, _ := safeJoin(root, zf.Name)
		if err := extractFile(zf, target); err != nil {
			return names, err
		}
		rel, _ := filepath.Rel(root, target)
		names = append(names, rel)
	}
	return names, nil
}

// safeJoin resolves name under root, rejecting absolute paths and any entry
// that climbs out of root.
func safeJoin(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("illegal archive entry: %q", name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal archive entry: %q", name)
	}
	return target, nil
}

func extractFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating folder for %s: %w", zf.Name, err)
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	if _, err := filestore.WriteAtomic(target, rc); err != nil {
		return fmt.Errorf("extracting %s: %w", zf.Name, err)
	}
	return nil
}

// Compile-time check that ZipPackager implements wallet.Packager interface
var _ wallet.Packager = (*ZipPackager)(nil)
