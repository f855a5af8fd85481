package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docwallet/internal/model"
)

const (
	backupPrefix    = "backup_"
	archiveSuffix   = ".zip"
	encryptedSuffix = ".age"

	// localVaultName is recorded for backups kept only in the backups folder.
	localVaultName = "local"
)

// BackupOptions controls CreateBackup.
type BackupOptions struct {
	Encrypt bool
}

// CreateBackup bundles the document folder, the index and the profile into
// a zip archive under the backups folder, optionally encrypts it, hands it to
// the vault and records it in the database. The archive is not re-read to
// verify its integrity.
func (s *Service) CreateBackup(opts BackupOptions) (*model.Backup, error) {
	if s.packager == nil {
		return nil, fmt.Errorf("%w: no packager configured", ErrBackup)
	}
	if opts.Encrypt && (s.encryptor == nil || !s.encryptor.IsConfigured()) {
		return nil, fmt.Errorf("%w: encryption keys are not configured", ErrBackup)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: loading index: %w", ErrBackup, err)
	}
	for _, dir := range []string{s.paths.BackupsDir, s.paths.DocumentsDir} {
		if err := s.files.EnsureFolder(dir); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackup, err)
		}
	}

	now := s.clock.Now().UTC()
	id := s.idgen.New()
	name := backupName(now, id)
	if err := s.ensureUnusedName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackup, err)
	}
	archivePath := filepath.Join(s.paths.BackupsDir, name)

	entries, err := s.packager.Create(BackupTargets{
		Folder:      s.paths.DocumentsDir,
		IndexFile:   s.paths.IndexFile,
		ProfileFile: s.paths.ProfileFile,
	}, archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: packaging: %w", ErrBackup, err)
	}

	if opts.Encrypt {
		encPath := archivePath + encryptedSuffix
		err := s.encryptFile(archivePath, encPath)
		os.Remove(archivePath)
		if err != nil {
			return nil, fmt.Errorf("%w: encrypting archive: %w", ErrBackup, err)
		}
		archivePath = encPath
		name += encryptedSuffix
	}

	size, checksum, err := s.storeArchive(name, archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	backup := &model.Backup{
		ID:        id,
		Name:      name,
		Vault:     s.vaultName(),
		Size:      size,
		Checksum:  checksum,
		Encrypted: opts.Encrypt,
		Documents: len(records),
		CreatedAt: now,
	}
	if s.database != nil {
		if err := s.database.CreateBackup(backup); err != nil {
			return nil, fmt.Errorf("%w: recording backup: %w", ErrBackup, err)
		}
	}

	s.logger.Info("backup created", "name", name, "entries", entries, "size", size, "vault", backup.Vault)
	return backup, nil
}

// RestoreResult reports what RestoreBackup put back in place.
type RestoreResult struct {
	Archive         string
	Extracted       []string // media files now in the document folder
	IndexRestored   bool
	ProfileRestored bool
	// Dangling lists references of the restored index whose files were not
	// in the archive. They are tolerated and only reported.
	Dangling []DanglingReference
}

// RestoreBackup unpacks the archive identified by source into the document
// folder. source may be a path, a name in the backups folder, or a name held
// by the vault. Top-level JSON files are moved to the profile location when
// named like the profile file and to the index location otherwise. The
// archived index is decoded before it replaces the live one, and archives
// recorded by CreateBackup must still match their checksum.
// decryptCtx is required for encrypted archives and may be nil otherwise.
func (s *Service) RestoreBackup(source string, decryptCtx DecryptionContext) (*RestoreResult, error) {
	if s.packager == nil {
		return nil, fmt.Errorf("%w: no packager configured", ErrRestore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("restore started", "source", source)

	archivePath, cleanup, err := s.locateArchive(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRestore, err)
	}
	defer cleanup()

	if err := s.verifyRecordedChecksum(filepath.Base(source), archivePath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRestore, err)
	}

	if strings.HasSuffix(archivePath, encryptedSuffix) {
		if decryptCtx == nil {
			return nil, fmt.Errorf("%w: archive is encrypted but no passphrase was provided", ErrRestore)
		}
		plain, err := s.decryptToTemp(archivePath, decryptCtx)
		if err != nil {
			return nil, fmt.Errorf("%w: decrypting archive: %w", ErrRestore, err)
		}
		defer os.Remove(plain)
		archivePath = plain
	}

	if err := s.files.EnsureFolder(s.paths.DocumentsDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRestore, err)
	}
	extracted, err := s.packager.Extract(archivePath, s.paths.DocumentsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRestore, err)
	}

	result := &RestoreResult{Archive: filepath.Base(source)}
	indexName := filepath.Base(s.paths.IndexFile)
	profileName := filepath.Base(s.paths.ProfileFile)

	var indexSource, profileSource string
	var strays []string
	for _, name := range extracted {
		switch {
		case filepath.Dir(name) != "." || !strings.EqualFold(filepath.Ext(name), ".json"):
			result.Extracted = append(result.Extracted, name)
		case name == indexName:
			indexSource = name
		case name == profileName:
			profileSource = name
		default:
			strays = append(strays, name)
		}
	}
	// Without a file named like the index, the last stray JSON file stands in for it.
	if indexSource == "" && len(strays) > 0 {
		indexSource, strays = strays[len(strays)-1], strays[:len(strays)-1]
	}
	defer s.discard(s.documentPaths(strays))

	if indexSource != "" {
		if err := s.validateArchivedIndex(indexSource); err != nil {
			s.discard(s.documentPaths([]string{indexSource, profileSource}))
			return nil, fmt.Errorf("%w: %w", ErrRestore, err)
		}
	}

	for _, p := range []struct {
		name     string
		dest     string
		restored *bool
	}{
		{profileSource, s.paths.ProfileFile, &result.ProfileRestored},
		{indexSource, s.paths.IndexFile, &result.IndexRestored},
	} {
		if p.name == "" {
			continue
		}
		if err := s.files.EnsureFolder(filepath.Dir(p.dest)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRestore, err)
		}
		if _, err := s.files.ImportFile(s.DocumentPath(p.name), filepath.Dir(p.dest), filepath.Base(p.dest), ImportMove); err != nil {
			return nil, fmt.Errorf("%w: placing %s: %w", ErrRestore, p.name, err)
		}
		*p.restored = true
	}

	report, err := s.check()
	if err != nil {
		return nil, fmt.Errorf("%w: verifying restored index: %w", ErrRestore, err)
	}
	result.Dangling = report.Dangling
	for _, d := range report.Dangling {
		s.logger.Warn("restored record references a missing file", "id", d.DocumentID, "slot", d.Slot.String(), "file", d.FileName)
	}

	s.logger.Info("restore complete", "files", len(result.Extracted), "index", result.IndexRestored, "profile", result.ProfileRestored)
	return result, nil
}

// backupName returns "backup_<UTC timestamp>_<short id>.zip". The id part keeps
// backups taken within the same second apart.
func backupName(t time.Time, id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return backupPrefix + t.Format("20060102T150405Z") + "_" + short + archiveSuffix
}

// ensureUnusedName fails when an archive called name (or its encrypted form)
// is already recorded or present in the backups folder.
func (s *Service) ensureUnusedName(name string) error {
	for _, n := range []string{name, name + encryptedSuffix} {
		if s.database != nil {
			existing, err := s.database.FindBackupByName(n)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("backup %s already recorded on %s", n, existing.CreatedAt.Format(time.RFC3339))
			}
		}
		ok, err := s.files.Exists(filepath.Join(s.paths.BackupsDir, n))
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("archive %s already exists", n)
		}
	}
	return nil
}

// verifyRecordedChecksum compares the archive at path with the checksum
// recorded when it was created. Archives without a record are not checked.
func (s *Service) verifyRecordedChecksum(name, path string) error {
	if s.database == nil {
		return nil
	}
	recorded, err := s.database.FindBackupByName(name)
	if err != nil {
		return fmt.Errorf("looking up backup %s: %w", name, err)
	}
	if recorded == nil {
		return nil
	}

	got, err := fileChecksum(path)
	if err != nil {
		return err
	}
	if got != recorded.Checksum {
		return fmt.Errorf("archive %s does not match its recorded checksum", name)
	}
	return nil
}

// validateArchivedIndex decodes the extracted index before it replaces the live one.
func (s *Service) validateArchivedIndex(name string) error {
	data, err := os.ReadFile(s.DocumentPath(name))
	if err != nil {
		return fmt.Errorf("reading archived index: %w", err)
	}
	if _, err := DecodeIndex(data); err != nil {
		return fmt.Errorf("archived index %s: %w", name, err)
	}
	return nil
}

func (s *Service) documentPaths(names []string) []string {
	var paths []string
	for _, n := range names {
		if n != "" {
			paths = append(paths, s.DocumentPath(n))
		}
	}
	return paths
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// vaultName returns the name recorded for stored backups.
func (s *Service) vaultName() string {
	if s.vault == nil {
		return localVaultName
	}
	return s.vault.Name()
}

// storeArchive streams the archive at path to the vault while hashing it.
// Without a vault the archive only stays in the backups folder.
func (s *Service) storeArchive(name, path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("stat archive: %w", err)
	}

	h := sha256.New()
	r := io.TeeReader(f, h)
	if s.vault != nil {
		if err := s.vault.PutArchive(name, r, info.Size()); err != nil {
			return 0, "", fmt.Errorf("uploading archive to vault %s: %w", s.vault.Name(), err)
		}
	} else if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, "", fmt.Errorf("hashing archive: %w", err)
	}

	return info.Size(), hex.EncodeToString(h.Sum(nil)), nil
}

// encryptFile writes the encrypted form of src to dst.
func (s *Service) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted archive: %w", err)
	}
	if err := s.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing encrypted archive: %w", err)
	}
	return nil
}

// locateArchive resolves source to a local archive path. Archives fetched
// from the vault land in a temp file that cleanup removes.
func (s *Service) locateArchive(source string) (string, func(), error) {
	noop := func() {}

	for _, candidate := range []string{source, filepath.Join(s.paths.BackupsDir, filepath.Base(source))} {
		ok, err := s.files.Exists(candidate)
		if err != nil {
			return "", noop, err
		}
		if ok {
			return candidate, noop, nil
		}
	}

	if s.vault == nil {
		return "", noop, fmt.Errorf("archive not found: %s", source)
	}

	if err := s.files.EnsureFolder(s.paths.BackupsDir); err != nil {
		return "", noop, err
	}
	tmp, err := os.CreateTemp(s.paths.BackupsDir, ".restore-*-"+filepath.Base(source))
	if err != nil {
		return "", noop, fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	err = s.vault.GetArchive(filepath.Base(source), tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("fetching archive from vault %s: %w", s.vault.Name(), err)
	}

	return tmpPath, cleanup, nil
}

// decryptToTemp decrypts path into a temp zip file in the backups folder.
func (s *Service) decryptToTemp(path string, decryptCtx DecryptionContext) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening encrypted archive: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(s.paths.BackupsDir, ".restore-*"+archiveSuffix)
	if err != nil {
		return "", fmt.Errorf("creating temp archive: %w", err)
	}
	outPath := out.Name()

	if err := decryptCtx.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("closing decrypted archive: %w", err)
	}
	return outPath, nil
}
