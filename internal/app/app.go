package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docwallet/internal/archive"
	"docwallet/internal/config"
	"docwallet/internal/database"
	"docwallet/internal/encryption"
	"docwallet/internal/filestore"
	"docwallet/internal/index"
	"docwallet/internal/model"
	"docwallet/internal/profile"
	"docwallet/internal/vault"
	"docwallet/internal/wallet"
)

// WalletApp is the application layer between the CLI and wallet.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and records mutating commands in the
// history database until Close.
type WalletApp struct {
	cfg       *config.Config
	db        wallet.Database
	vault     wallet.Vault
	encryptor wallet.Encryptor
	profiles  *profile.FileStore
	service   *wallet.Service
	clock     wallet.Clock
	op        *Operation
	logFile   *os.File
}

// NewWalletApp creates a fully wired WalletApp from the given config.
// operation identifies the CLI command being run (e.g. "CreateDocument", "CreateBackup").
// The caller must call Close when done.
func NewWalletApp(cfg *config.Config, operation string) (*WalletApp, error) {
	extra, err := filestore.ParseIgnoreFile(filepath.Join(cfg.DocumentsDir, filestore.IgnoreFileName))
	if err != nil {
		return nil, err
	}
	ignore := append(append([]string{}, cfg.Filesystem.Ignore...), extra...)
	files := filestore.NewOSFileStore(ignore)

	idx, err := index.NewFileIndex(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	// Without a configured vault, backups stay in backups_dir only.
	var v wallet.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	clock := wallet.RealClock{}
	opID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := wallet.NewService(wallet.Deps{
		Index: idx,
		Files: files,
		Paths: wallet.Paths{
			DocumentsDir: cfg.DocumentsDir,
			IndexFile:    cfg.IndexPath,
			ProfileFile:  cfg.ProfilePath,
			BackupsDir:   cfg.BackupsDir,
		},
		Packager:  archive.NewZipPackager(ignore),
		Vault:     v,
		Encryptor: enc,
		Database:  db,
		Logger:    &slogAdapter{l: logger},
		Clock:     clock,
		IDs:       wallet.UUIDGenerator{},
	})

	return &WalletApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		profiles:  profile.NewFileStore(cfg.ProfilePath),
		service:   svc,
		clock:     clock,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for commands that change wallet state.
func (a *WalletApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// resolvePath makes a user supplied path absolute.
func resolvePath(rawPath string) (string, error) {
	if rawPath == "" {
		return "", nil
	}
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", rawPath, err)
	}
	return abs, nil
}

// AddDocument resolves the picked file paths and creates a document.
// With move set, the picked files are removed once the document is stored.
func (a *WalletApp) AddDocument(in wallet.DocumentInput, move bool) (*wallet.DocumentRecord, error) {
	for i, src := range in.Sources {
		abs, err := resolvePath(src)
		if err != nil {
			return nil, err
		}
		in.Sources[i] = abs
	}
	if err := a.persistOperation("name=" + in.Name); err != nil {
		return nil, err
	}

	mode := wallet.ImportCopy
	if move {
		mode = wallet.ImportMove
	}
	rec, err := a.service.CreateDocument(in, mode)
	return rec, a.op.Record(err)
}

// ListDocuments returns the documents matching filter.
func (a *WalletApp) ListDocuments(filter wallet.ListFilter) ([]wallet.DocumentRecord, error) {
	return a.service.ListDocuments(filter)
}

// ListExpiring returns the documents expiring within the given duration.
func (a *WalletApp) ListExpiring(within time.Duration) ([]wallet.DocumentRecord, error) {
	return a.service.ListExpiring(within)
}

// GetDocument returns a document together with what is known about its files.
func (a *WalletApp) GetDocument(id string) (*wallet.DocumentRecord, []wallet.SlotFile, error) {
	rec, err := a.service.GetDocument(id)
	if err != nil {
		return nil, nil, err
	}
	files, err := a.service.DocumentFiles(id)
	if err != nil {
		return nil, nil, err
	}
	return rec, files, nil
}

// UpdateDocument changes the metadata of a document.
func (a *WalletApp) UpdateDocument(id string, patch wallet.DocumentPatch) (*wallet.DocumentRecord, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to change", wallet.ErrValidation)
	}
	if err := a.persistOperation("id=" + id); err != nil {
		return nil, err
	}
	rec, err := a.service.UpdateDocument(id, patch)
	return rec, a.op.Record(err)
}

// ReplaceFile resolves rawPath and puts it into slot of document id.
func (a *WalletApp) ReplaceFile(id string, slot wallet.Slot, rawPath string) (*wallet.DocumentRecord, error) {
	source, err := resolvePath(rawPath)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(fmt.Sprintf("id=%s slot=%s", id, slot)); err != nil {
		return nil, err
	}
	rec, err := a.service.ReplaceFile(id, slot, source)
	return rec, a.op.Record(err)
}

// DeleteFile clears slot of document id.
func (a *WalletApp) DeleteFile(id string, slot wallet.Slot) (*wallet.DocumentRecord, error) {
	if err := a.persistOperation(fmt.Sprintf("id=%s slot=%s", id, slot)); err != nil {
		return nil, err
	}
	rec, err := a.service.DeleteFile(id, slot)
	return rec, a.op.Record(err)
}

// DeleteDocument removes a document and its files.
func (a *WalletApp) DeleteDocument(id string) (*wallet.DeleteResult, error) {
	if err := a.persistOperation("id=" + id); err != nil {
		return nil, err
	}
	res, err := a.service.DeleteDocument(id)
	return res, a.op.Record(err)
}

// CreateBackup packages the wallet and stores the archive.
func (a *WalletApp) CreateBackup(encrypt bool) (*model.Backup, error) {
	if err := a.persistOperation(fmt.Sprintf("encrypt=%t", encrypt)); err != nil {
		return nil, err
	}
	b, err := a.service.CreateBackup(wallet.BackupOptions{Encrypt: encrypt})
	return b, a.op.Record(err)
}

// NeedsPassphrase reports whether restoring source requires the backup passphrase.
func (a *WalletApp) NeedsPassphrase(source string) bool {
	return strings.HasSuffix(source, ".age")
}

// RestoreBackup unpacks source over the current wallet. passphrase unlocks
// encrypted archives and is ignored for plain ones.
func (a *WalletApp) RestoreBackup(source, passphrase string) (*wallet.RestoreResult, error) {
	if err := a.persistOperation("source=" + filepath.Base(source)); err != nil {
		return nil, err
	}

	var decryptCtx wallet.DecryptionContext
	if a.NeedsPassphrase(source) {
		ctx, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, a.op.Record(fmt.Errorf("unlocking backup key: %w", err))
		}
		decryptCtx = ctx
	}

	res, err := a.service.RestoreBackup(source, decryptCtx)
	return res, a.op.Record(err)
}

// ListBackups returns recorded backups, newest first.
func (a *WalletApp) ListBackups(limit int) ([]*model.Backup, error) {
	return a.service.ListBackups(limit)
}

// ListVaultArchives returns the archives held by the vault, or nil when no
// vault is configured.
func (a *WalletApp) ListVaultArchives() ([]wallet.ArchiveInfo, error) {
	if a.vault == nil {
		return nil, nil
	}
	return a.service.ListVaultArchives()
}

// Check compares the index with the document folder.
func (a *WalletApp) Check() (*wallet.CheckReport, error) {
	return a.service.Check()
}

// PruneOrphans deletes files no document references.
func (a *WalletApp) PruneOrphans() ([]string, error) {
	if err := a.persistOperation(""); err != nil {
		return nil, err
	}
	pruned, err := a.service.PruneOrphans()
	return pruned, a.op.Record(err)
}

// GetHistory returns the most recent operations.
func (a *WalletApp) GetHistory(limit int) ([]*model.Operation, error) {
	return a.service.GetHistory(limit)
}

// Profile returns the stored user profile.
func (a *WalletApp) Profile() (*profile.Profile, error) {
	return a.profiles.Load()
}

// SetProfileField updates one profile field and saves the profile.
func (a *WalletApp) SetProfileField(key, value string) error {
	if err := a.persistOperation("key=" + key); err != nil {
		return err
	}
	p, err := a.profiles.Load()
	if err != nil {
		return a.op.Record(err)
	}
	if err := p.Set(key, value); err != nil {
		return a.op.Record(err)
	}
	return a.op.Record(a.profiles.Save(p))
}

// InitKeys creates the backup encryption keys protected by passphrase.
// It returns the age public key, or "" for encryptors without one.
func (a *WalletApp) InitKeys(passphrase string) (string, error) {
	if err := a.persistOperation(""); err != nil {
		return "", err
	}
	if err := a.op.Record(a.encryptor.Setup(passphrase)); err != nil {
		return "", err
	}

	ageEnc, ok := a.encryptor.(*encryption.AgeEncryptor)
	if !ok {
		return "", nil
	}
	return ageEnc.Recipient()
}

// ValidateVault checks that the configured vault is reachable.
func (a *WalletApp) ValidateVault() error {
	if a.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	return a.vault.ValidateSetup()
}

// Close finalizes the operation and closes all resources.
func (a *WalletApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
