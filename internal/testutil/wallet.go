package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"docwallet/internal/archive"
	"docwallet/internal/encryption"
	"docwallet/internal/filestore"
	"docwallet/internal/index"
	"docwallet/internal/vault"
	"docwallet/internal/wallet"
)

// Env is a wallet.Service wired to real components under a temp directory,
// with failure-injection wrappers around the file store and the index.
type Env struct {
	Root      string
	Paths     wallet.Paths
	Service   *wallet.Service
	Files     *FaultyFileStore
	Index     *FaultyIndex
	Vault     *vault.MemoryVault
	Encryptor *encryption.TestEncryptor
	Database  wallet.Database
	Clock     *StubClock
	Namer     *StubNamer
}

// NewEnv builds an Env rooted at t.TempDir().
func NewEnv(t *testing.T) *Env {
	t.Helper()

	root := t.TempDir()
	paths := wallet.Paths{
		DocumentsDir: filepath.Join(root, "documentos"),
		IndexFile:    filepath.Join(root, "archivos.json"),
		ProfileFile:  filepath.Join(root, "perfil.json"),
		BackupsDir:   filepath.Join(root, "backups"),
	}

	idx, err := index.NewFileIndex(paths.IndexFile)
	if err != nil {
		t.Fatalf("NewFileIndex() error = %v", err)
	}

	env := &Env{
		Root:      root,
		Paths:     paths,
		Files:     NewFaultyFileStore(filestore.NewOSFileStore(nil)),
		Index:     NewFaultyIndex(idx),
		Vault:     NewTestVault(),
		Encryptor: NewTestEncryptor(),
		Database:  NewTestDatabase(t),
		Clock:     FixedClock(),
		Namer:     NewStubNamer(),
	}
	env.Service = wallet.NewService(wallet.Deps{
		Index:     env.Index,
		Files:     env.Files,
		Paths:     paths,
		Packager:  archive.NewZipPackager(nil),
		Vault:     env.Vault,
		Encryptor: env.Encryptor,
		Database:  env.Database,
		Clock:     env.Clock,
		IDs:       NewStubIDGenerator(),
		Namer:     env.Namer,
	})
	return env
}

// WriteSource creates a file outside the document folder, as a picker would
// hand it over, and returns its path.
func (e *Env) WriteSource(t *testing.T, name, content string) string {
	t.Helper()
	dir := filepath.Join(e.Root, "picked")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// StoredFiles lists the document folder.
func (e *Env) StoredFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.Paths.DocumentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
