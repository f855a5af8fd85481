package wallet

import "io"

// ArchiveInfo describes a backup archive held by a vault.
type ArchiveInfo struct {
	Name string
	Size int64
}

// Vault provides an interface for backup archive storage backends.
// All operations use io.Reader/io.Writer for streaming so archives are never
// loaded entirely into memory.
type Vault interface {
	// Name returns the configured vault name.
	Name() string

	// PutArchive stores an archive under name.
	// size is the number of bytes that will be read from r.
	PutArchive(name string, r io.Reader, size int64) error

	// GetArchive retrieves the archive stored under name and writes it to w.
	GetArchive(name string, w io.Writer) error

	// ListArchives returns the stored archives ordered by name.
	ListArchives() ([]ArchiveInfo, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
