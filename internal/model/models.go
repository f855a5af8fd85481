package model

import (
	"database/sql"
	"time"
)

// Operation records a CLI command that mutated wallet state.
type Operation struct {
	ID         int64
	Operation  string // e.g. "CreateDocument", "CreateBackup"
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "running", "success" or "error"
}

// Backup describes an archive produced by CreateBackup.
type Backup struct {
	ID        string // UUID
	Name      string // archive file name, e.g. backup_20240115T103000Z.zip
	Vault     string // name of the vault holding the archive
	Size      int64  // archive size in bytes as stored
	Checksum  string // SHA-256 of the stored archive
	Encrypted bool
	Documents int // number of index records at backup time
	CreatedAt time.Time
}
