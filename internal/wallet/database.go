package wallet

import (
	"time"

	"docwallet/internal/model"
)

// Database records operation history and produced backups.
// The document index itself never lives here; archivos.json stays the
// source of truth for documents.
type Database interface {
	// CreateOperation inserts a running operation and returns it with its ID.
	CreateOperation(operation, parameters string, startedAt time.Time) (*model.Operation, error)

	// FinishOperation sets the final status and finish time of an operation.
	FinishOperation(id int64, status string, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// CreateBackup records a stored backup archive.
	CreateBackup(b *model.Backup) error

	// FindBackupByName returns the backup with the given archive name, or nil.
	FindBackupByName(name string) (*model.Backup, error)

	// ListBackups returns the most recent backups, newest first.
	ListBackups(limit int) ([]*model.Backup, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
