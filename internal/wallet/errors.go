package wallet

import "errors"

// Error categories returned by wallet operations. Callers classify failures
// with errors.Is; the underlying cause stays attached to the chain.
var (
	// ErrValidation is returned for bad user input: missing name, no file or
	// url, malformed url, or an invalid slot combination.
	ErrValidation = errors.New("validation failed")

	// ErrStorage is returned when a filesystem read, write, copy or move fails.
	ErrStorage = errors.New("storage failure")

	// ErrCorruptIndex is returned when the index file exists but cannot be parsed.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrNotFound is returned when an id or slot does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when appending a record whose id is already indexed.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrBackup is returned when a backup archive cannot be produced or stored.
	ErrBackup = errors.New("backup failed")

	// ErrRestore is returned when a backup archive cannot be fetched or unpacked.
	ErrRestore = errors.New("restore failed")
)
