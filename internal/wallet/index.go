package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IndexFile is the on-disk layout of archivos.json.
type IndexFile struct {
	Archivos []DocumentRecord `json:"archivos"`
}

// DecodeIndex parses the content of an index file. Blank content is an empty
// collection. Ids must be unique and no record may hold more than MaxSlots
// files; anything else fails with ErrCorruptIndex.
func DecodeIndex(data []byte) ([]DocumentRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []DocumentRecord{}, nil
	}

	var doc IndexFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}

	seen := make(map[string]bool, len(doc.Archivos))
	for i := range doc.Archivos {
		rec := &doc.Archivos[i]
		if seen[rec.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrCorruptIndex, rec.ID)
		}
		seen[rec.ID] = true
		if len(rec.Files) > MaxSlots {
			return nil, fmt.Errorf("%w: document %s lists %d files", ErrCorruptIndex, rec.ID, len(rec.Files))
		}
	}

	if doc.Archivos == nil {
		doc.Archivos = []DocumentRecord{}
	}
	return doc.Archivos, nil
}

// Index persists the collection of DocumentRecords as one whole value.
// Every mutation reads the full collection, changes it in memory and
// rewrites the file; implementations serialize these cycles per file.
type Index interface {
	// Load returns all records. A missing index yields an empty collection;
	// an unparseable one fails with ErrCorruptIndex.
	Load() ([]DocumentRecord, error)

	// Append adds rec. Fails with ErrDuplicateID if rec.ID is already present.
	Append(rec DocumentRecord) error

	// UpdateByID applies fn to the record with the given id and writes the
	// collection back. Fails with ErrNotFound if no record matches. If fn
	// returns an error nothing is written. Returns the updated record.
	UpdateByID(id string, fn func(*DocumentRecord) error) (DocumentRecord, error)

	// RemoveByID drops the record with the given id and returns it.
	// Fails with ErrNotFound if absent.
	RemoveByID(id string) (DocumentRecord, error)

	// Write overwrites the index with records.
	Write(records []DocumentRecord) error

	// Path returns the location of the index file.
	Path() string
}
