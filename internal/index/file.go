package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"docwallet/internal/filestore"
	"docwallet/internal/wallet"
)

// FileIndex is a wallet.Index backed by a single JSON file. Every mutation
// loads the whole collection, edits it and rewrites the file.
type FileIndex struct {
	path string
	mu   *sync.Mutex
}

// NewFileIndex returns an index stored at path. The file is created on the
// first write.
func NewFileIndex(path string) (*FileIndex, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving index path: %w", err)
	}
	abs = filepath.Clean(abs)
	return &FileIndex{path: abs, mu: lockFor(abs)}, nil
}

// Path returns the absolute location of the index file.
func (x *FileIndex) Path() string {
	return x.path
}

// Load returns every record in file order.
func (x *FileIndex) Load() ([]wallet.DocumentRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.load()
}

// Write replaces the stored collection with records.
func (x *FileIndex) Write(records []wallet.DocumentRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.write(records)
}

// Append adds rec to the end of the collection.
func (x *FileIndex) Append(rec wallet.DocumentRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	records, err := x.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == rec.ID {
			return fmt.Errorf("%w: %s", wallet.ErrDuplicateID, rec.ID)
		}
	}
	return x.write(append(records, rec))
}

// UpdateByID runs fn on the record with id and writes the result.
// Nothing is written when fn fails.
func (x *FileIndex) UpdateByID(id string, fn func(*wallet.DocumentRecord) error) (wallet.DocumentRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	records, err := x.load()
	if err != nil {
		return wallet.DocumentRecord{}, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return wallet.DocumentRecord{}, fmt.Errorf("%w: document %s", wallet.ErrNotFound, id)
	}

	updated := records[i].Clone()
	if err := fn(&updated); err != nil {
		return wallet.DocumentRecord{}, err
	}
	// Identity and creation time never change.
	updated.ID = records[i].ID
	updated.CreatedAt = records[i].CreatedAt
	records[i] = updated

	if err := x.write(records); err != nil {
		return wallet.DocumentRecord{}, err
	}
	return updated.Clone(), nil
}

// RemoveByID drops the record with id and returns it.
func (x *FileIndex) RemoveByID(id string) (wallet.DocumentRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	records, err := x.load()
	if err != nil {
		return wallet.DocumentRecord{}, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return wallet.DocumentRecord{}, fmt.Errorf("%w: document %s", wallet.ErrNotFound, id)
	}

	removed := records[i]
	kept := append(records[:i:i], records[i+1:]...)
	if err := x.write(kept); err != nil {
		return wallet.DocumentRecord{}, err
	}
	return removed, nil
}

func (x *FileIndex) load() ([]wallet.DocumentRecord, error) {
	data, err := os.ReadFile(x.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []wallet.DocumentRecord{}, nil
		}
		return nil, fmt.Errorf("%w: reading index %s: %w", wallet.ErrStorage, x.path, err)
	}

	records, err := wallet.DecodeIndex(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", x.path, err)
	}
	return records, nil
}

func (x *FileIndex) write(records []wallet.DocumentRecord) error {
	doc := wallet.IndexFile{Archivos: make([]wallet.DocumentRecord, len(records))}
	for i := range records {
		doc.Archivos[i] = records[i].Clone()
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding index: %w", wallet.ErrStorage, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(x.path), 0755); err != nil {
		return fmt.Errorf("%w: creating index folder: %w", wallet.ErrStorage, err)
	}
	if _, err := filestore.WriteAtomic(x.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: writing index: %w", wallet.ErrStorage, err)
	}
	return nil
}

func indexOf(records []wallet.DocumentRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// Compile-time check that FileIndex implements wallet.Index interface
var _ wallet.Index = (*FileIndex)(nil)
