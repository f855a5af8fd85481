package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"docwallet/internal/wallet"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps archives in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name     string
	archives map[string][]byte
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		archives: make(map[string][]byte),
	}
}

// Name returns the configured vault name.
func (m *MemoryVault) Name() string {
	return m.name
}

// PutArchive stores an archive under name.
func (m *MemoryVault) PutArchive(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.archives[name] = data
	return nil
}

// GetArchive retrieves the archive stored under name.
func (m *MemoryVault) GetArchive(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.archives[name]
	if !ok {
		return fmt.Errorf("archive not found: %s", name)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// ListArchives returns the stored archives ordered by name.
func (m *MemoryVault) ListArchives() ([]wallet.ArchiveInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]wallet.ArchiveInfo, 0, len(m.archives))
	for name, data := range m.archives {
		out = append(out, wallet.ArchiveInfo{Name: name, Size: int64(len(data))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements wallet.Vault interface
var _ wallet.Vault = (*MemoryVault)(nil)
