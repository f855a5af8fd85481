package wallet

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Paths locates the on-device artifacts the service manages.
type Paths struct {
	DocumentsDir string
	IndexFile    string
	ProfileFile  string
	BackupsDir   string
}

// Deps groups the collaborators of a Service. Index, Files and Paths are
// required; backup-related fields may be nil when backups are not used.
// Nil Logger, Clock, IDs and Namer fall back to real implementations.
type Deps struct {
	Index     Index
	Files     FileStore
	Paths     Paths
	Packager  Packager
	Vault     Vault
	Encryptor Encryptor
	Database  Database
	Logger    Logger
	Clock     Clock
	IDs       IDGenerator
	Namer     NameGenerator
}

// Service is the document lifecycle manager. It coordinates the file store
// and the metadata index so that every reference in the index points at a
// file that exists. Mutating operations run one at a time.
type Service struct {
	index     Index
	files     FileStore
	paths     Paths
	packager  Packager
	vault     Vault
	encryptor Encryptor
	database  Database
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	namer     NameGenerator

	mu sync.Mutex
}

// NewService creates a Service from its dependencies.
func NewService(d Deps) *Service {
	s := &Service{
		index:     d.Index,
		files:     d.Files,
		paths:     d.Paths,
		packager:  d.Packager,
		vault:     d.Vault,
		encryptor: d.Encryptor,
		database:  d.Database,
		logger:    d.Logger,
		clock:     d.Clock,
		idgen:     d.IDs,
		namer:     d.Namer,
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.idgen == nil {
		s.idgen = UUIDGenerator{}
	}
	if s.namer == nil {
		s.namer = NewUniqueNamer(s.clock)
	}
	return s
}

// DocumentPath returns the location of a stored file name.
func (s *Service) DocumentPath(name string) string {
	return filepath.Join(s.paths.DocumentsDir, name)
}

// CreateDocument validates in, imports its files under fresh names and
// appends a new record. If the index write fails the imported files are
// removed again. With ImportMove the picked sources are removed only after
// the record is stored, so a failed create never loses the user's file.
func (s *Service) CreateDocument(in DocumentInput, mode ImportMode) (*DocumentRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.files.EnsureFolder(s.paths.DocumentsDir); err != nil {
		return nil, fmt.Errorf("preparing document folder: %w", err)
	}

	now := s.clock.Now().UTC()
	expiry := in.ExpiryDate.UTC()
	if in.ExpiryDate.IsZero() {
		expiry = now.AddDate(defaultValidityYears, 0, 0)
	}

	rec := DocumentRecord{
		ID:          s.idgen.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		URL:         strings.TrimSpace(in.URL),
		Files:       []string{},
		CreatedAt:   now,
		ExpiryDate:  expiry,
		Archived:    in.Archived,
	}

	var imported []string
	for slot := SlotPrincipal; slot < MaxSlots; slot++ {
		src := in.Sources[slot]
		if src == "" {
			continue
		}
		dest, err := s.importSource(src, ImportCopy)
		if err != nil {
			s.discard(imported)
			return nil, fmt.Errorf("importing %s file: %w", slot, err)
		}
		imported = append(imported, dest)
		rec.setFile(slot, filepath.Base(dest))
	}

	if err := s.index.Append(rec); err != nil {
		s.discard(imported)
		return nil, fmt.Errorf("adding document to index: %w", err)
	}

	if mode == ImportMove {
		for _, src := range in.Sources {
			if src == "" {
				continue
			}
			if err := s.files.DeleteFile(src); err != nil {
				s.logger.Warn("picked source left behind", "source", src, "error", err)
			}
		}
	}

	s.logger.Info("document created", "id", rec.ID, "files", len(imported))
	return &rec, nil
}

// UpdateDocument applies patch to the metadata of document id.
func (s *Service) UpdateDocument(id string, patch DocumentPatch) (*DocumentRecord, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.index.UpdateByID(id, patch.apply)
	if err != nil {
		return nil, fmt.Errorf("updating document %s: %w", id, err)
	}

	s.logger.Info("document updated", "id", id)
	return &rec, nil
}

// ReplaceFile puts source into slot of document id. The new file is placed
// first, then the record is pointed at it, and only then is the previous
// file removed. A failed import leaves the record untouched.
func (s *Service) ReplaceFile(id string, slot Slot, source string) (*DocumentRecord, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: invalid slot %d", ErrValidation, int(slot))
	}
	if source == "" {
		return nil, fmt.Errorf("%w: replacement file is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if slot == SlotSecondary && !current.HasFile(SlotPrincipal) {
		return nil, fmt.Errorf("%w: a secondary file requires a principal file", ErrValidation)
	}

	if err := s.files.EnsureFolder(s.paths.DocumentsDir); err != nil {
		return nil, fmt.Errorf("preparing document folder: %w", err)
	}

	dest, err := s.importSource(source, ImportCopy)
	if err != nil {
		return nil, fmt.Errorf("importing replacement for %s file: %w", slot, err)
	}
	newName := filepath.Base(dest)

	var previous string
	rec, err := s.index.UpdateByID(id, func(r *DocumentRecord) error {
		if slot == SlotSecondary && !r.HasFile(SlotPrincipal) {
			return fmt.Errorf("%w: a secondary file requires a principal file", ErrValidation)
		}
		previous = r.FileAt(slot)
		r.setFile(slot, newName)
		return nil
	})
	if err != nil {
		s.discard([]string{dest})
		return nil, fmt.Errorf("updating document %s: %w", id, err)
	}

	if previous != "" && previous != newName {
		if err := s.files.DeleteFile(s.DocumentPath(previous)); err != nil {
			s.logger.Warn("previous file left behind", "id", id, "file", previous, "error", err)
		}
	}

	s.logger.Info("document file replaced", "id", id, "slot", slot.String(), "file", newName)
	return &rec, nil
}

// DeleteFile clears slot of document id and removes the file it referenced.
// Clearing the principal file is only allowed while the document keeps a url
// and has no secondary file.
func (s *Service) DeleteFile(id string, slot Slot) (*DocumentRecord, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: invalid slot %d", ErrValidation, int(slot))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed string
	rec, err := s.index.UpdateByID(id, func(r *DocumentRecord) error {
		name := r.FileAt(slot)
		if name == "" {
			return fmt.Errorf("%w: document %s has no %s file", ErrNotFound, id, slot)
		}
		if slot == SlotPrincipal {
			if err := validateShape(false, r.HasFile(SlotSecondary), r.URL); err != nil {
				return err
			}
		}
		removed = name
		r.clearFile(slot)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("removing %s file of document %s: %w", slot, id, err)
	}

	if err := s.files.DeleteFile(s.DocumentPath(removed)); err != nil {
		s.logger.Warn("file left behind", "id", id, "file", removed, "error", err)
	}

	s.logger.Info("document file removed", "id", id, "slot", slot.String(), "file", removed)
	return &rec, nil
}

// DeleteResult reports the outcome of DeleteDocument.
// FileErrors holds file deletions that failed after the record was removed;
// those files are left as orphans.
type DeleteResult struct {
	Document   DocumentRecord
	FileErrors []error
}

// DeleteDocument removes the index entry of id first and then deletes the
// referenced files. File deletion failures are collected, never returned:
// a leaked file is acceptable, a dangling reference is not.
func (s *Service) DeleteDocument(id string) (*DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.index.RemoveByID(id)
	if err != nil {
		return nil, fmt.Errorf("deleting document %s: %w", id, err)
	}

	result := &DeleteResult{Document: rec}
	for _, name := range rec.FileNames() {
		if err := s.files.DeleteFile(s.DocumentPath(name)); err != nil {
			s.logger.Warn("file left behind", "id", id, "file", name, "error", err)
			result.FileErrors = append(result.FileErrors, fmt.Errorf("deleting %s: %w", name, err))
		}
	}

	s.logger.Info("document deleted", "id", id, "file_errors", len(result.FileErrors))
	return result, nil
}

// GetDocument returns the record with the given id.
func (s *Service) GetDocument(id string) (*DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

// ListFilter narrows ListDocuments. The zero value matches everything.
type ListFilter struct {
	Query        string // case-insensitive substring of name or description
	ArchivedOnly bool
	ExpiredOnly  bool
}

func (f ListFilter) match(r *DocumentRecord, now time.Time) bool {
	if f.ArchivedOnly && !r.Archived {
		return false
	}
	if f.ExpiredOnly && !r.IsExpired(now) {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.Description), q)
}

// ListDocuments returns the records matching filter in index order.
func (s *Service) ListDocuments(filter ListFilter) ([]DocumentRecord, error) {
	s.mu.Lock()
	records, err := s.index.Load()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	now := s.clock.Now()
	var out []DocumentRecord
	for i := range records {
		if filter.match(&records[i], now) {
			out = append(out, records[i])
		}
	}
	return out, nil
}

// ListExpiring returns documents whose expiry date falls before now+within,
// including already expired ones, soonest first.
func (s *Service) ListExpiring(within time.Duration) ([]DocumentRecord, error) {
	all, err := s.ListDocuments(ListFilter{})
	if err != nil {
		return nil, err
	}

	limit := s.clock.Now().Add(within)
	var out []DocumentRecord
	for _, r := range all {
		if !r.ExpiryDate.IsZero() && r.ExpiryDate.Before(limit) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(out[j].ExpiryDate)
	})
	return out, nil
}

// SlotFile describes the file held in one slot of a document.
type SlotFile struct {
	Slot    Slot
	Name    string
	Info    *FileInfo // nil when the file is missing
	Missing bool
}

// DocumentFiles inspects the files referenced by document id.
func (s *Service) DocumentFiles(id string) ([]SlotFile, error) {
	rec, err := s.GetDocument(id)
	if err != nil {
		return nil, err
	}

	var out []SlotFile
	for slot := SlotPrincipal; slot < MaxSlots; slot++ {
		name := rec.FileAt(slot)
		if name == "" {
			continue
		}
		sf := SlotFile{Slot: slot, Name: name}
		info, err := s.files.Inspect(s.DocumentPath(name))
		if err != nil {
			s.logger.Debug("inspecting file failed", "file", name, "error", err)
			sf.Missing = true
		} else {
			sf.Info = info
		}
		out = append(out, sf)
	}
	return out, nil
}

// find loads the index and returns a copy of the record with id.
// Callers hold s.mu.
func (s *Service) find(id string) (*DocumentRecord, error) {
	records, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	for i := range records {
		if records[i].ID == id {
			rec := records[i].Clone()
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
}

// importSource places source in the document folder under a generated name.
func (s *Service) importSource(source string, mode ImportMode) (string, error) {
	name := s.namer.Name(filepath.Ext(source))
	dest, err := s.files.ImportFile(source, s.paths.DocumentsDir, name, mode)
	if err != nil {
		return "", err
	}
	s.logger.Debug("file imported", "source", source, "dest", dest, "mode", mode.String())
	return dest, nil
}

// discard removes files imported by an operation that could not complete.
func (s *Service) discard(paths []string) {
	for _, p := range paths {
		if err := s.files.DeleteFile(p); err != nil {
			s.logger.Warn("cleanup of imported file failed", "path", p, "error", err)
		}
	}
}
