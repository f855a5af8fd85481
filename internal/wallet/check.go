package wallet

import (
	"fmt"
	"sort"
)

// DanglingReference is an index entry pointing at a file that is not in the
// document folder.
type DanglingReference struct {
	DocumentID string
	Slot       Slot
	FileName   string
}

// CheckReport is the result of comparing the index with the document folder.
type CheckReport struct {
	Documents int
	Files     int
	Dangling  []DanglingReference
	Orphans   []string // files no record references
}

// Consistent reports whether the index and the folder agree.
func (r *CheckReport) Consistent() bool {
	return len(r.Dangling) == 0 && len(r.Orphans) == 0
}

// Check compares the index against the files on disk.
func (s *Service) Check() (*CheckReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check()
}

// PruneOrphans deletes every orphan file and returns their names.
func (s *Service) PruneOrphans() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.check()
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, name := range report.Orphans {
		if err := s.files.DeleteFile(s.DocumentPath(name)); err != nil {
			return pruned, fmt.Errorf("pruning %s: %w", name, err)
		}
		pruned = append(pruned, name)
	}
	s.logger.Info("orphan files pruned", "count", len(pruned))
	return pruned, nil
}

// check does the work of Check. Callers hold s.mu.
func (s *Service) check() (*CheckReport, error) {
	records, err := s.index.Load()
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	if err := s.files.EnsureFolder(s.paths.DocumentsDir); err != nil {
		return nil, fmt.Errorf("preparing document folder: %w", err)
	}
	names, err := s.files.ListFiles(s.paths.DocumentsDir)
	if err != nil {
		return nil, fmt.Errorf("listing document folder: %w", err)
	}

	onDisk := make(map[string]bool, len(names))
	for _, n := range names {
		onDisk[n] = true
	}

	report := &CheckReport{Documents: len(records), Files: len(names)}
	referenced := make(map[string]bool)
	for i := range records {
		rec := &records[i]
		for slot := SlotPrincipal; slot < MaxSlots; slot++ {
			name := rec.FileAt(slot)
			if name == "" {
				continue
			}
			referenced[name] = true
			if !onDisk[name] {
				report.Dangling = append(report.Dangling, DanglingReference{
					DocumentID: rec.ID,
					Slot:       slot,
					FileName:   name,
				})
			}
		}
	}

	for _, n := range names {
		if !referenced[n] {
			report.Orphans = append(report.Orphans, n)
		}
	}
	sort.Strings(report.Orphans)

	return report, nil
}
