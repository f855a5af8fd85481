package wallet

import (
	"fmt"

	"docwallet/internal/model"
)

// GetHistory returns the most recent operations, ordered newest first.
func (s *Service) GetHistory(limit int) ([]*model.Operation, error) {
	if s.database == nil {
		return nil, fmt.Errorf("no database configured")
	}
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// ListBackups returns the most recent recorded backups, newest first.
func (s *Service) ListBackups(limit int) ([]*model.Backup, error) {
	if s.database == nil {
		return nil, fmt.Errorf("no database configured")
	}
	backups, err := s.database.ListBackups(limit)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return backups, nil
}

// ListVaultArchives returns the archives held by the configured vault.
func (s *Service) ListVaultArchives() ([]ArchiveInfo, error) {
	if s.vault == nil {
		return nil, fmt.Errorf("no vault configured")
	}
	archives, err := s.vault.ListArchives()
	if err != nil {
		return nil, fmt.Errorf("listing vault %s: %w", s.vault.Name(), err)
	}
	return archives, nil
}
