package testutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"docwallet/internal/wallet"
)

// ErrInjected is returned by the faulty wrappers when a failure is armed.
var ErrInjected = errors.New("injected failure")

// FaultyFileStore wraps a wallet.FileStore and fails chosen calls.
type FaultyFileStore struct {
	wallet.FileStore

	mu sync.Mutex
	// importsLeft is the number of ImportFile calls that still succeed
	// before every further one fails. Negative means never fail.
	importsLeft int
	// failDelete holds base names whose deletion fails.
	failDelete map[string]bool
	deleted    []string
}

// NewFaultyFileStore wraps inner with no failures armed.
func NewFaultyFileStore(inner wallet.FileStore) *FaultyFileStore {
	return &FaultyFileStore{FileStore: inner, importsLeft: -1, failDelete: make(map[string]bool)}
}

// FailImportsAfter lets n imports succeed and fails the rest.
func (f *FaultyFileStore) FailImportsAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.importsLeft = n
}

// FailDeleteOf makes DeleteFile fail for files with the given base name.
func (f *FaultyFileStore) FailDeleteOf(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[name] = true
}

// Deleted returns the paths DeleteFile was called with, in order.
func (f *FaultyFileStore) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *FaultyFileStore) ImportFile(source, destFolder, desiredName string, mode wallet.ImportMode) (string, error) {
	f.mu.Lock()
	if f.importsLeft == 0 {
		f.mu.Unlock()
		return "", fmt.Errorf("%w: importing %s: %w", wallet.ErrStorage, source, ErrInjected)
	}
	if f.importsLeft > 0 {
		f.importsLeft--
	}
	f.mu.Unlock()
	return f.FileStore.ImportFile(source, destFolder, desiredName, mode)
}

func (f *FaultyFileStore) DeleteFile(path string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, path)
	fail := f.failDelete[filepath.Base(path)]
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: deleting %s: %w", wallet.ErrStorage, path, ErrInjected)
	}
	return f.FileStore.DeleteFile(path)
}

// FaultyIndex wraps a wallet.Index and can make every mutation fail
// without touching the underlying file.
type FaultyIndex struct {
	wallet.Index

	mu         sync.Mutex
	failWrites bool
}

// NewFaultyIndex wraps inner with writes enabled.
func NewFaultyIndex(inner wallet.Index) *FaultyIndex {
	return &FaultyIndex{Index: inner}
}

// FailWrites arms or disarms write failures.
func (x *FaultyIndex) FailWrites(fail bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.failWrites = fail
}

func (x *FaultyIndex) failing() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.failWrites
}

func (x *FaultyIndex) injected() error {
	return fmt.Errorf("%w: writing index: %w", wallet.ErrStorage, ErrInjected)
}

func (x *FaultyIndex) Append(rec wallet.DocumentRecord) error {
	if x.failing() {
		return x.injected()
	}
	return x.Index.Append(rec)
}

func (x *FaultyIndex) UpdateByID(id string, fn func(*wallet.DocumentRecord) error) (wallet.DocumentRecord, error) {
	if x.failing() {
		return wallet.DocumentRecord{}, x.injected()
	}
	return x.Index.UpdateByID(id, fn)
}

func (x *FaultyIndex) RemoveByID(id string) (wallet.DocumentRecord, error) {
	if x.failing() {
		return wallet.DocumentRecord{}, x.injected()
	}
	return x.Index.RemoveByID(id)
}

func (x *FaultyIndex) Write(records []wallet.DocumentRecord) error {
	if x.failing() {
		return x.injected()
	}
	return x.Index.Write(records)
}

// Compile-time checks for the wrappers
var (
	_ wallet.FileStore = (*FaultyFileStore)(nil)
	_ wallet.Index     = (*FaultyIndex)(nil)
)
