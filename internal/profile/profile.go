package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docwallet/internal/filestore"
	"docwallet/internal/wallet"
)

// JSON keys of the known identity fields.
const (
	keyDocumentNumber = "numeroDocumento"
	keyNames          = "nombres"
	keySurnames       = "apellidos"
	keyEmail          = "correo"
	keyPhone          = "telefono"
)

// Profile is the user identity stored next to the index. Keys written by
// other clients are kept in Extra and written back untouched.
type Profile struct {
	DocumentNumber string
	Names          string
	Surnames       string
	Email          string
	Phone          string
	Extra          map[string]json.RawMessage
}

// Fields returns every profile field as a string, sorted by key.
// Non-string extra values are rendered as raw JSON.
func (p *Profile) Fields() [][2]string {
	var out [][2]string
	for _, kv := range [][2]string{
		{keyDocumentNumber, p.DocumentNumber},
		{keyNames, p.Names},
		{keySurnames, p.Surnames},
		{keyEmail, p.Email},
		{keyPhone, p.Phone},
	} {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	for k, raw := range p.Extra {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out = append(out, [2]string{k, s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Set assigns value to key, using the typed field when key is known.
func (p *Profile) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: profile key is required", wallet.ErrValidation)
	}
	switch key {
	case keyDocumentNumber, keyNames, keySurnames, keyEmail, keyPhone:
		delete(p.Extra, key)
	}
	switch key {
	case keyDocumentNumber:
		p.DocumentNumber = value
	case keyNames:
		p.Names = value
	case keySurnames:
		p.Surnames = value
	case keyEmail:
		p.Email = value
	case keyPhone:
		p.Phone = value
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[key] = raw
	}
	return nil
}

// MarshalJSON writes known fields and extras as one flat object.
func (p Profile) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(p.Extra)+5)
	for k, v := range p.Extra {
		m[k] = v
	}
	for k, v := range map[string]string{
		keyDocumentNumber: p.DocumentNumber,
		keyNames:          p.Names,
		keySurnames:       p.Surnames,
		keyEmail:          p.Email,
		keyPhone:          p.Phone,
	} {
		if v == "" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		m[k] = raw
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits a flat object into known fields and extras.
// Known keys holding non-string values are kept as extras.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = Profile{}
	for k, raw := range m {
		var target *string
		switch k {
		case keyDocumentNumber:
			target = &p.DocumentNumber
		case keyNames:
			target = &p.Names
		case keySurnames:
			target = &p.Surnames
		case keyEmail:
			target = &p.Email
		case keyPhone:
			target = &p.Phone
		}
		if target != nil && json.Unmarshal(raw, target) == nil {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = raw
	}
	return nil
}

type profileDocument struct {
	Perfil Profile `json:"perfilUsuario"`
}

// FileStore reads and writes the profile JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store for the profile at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the profile file.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored profile. A missing file yields an empty profile.
func (s *FileStore) Load() (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("%w: reading profile: %w", wallet.ErrStorage, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Profile{}, nil
	}

	var doc profileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", s.path, err)
	}
	return &doc.Perfil, nil
}

// Save overwrites the profile file with p.
func (s *FileStore) Save(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(profileDocument{Perfil: *p}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: creating profile folder: %w", wallet.ErrStorage, err)
	}
	if _, err := filestore.WriteAtomic(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: writing profile: %w", wallet.ErrStorage, err)
	}
	return nil
}
