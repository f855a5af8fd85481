package wallet

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Slot identifies one of the two file positions on a document.
type Slot int

const (
	// SlotPrincipal is the main file of a document (slot 0).
	SlotPrincipal Slot = 0
	// SlotSecondary is the optional second file, e.g. the back of a card (slot 1).
	SlotSecondary Slot = 1

	// MaxSlots is the number of file positions a document can hold.
	MaxSlots = 2
)

// Valid reports whether s names an existing slot position.
func (s Slot) Valid() bool {
	return s == SlotPrincipal || s == SlotSecondary
}

func (s Slot) String() string {
	switch s {
	case SlotPrincipal:
		return "principal"
	case SlotSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// defaultValidityYears is added to the creation time when no expiry date is given.
const defaultValidityYears = 1

// DocumentRecord is one entry of the metadata index.
// The JSON field names are the on-disk format of archivos.json.
type DocumentRecord struct {
	ID          string    `json:"id_archivo"`
	Name        string    `json:"nombre"`
	Description string    `json:"descripcion"`
	URL         string    `json:"url"`
	Files       []string  `json:"imagenes"`
	CreatedAt   time.Time `json:"fecha_creacion"`
	ExpiryDate  time.Time `json:"expiryDate"`
	Archived    bool      `json:"share"`
}

// FileAt returns the filename stored in slot, or "" if the slot is empty.
func (r *DocumentRecord) FileAt(slot Slot) string {
	if !slot.Valid() || int(slot) >= len(r.Files) {
		return ""
	}
	return r.Files[slot]
}

// HasFile reports whether slot holds a filename.
func (r *DocumentRecord) HasFile(slot Slot) bool {
	return r.FileAt(slot) != ""
}

// FileNames returns the non-empty filenames referenced by the record, in slot order.
func (r *DocumentRecord) FileNames() []string {
	var names []string
	for _, f := range r.Files {
		if f != "" {
			names = append(names, f)
		}
	}
	return names
}

// setFile stores name in slot, growing Files as needed.
func (r *DocumentRecord) setFile(slot Slot, name string) {
	for len(r.Files) <= int(slot) {
		r.Files = append(r.Files, "")
	}
	r.Files[slot] = name
	r.trimFiles()
}

// clearFile empties slot.
func (r *DocumentRecord) clearFile(slot Slot) {
	if int(slot) < len(r.Files) {
		r.Files[slot] = ""
	}
	r.trimFiles()
}

// trimFiles drops trailing empty slots so the JSON never carries placeholders.
func (r *DocumentRecord) trimFiles() {
	n := len(r.Files)
	for n > 0 && r.Files[n-1] == "" {
		n--
	}
	r.Files = r.Files[:n]
}

// Clone returns a deep copy of the record.
func (r *DocumentRecord) Clone() DocumentRecord {
	c := *r
	c.Files = append([]string{}, r.Files...)
	return c
}

// IsExpired reports whether the document expiry date is before now.
func (r *DocumentRecord) IsExpired(now time.Time) bool {
	return !r.ExpiryDate.IsZero() && r.ExpiryDate.Before(now)
}

// DocumentInput is the data collected by the "add document" flow.
// Sources holds paths of picked files for each slot; empty means no file.
type DocumentInput struct {
	Name        string
	Description string
	URL         string
	Sources     [MaxSlots]string
	ExpiryDate  time.Time // zero means one year from creation
	Archived    bool
}

// DocumentPatch holds optional metadata changes. Nil fields are left untouched.
type DocumentPatch struct {
	Name        *string
	Description *string
	URL         *string
	ExpiryDate  *time.Time
	Archived    *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p DocumentPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.URL == nil && p.ExpiryDate == nil && p.Archived == nil
}

// urlPattern is deliberately loose: optional scheme, a dotted host with a
// letter TLD, optional port and path.
var urlPattern = regexp.MustCompile(`^(https?://)?([A-Za-z0-9-]+\.)+[A-Za-z]{2,}(:[0-9]{1,5})?(/\S*)?$`)

// ValidateURL checks raw against the loose domain/URL pattern.
// An empty url is valid.
func ValidateURL(raw string) error {
	if raw == "" {
		return nil
	}
	if !urlPattern.MatchString(raw) {
		return fmt.Errorf("%w: malformed url %q", ErrValidation, raw)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}

// validateShape enforces the slot rule: a document needs a principal file or
// a url, and a secondary file only makes sense next to a principal one.
func validateShape(hasPrincipal, hasSecondary bool, url string) error {
	if hasSecondary && !hasPrincipal {
		return fmt.Errorf("%w: a secondary file requires a principal file", ErrValidation)
	}
	if !hasPrincipal && url == "" {
		return fmt.Errorf("%w: a document needs a principal file or a url", ErrValidation)
	}
	return nil
}

// Validate checks the input of a create operation.
func (in DocumentInput) Validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	url := strings.TrimSpace(in.URL)
	if err := ValidateURL(url); err != nil {
		return err
	}
	return validateShape(in.Sources[SlotPrincipal] != "", in.Sources[SlotSecondary] != "", url)
}

// validate runs the checks that do not depend on the stored record.
func (p DocumentPatch) validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.URL != nil {
		if err := ValidateURL(strings.TrimSpace(*p.URL)); err != nil {
			return err
		}
	}
	if p.ExpiryDate != nil && p.ExpiryDate.IsZero() {
		return fmt.Errorf("%w: expiry date is required", ErrValidation)
	}
	return nil
}

// apply validates the patch against rec and writes the changed fields into it.
func (p DocumentPatch) apply(rec *DocumentRecord) error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
		rec.Name = strings.TrimSpace(*p.Name)
	}
	if p.URL != nil {
		url := strings.TrimSpace(*p.URL)
		if err := ValidateURL(url); err != nil {
			return err
		}
		if err := validateShape(rec.HasFile(SlotPrincipal), rec.HasFile(SlotSecondary), url); err != nil {
			return err
		}
		rec.URL = url
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.ExpiryDate != nil {
		if p.ExpiryDate.IsZero() {
			return fmt.Errorf("%w: expiry date is required", ErrValidation)
		}
		rec.ExpiryDate = p.ExpiryDate.UTC()
	}
	if p.Archived != nil {
		rec.Archived = *p.Archived
	}
	return nil
}
