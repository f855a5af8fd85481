package wallet

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDocumentInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      DocumentInput
		wantErr bool
	}{
		{
			name: "principal file only",
			in:   DocumentInput{Name: "Passport", Sources: [MaxSlots]string{"/tmp/a.jpg"}},
		},
		{
			name: "url only",
			in:   DocumentInput{Name: "Portal", URL: "example.com"},
		},
		{
			name: "both slots and url",
			in:   DocumentInput{Name: "ID", URL: "https://gov.example.org/id", Sources: [MaxSlots]string{"/tmp/a.jpg", "/tmp/b.jpg"}},
		},
		{
			name:    "blank name",
			in:      DocumentInput{Name: "   ", URL: "example.com"},
			wantErr: true,
		},
		{
			name:    "no file and no url",
			in:      DocumentInput{Name: "Empty"},
			wantErr: true,
		},
		{
			name:    "secondary without principal",
			in:      DocumentInput{Name: "Back only", URL: "example.com", Sources: [MaxSlots]string{"", "/tmp/b.jpg"}},
			wantErr: true,
		},
		{
			name:    "malformed url",
			in:      DocumentInput{Name: "Bad", URL: "not a url"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{"", "example.com", "www.example.co", "http://example.com", "https://sub.example.org:8443/path?q=1"}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) error = %v", u, err)
		}
	}

	invalid := []string{"example", "http://", "ftp://example.com", "exa mple.com", "example.c"}
	for _, u := range invalid {
		if err := ValidateURL(u); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateURL(%q) error = %v, want ErrValidation", u, err)
		}
	}
}

func TestDocumentRecord_Slots(t *testing.T) {
	var r DocumentRecord

	r.setFile(SlotPrincipal, "a.jpg")
	r.setFile(SlotSecondary, "b.jpg")
	if !reflect.DeepEqual(r.Files, []string{"a.jpg", "b.jpg"}) {
		t.Fatalf("Files = %v", r.Files)
	}

	r.clearFile(SlotSecondary)
	if !reflect.DeepEqual(r.Files, []string{"a.jpg"}) {
		t.Errorf("after clearing secondary Files = %v, want [a.jpg]", r.Files)
	}

	r.clearFile(SlotPrincipal)
	if len(r.Files) != 0 {
		t.Errorf("after clearing principal Files = %v, want empty", r.Files)
	}

	if r.FileAt(Slot(5)) != "" || r.HasFile(SlotSecondary) {
		t.Error("out-of-range slots must read as empty")
	}
}

func TestDocumentRecord_Clone(t *testing.T) {
	r := DocumentRecord{ID: "x", Files: []string{"a.jpg"}}
	c := r.Clone()
	c.Files[0] = "changed.jpg"
	if r.Files[0] != "a.jpg" {
		t.Error("Clone() shares the Files slice with the original")
	}
}

func TestDocumentRecord_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		expiry time.Time
		want   bool
	}{
		{time.Time{}, false},
		{now.Add(-time.Hour), true},
		{now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		r := DocumentRecord{ExpiryDate: tt.expiry}
		if got := r.IsExpired(now); got != tt.want {
			t.Errorf("IsExpired(expiry=%v) = %v, want %v", tt.expiry, got, tt.want)
		}
	}
}

func TestDocumentPatch_Apply(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("keeps untouched fields", func(t *testing.T) {
		rec := DocumentRecord{Name: "Old", Description: "keep", Files: []string{"a.jpg"}}
		if err := (DocumentPatch{Name: str("  New  ")}).apply(&rec); err != nil {
			t.Fatalf("apply() error = %v", err)
		}
		if rec.Name != "New" || rec.Description != "keep" {
			t.Errorf("record = %+v", rec)
		}
	})

	t.Run("url cannot be cleared on a url-only document", func(t *testing.T) {
		rec := DocumentRecord{Name: "Portal", URL: "example.com"}
		err := (DocumentPatch{URL: str("")}).apply(&rec)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("apply() error = %v, want ErrValidation", err)
		}
	})

	t.Run("zero expiry rejected", func(t *testing.T) {
		zero := time.Time{}
		if err := (DocumentPatch{ExpiryDate: &zero}).validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("validate() error = %v, want ErrValidation", err)
		}
	})

	t.Run("empty patch", func(t *testing.T) {
		if !(DocumentPatch{}).IsEmpty() {
			t.Error("IsEmpty() = false for zero patch")
		}
		if (DocumentPatch{Description: str("")}).IsEmpty() {
			t.Error("IsEmpty() = true for patch with a field")
		}
	})
}
