package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"docwallet/internal/wallet"
)

var created = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestIndex(t *testing.T) *FileIndex {
	t.Helper()
	x, err := NewFileIndex(filepath.Join(t.TempDir(), "archivos.json"))
	if err != nil {
		t.Fatalf("NewFileIndex() error = %v", err)
	}
	return x
}

func record(id string, files ...string) wallet.DocumentRecord {
	return wallet.DocumentRecord{
		ID:         id,
		Name:       "Doc " + id,
		Files:      files,
		CreatedAt:  created,
		ExpiryDate: created.AddDate(1, 0, 0),
	}
}

func TestFileIndex_Load_MissingFile(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)

	records, err := x.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Load() = %v, want empty non-nil slice", records)
	}
}

func TestFileIndex_Load_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{archivos: oops"},
		{name: "wrong shape", content: `{"archivos": {"id_archivo": "1"}}`},
		{name: "bad date", content: `{"archivos": [{"id_archivo": "1", "fecha_creacion": "15/01/2024"}]}`},
		{name: "duplicate id", content: `{"archivos": [{"id_archivo": "1", "nombre": "a"}, {"id_archivo": "1", "nombre": "b"}]}`},
		{name: "too many files", content: `{"archivos": [{"id_archivo": "1", "imagenes": ["a.jpg", "b.jpg", "c.jpg"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x := newTestIndex(t)
			if err := os.WriteFile(x.Path(), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := x.Load()
			if !errors.Is(err, wallet.ErrCorruptIndex) {
				t.Errorf("Load() error = %v, want ErrCorruptIndex", err)
			}
		})
	}
}

func TestFileIndex_Load_ExistingFormat(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)
	content := `{
  "archivos": [
    {
      "id_archivo": "6f1c",
      "nombre": "Pasaporte",
      "descripcion": "vigente",
      "url": "",
      "imagenes": ["1705314600000000000_123456.jpg", "1705314600000000001_654321.jpg"],
      "fecha_creacion": "2024-01-15T10:30:00.000Z",
      "expiryDate": "2025-01-15T10:30:00.000Z",
      "share": true
    }
  ]
}`
	if err := os.WriteFile(x.Path(), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := x.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Load() returned %d records, want 1", len(records))
	}
	r := records[0]
	if r.ID != "6f1c" || r.Name != "Pasaporte" || !r.Archived || len(r.Files) != 2 {
		t.Errorf("Load() = %+v", r)
	}
	if !r.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, created)
	}
}

func TestFileIndex_WriteLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)
	want := []wallet.DocumentRecord{
		record("a", "1.jpg", "2.jpg"),
		record("b", "3.pdf"),
		record("c"),
	}
	want[2].URL = "example.com"
	want[2].Files = []string{}

	if err := x.Write(want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := x.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	// write(load()) leaves the file unchanged
	before, _ := os.ReadFile(x.Path())
	if err := x.Write(got); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	after, _ := os.ReadFile(x.Path())
	if string(before) != string(after) {
		t.Errorf("rewriting loaded records changed the file:\n%s\n---\n%s", before, after)
	}
}

func TestFileIndex_Write_Format(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)
	rec := record("a")
	rec.Files = nil
	if err := x.Write([]wallet.DocumentRecord{rec}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(x.Path())
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"archivos": [`, `"id_archivo": "a"`, `"imagenes": []`, `"share": false`, `"fecha_creacion": "2024-01-15T10:30:00Z"`} {
		if !strings.Contains(s, want) {
			t.Errorf("index file missing %s:\n%s", want, s)
		}
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Errorf("index file should end with a newline")
	}
}

func TestFileIndex_Append(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)

	if err := x.Append(record("a", "1.jpg")); err != nil {
		t.Fatalf("Append(a) error = %v", err)
	}
	if err := x.Append(record("b")); err != nil {
		t.Fatalf("Append(b) error = %v", err)
	}

	err := x.Append(record("a"))
	if !errors.Is(err, wallet.ErrDuplicateID) {
		t.Errorf("Append(duplicate) error = %v, want ErrDuplicateID", err)
	}

	records, _ := x.Load()
	if len(records) != 2 || records[0].ID != "a" || records[1].ID != "b" {
		t.Errorf("Load() = %+v, want [a b]", records)
	}
}

func TestFileIndex_UpdateByID(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)
	if err := x.Write([]wallet.DocumentRecord{record("a", "1.jpg"), record("b")}); err != nil {
		t.Fatal(err)
	}

	got, err := x.UpdateByID("a", func(r *wallet.DocumentRecord) error {
		r.Name = "Renamed"
		r.ID = "hijack"
		r.CreatedAt = time.Time{}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}
	if got.Name != "Renamed" || got.ID != "a" || !got.CreatedAt.Equal(created) {
		t.Errorf("UpdateByID() = %+v", got)
	}

	records, _ := x.Load()
	if records[0].Name != "Renamed" || records[1].Name != "Doc b" {
		t.Errorf("stored records = %+v", records)
	}
}

func TestFileIndex_UpdateByID_Errors(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)
	if err := x.Write([]wallet.DocumentRecord{record("a", "1.jpg")}); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(x.Path())

	_, err := x.UpdateByID("missing", func(*wallet.DocumentRecord) error { return nil })
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Errorf("UpdateByID(missing) error = %v, want ErrNotFound", err)
	}

	boom := errors.New("boom")
	_, err = x.UpdateByID("a", func(r *wallet.DocumentRecord) error {
		r.Name = "half applied"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("UpdateByID() error = %v, want %v", err, boom)
	}

	after, _ := os.ReadFile(x.Path())
	if string(before) != string(after) {
		t.Error("failed update modified the index file")
	}
}

func TestFileIndex_RemoveByID(t *testing.T) {
	t.Parallel()
	x := newTestIndex(t)
	if err := x.Write([]wallet.DocumentRecord{record("a"), record("b", "2.jpg"), record("c")}); err != nil {
		t.Fatal(err)
	}

	removed, err := x.RemoveByID("b")
	if err != nil {
		t.Fatalf("RemoveByID() error = %v", err)
	}
	if removed.ID != "b" || !reflect.DeepEqual(removed.Files, []string{"2.jpg"}) {
		t.Errorf("RemoveByID() = %+v", removed)
	}

	records, _ := x.Load()
	if len(records) != 2 || records[0].ID != "a" || records[1].ID != "c" {
		t.Errorf("Load() = %+v, want [a c]", records)
	}

	if _, err := x.RemoveByID("b"); !errors.Is(err, wallet.ErrNotFound) {
		t.Errorf("RemoveByID(again) error = %v, want ErrNotFound", err)
	}
}

func TestFileIndex_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "archivos.json")

	const writers = 4
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		// Separate FileIndex values on the same file share the path lock.
		x, err := NewFileIndex(path)
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(w int, x *FileIndex) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				errs <- x.Append(record(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w, x)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	x, _ := NewFileIndex(path)
	records, err := x.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != writers*perWriter {
		t.Errorf("Load() returned %d records, want %d", len(records), writers*perWriter)
	}
}

func TestNewFileIndex_SharesLockForSamePath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a, _ := NewFileIndex(filepath.Join(dir, "archivos.json"))
	b, _ := NewFileIndex(filepath.Join(dir, "sub", "..", "archivos.json"))
	c, _ := NewFileIndex(filepath.Join(dir, "other.json"))

	if a.Path() != b.Path() {
		t.Errorf("paths differ: %q vs %q", a.Path(), b.Path())
	}
	if a.mu != b.mu {
		t.Error("indexes on the same file should share a lock")
	}
	if a.mu == c.mu {
		t.Error("indexes on different files should not share a lock")
	}
}
