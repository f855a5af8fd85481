package vault

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestMemoryVault_PutAndGetArchive(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		archive string
		content string
	}{
		{name: "store and retrieve archive", archive: "a.zip", content: "hello world"},
		{name: "store empty archive", archive: "empty.zip", content: ""},
		{name: "store large archive", archive: "large.zip", content: strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := vault.PutArchive(tt.archive, strings.NewReader(tt.content), int64(len(tt.content))); err != nil {
				t.Fatalf("PutArchive() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetArchive(tt.archive, &buf); err != nil {
				t.Fatalf("GetArchive() error = %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetArchive() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_PutArchive_SizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	err := vault.PutArchive("a.zip", strings.NewReader("hello"), 10)
	if err == nil {
		t.Fatal("PutArchive() expected error for size mismatch")
	}
	if !strings.Contains(err.Error(), "size mismatch") {
		t.Errorf("error = %v, want size mismatch", err)
	}
}

func TestMemoryVault_GetArchive_NotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	if err := vault.GetArchive("missing.zip", &buf); err == nil {
		t.Error("GetArchive() expected error for missing archive")
	}
}

func TestMemoryVault_ListArchives(t *testing.T) {
	vault := NewMemoryVault("test-vault")
	for _, name := range []string{"c.zip", "a.zip", "b.zip.age"} {
		if err := vault.PutArchive(name, strings.NewReader(name), int64(len(name))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := vault.ListArchives()
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	want := []string{"a.zip", "b.zip.age", "c.zip"}
	if len(got) != len(want) {
		t.Fatalf("ListArchives() = %v, want %v", got, want)
	}
	for i, name := range want {
		if got[i].Name != name || got[i].Size != int64(len(name)) {
			t.Errorf("ListArchives()[%d] = %+v, want %s", i, got[i], name)
		}
	}
}

func TestMemoryVault_Concurrent(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := strings.Repeat("x", i+1) + ".zip"
			if err := vault.PutArchive(name, strings.NewReader("data"), 4); err != nil {
				t.Errorf("PutArchive() error = %v", err)
			}
			if _, err := vault.ListArchives(); err != nil {
				t.Errorf("ListArchives() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := vault.ListArchives()
	if len(got) != 20 {
		t.Errorf("ListArchives() returned %d archives, want 20", len(got))
	}
}

func TestMemoryVault_ValidateSetup(t *testing.T) {
	if err := NewMemoryVault("test-vault").ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
