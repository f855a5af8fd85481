package database

import (
	"path/filepath"
	"testing"
	"time"

	"docwallet/internal/model"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSQLiteDatabase_Operations(t *testing.T) {
	t.Run("create assigns increasing ids", func(t *testing.T) {
		db := newTestDB(t)

		first, err := db.CreateOperation("CreateDocument", "name=Passport", testTime)
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		second, err := db.CreateOperation("DeleteDocument", "id=abc", testTime.Add(time.Minute))
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}

		if first.ID == 0 || second.ID <= first.ID {
			t.Errorf("ids = %d, %d, want increasing non-zero", first.ID, second.ID)
		}
		if first.Status != "running" {
			t.Errorf("Status = %q, want running", first.Status)
		}
	})

	t.Run("finish and list newest first", func(t *testing.T) {
		db := newTestDB(t)

		op1, _ := db.CreateOperation("CreateDocument", "", testTime)
		op2, _ := db.CreateOperation("CreateBackup", "encrypt=false", testTime.Add(time.Minute))

		if err := db.FinishOperation(op1.ID, "success", testTime.Add(2*time.Second)); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, err := db.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("ListOperations() returned %d, want 2", len(ops))
		}
		if ops[0].ID != op2.ID || ops[1].ID != op1.ID {
			t.Errorf("order = %d, %d, want %d, %d", ops[0].ID, ops[1].ID, op2.ID, op1.ID)
		}
		if ops[0].FinishedAt.Valid {
			t.Error("unfinished operation has FinishedAt set")
		}
		got := ops[1]
		if got.Status != "success" || !got.FinishedAt.Valid {
			t.Errorf("finished operation = %+v", got)
		}
		if !got.FinishedAt.Time.Equal(testTime.Add(2 * time.Second)) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt.Time, testTime.Add(2*time.Second))
		}
		if !got.StartedAt.Equal(testTime) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, testTime)
		}
	})

	t.Run("list respects limit", func(t *testing.T) {
		db := newTestDB(t)
		for i := 0; i < 5; i++ {
			if _, err := db.CreateOperation("CreateDocument", "", testTime); err != nil {
				t.Fatalf("CreateOperation() error = %v", err)
			}
		}
		ops, err := db.ListOperations(3)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 3 {
			t.Errorf("ListOperations(3) returned %d", len(ops))
		}
	})

	t.Run("finish unknown id fails", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.FinishOperation(42, "success", testTime); err == nil {
			t.Error("FinishOperation() expected error for unknown id")
		}
	})
}

func TestSQLiteDatabase_Backups(t *testing.T) {
	newBackup := func(id, name string, created time.Time) *model.Backup {
		return &model.Backup{
			ID:        id,
			Name:      name,
			Vault:     "local",
			Size:      1234,
			Checksum:  "abc123",
			Encrypted: true,
			Documents: 3,
			CreatedAt: created,
		}
	}

	t.Run("find returns nil when missing", func(t *testing.T) {
		db := newTestDB(t)
		b, err := db.FindBackupByName("backup_20240115T103000Z.zip")
		if err != nil {
			t.Fatalf("FindBackupByName() error = %v", err)
		}
		if b != nil {
			t.Errorf("FindBackupByName() = %+v, want nil", b)
		}
	})

	t.Run("create and find", func(t *testing.T) {
		db := newTestDB(t)
		want := newBackup("id-1", "backup_20240115T103000Z.zip.age", testTime)
		if err := db.CreateBackup(want); err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}

		got, err := db.FindBackupByName(want.Name)
		if err != nil {
			t.Fatalf("FindBackupByName() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindBackupByName() = nil")
		}
		if got.ID != want.ID || got.Vault != want.Vault || got.Size != want.Size ||
			got.Checksum != want.Checksum || !got.Encrypted || got.Documents != want.Documents {
			t.Errorf("FindBackupByName() = %+v, want %+v", got, want)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.CreateBackup(newBackup("id-1", "a.zip", testTime)); err != nil {
			t.Fatalf("CreateBackup() error = %v", err)
		}
		if err := db.CreateBackup(newBackup("id-1", "b.zip", testTime)); err == nil {
			t.Error("CreateBackup() expected error for duplicate id")
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		db := newTestDB(t)
		for i, name := range []string{"old.zip", "mid.zip", "new.zip"} {
			b := newBackup("id-"+name, name, testTime.Add(time.Duration(i)*time.Hour))
			if err := db.CreateBackup(b); err != nil {
				t.Fatalf("CreateBackup() error = %v", err)
			}
		}

		got, err := db.ListBackups(2)
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(got) != 2 || got[0].Name != "new.zip" || got[1].Name != "mid.zip" {
			t.Errorf("ListBackups(2) = %v", got)
		}
	})
}

func TestSQLiteDatabase_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if _, err := db.CreateOperation("CreateDocument", "", testTime); err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
	ops, err := reopened.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("ListOperations() returned %d after reopen, want 1", len(ops))
	}
}

func TestSQLiteDatabase_CheckMigrations_Unmigrated(t *testing.T) {
	conn, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	db := NewSQLiteDatabaseFromDB(conn)
	defer db.Close()

	if err := db.CheckMigrations(); err == nil {
		t.Error("CheckMigrations() expected error for unmigrated database")
	}
}
