package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(file, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "idx")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "seg.bin"), make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}

	total, err := DiskUsageBytes(file, sub, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if total != 150 {
		t.Errorf("total=%d, want 150", total)
	}
}

func TestDiskUsageIncludesWALSidecars(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "records.db")
	for name, size := range map[string]int{db: 10, db + "-wal": 20, db + "-shm": 5} {
		if err := os.WriteFile(name, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
	}
	total, err := DiskUsageBytes(db)
	if err != nil {
		t.Fatal(err)
	}
	if total != 35 {
		t.Errorf("total=%d, want 35", total)
	}
}
