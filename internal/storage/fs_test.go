package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/markit/internal/apperr"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	value := []byte(`[{"id":"1"}]`)
	if err := s.Write("markit-notes", value); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("markit-notes")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("value mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "markit-notes.json")); err != nil {
		t.Errorf("backing file missing: %v", err)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempStore(t)
	_, err := s.Read("absent")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestWriteReplacesWholeValue(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("k", []byte("a much longer original value"))
	if err := s.Write("k", []byte("short")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("k")
	if string(got) != "short" {
		t.Errorf("expected full replacement, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Root(), tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("del", []byte("bye"))
	if err := s.Delete("del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del"); err == nil {
		t.Error("expected error reading deleted key")
	}
}

func TestMove(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("old", []byte("data"))
	if err := s.Move("old", "new.corrupt-1"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("new.corrupt-1")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("value = %q", got)
	}
	if _, err := s.Read("old"); err == nil {
		t.Error("old key should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("b", []byte("b"))
	_ = s.Write("a", []byte("aa"))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not a key"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Key != "a" || items[0].Size != 2 || items[0].Checksum == "" {
		t.Errorf("items[0] = %+v", items[0])
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"",
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
		"a/b",
		".hidden",
	}
	for _, k := range cases {
		if _, err := s.Read(k); !errors.Is(err, apperr.ErrInvalidKey) {
			t.Errorf("Read(%q) err = %v, want ErrInvalidKey", k, err)
		}
		if err := s.Write(k, []byte("x")); !errors.Is(err, apperr.ErrInvalidKey) {
			t.Errorf("Write(%q) err = %v, want ErrInvalidKey", k, err)
		}
	}
}

func TestOwns(t *testing.T) {
	s := tempStore(t)

	owned, err := s.Owns("k")
	if err != nil || !owned {
		t.Fatalf("never-written key: owned=%v err=%v, want true", owned, err)
	}

	_ = s.Write("k", []byte("mine"))
	if owned, _ := s.Owns("k"); !owned {
		t.Error("own write should be owned")
	}

	_ = os.WriteFile(filepath.Join(s.Root(), "k.json"), []byte("theirs"), 0o644)
	if owned, _ := s.Owns("k"); owned {
		t.Error("foreign write should not be owned")
	}

	_ = os.Remove(filepath.Join(s.Root(), "k.json"))
	if owned, _ := s.Owns("k"); owned {
		t.Error("removed file should not be owned")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "markit-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
