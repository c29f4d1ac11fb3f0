package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	if m.GetString("missing") != "" {
		t.Error("missing key is not empty")
	}
	if err := m.SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
	if m.GetString("k") != "v" {
		t.Errorf("GetString = %q", m.GetString("k"))
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Keys()) != 0 {
		t.Fatalf("new store has keys %v", s.Keys())
	}
	if err := s.SetString("/desktop/sugar/collaboration/twitter_access_token", "at"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetString("b", "two words"); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("settings file mode = %o, want 600", perm)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.GetString("/desktop/sugar/collaboration/twitter_access_token"); got != "at" {
		t.Errorf("reopened value = %q", got)
	}
	if got := reopened.GetString("b"); got != "two words" {
		t.Errorf("reopened value = %q", got)
	}
	if keys := reopened.Keys(); len(keys) != 2 || keys[0] != "/desktop/sugar/collaboration/twitter_access_token" {
		t.Errorf("Keys() = %v", keys)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("- not\n- a map\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Error("OpenFile accepted a YAML list")
	}
}
