package index

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/logging"
)

func newStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := NewStore("sha3-512", opts)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestNewStore(t *testing.T) {
	s := newStore(t, Options{})
	if s.FileName() != "integrity-utility.index.SHA3-512.json" {
		t.Errorf("FileName() = %s", s.FileName())
	}
	if _, err := NewStore("nope", Options{}); !errors.Is(err, digest.ErrUnsupportedAlgorithm) {
		t.Errorf("NewStore(nope) error = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestIsSidecar(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"integrity-utility.index.json", true},
		{"integrity-utility.index.SHA-256.json", true},
		{"integrity-utility.index.BLAKE3.json", true},
		{"integrity-utility.index.SHA-256.json.tmp", true},
		{"integrity-utility.index.txt", false},
		{"index.json", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := IsSidecar(tt.name); got != tt.want {
			t.Errorf("IsSidecar(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, Options{})
	want := Map{"a.txt": "ab12", "sub": "", "b.bin": "ff00"}

	if err := s.Save(dir, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(dir, s.FileName()+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestStoreSaveEmpty(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, Options{})
	if err := s.Save(dir, nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, s.FileName()))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "{}" {
		t.Errorf("empty index = %q, want {}", data)
	}
}

func TestStoreLoad(t *testing.T) {
	t.Run("MissingCallsNotFound", func(t *testing.T) {
		dir := t.TempDir()
		s := newStore(t, Options{})
		var notified []string
		m, err := s.Load(context.Background(), dir, func(d string) { notified = append(notified, d) })
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(m) != 0 || m == nil {
			t.Errorf("Load() = %v, want empty non-nil map", m)
		}
		if len(notified) != 1 || notified[0] != dir {
			t.Errorf("notFound calls = %v", notified)
		}
	})

	t.Run("MalformedWarnsAndReturnsEmpty", func(t *testing.T) {
		dir := t.TempDir()
		var buf bytes.Buffer
		s := newStore(t, Options{Logger: logging.NewWriterLogger(&buf, logging.FormatText, logging.InfoLevel)})
		if err := os.WriteFile(filepath.Join(dir, s.FileName()), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		m, err := s.Load(context.Background(), dir, func(string) { t.Error("notFound should not be called") })
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(m) != 0 {
			t.Errorf("Load() = %v, want empty", m)
		}
		if !strings.Contains(buf.String(), "[WARN] malformed index") {
			t.Errorf("warning not logged: %q", buf.String())
		}
	})

	t.Run("NullDocument", func(t *testing.T) {
		dir := t.TempDir()
		s := newStore(t, Options{})
		if err := os.WriteFile(filepath.Join(dir, s.FileName()), []byte("null"), 0644); err != nil {
			t.Fatal(err)
		}
		m, err := s.Load(context.Background(), dir, nil)
		if err != nil || m == nil {
			t.Errorf("Load() = %v, %v; want empty map", m, err)
		}
	})

	t.Run("UnreadableIsFatal", func(t *testing.T) {
		dir := t.TempDir()
		s := newStore(t, Options{})
		// a directory in place of the sidecar cannot be read as a file
		if err := os.Mkdir(filepath.Join(dir, s.FileName()), 0755); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Load(context.Background(), dir, nil); !errors.Is(err, ErrIndexRead) {
			t.Errorf("Load() error = %v, want ErrIndexRead", err)
		}
	})

	t.Run("LegacyFallback", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, LegacyFileName), []byte(`{"old.txt":"aa"}`), 0644); err != nil {
			t.Fatal(err)
		}

		m, err := newStore(t, Options{Legacy: true}).Load(context.Background(), dir, nil)
		if err != nil || m["old.txt"] != "aa" {
			t.Errorf("legacy Load() = %v, %v", m, err)
		}

		m, err = newStore(t, Options{}).Load(context.Background(), dir, nil)
		if err != nil || len(m) != 0 {
			t.Errorf("Load() without legacy = %v, %v; want empty", m, err)
		}
	})
}

func TestStoreTree(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "a/b", "c"} {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0755); err != nil {
			t.Fatal(err)
		}
	}
	s := newStore(t, Options{})

	want := Tree{
		"":    {"a": "", "c": "", "top.txt": "01"},
		"a":   {"b": ""},
		"a/b": {"deep.txt": "02"},
		"c":   {},
	}

	saved, err := s.SaveTree(context.Background(), root, want)
	if err != nil || saved != 4 {
		t.Fatalf("SaveTree() = %d, %v", saved, err)
	}

	var mu sync.Mutex
	var missing []string
	got, err := s.LoadTree(context.Background(), root, []string{"", "a", "a/b", "c", "gone"}, 4, func(d string) {
		mu.Lock()
		missing = append(missing, d)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("LoadTree() error = %v", err)
	}
	if len(missing) != 1 || filepath.Base(missing[0]) != "gone" {
		t.Errorf("missing = %v, want [gone]", missing)
	}
	delete(got, "gone")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadTree() = %v, want %v", got, want)
	}
}

func TestSaveTreeContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	s := newStore(t, Options{})

	saved, err := s.SaveTree(context.Background(), root, Tree{
		"":        {"x": "01"},
		"missing": {"y": "02"},
	})
	if err == nil {
		t.Error("SaveTree() should report the directory that could not be saved")
	}
	if saved != 1 {
		t.Errorf("saved = %d, want 1", saved)
	}
	if _, err := os.Stat(filepath.Join(root, s.FileName())); err != nil {
		t.Errorf("root index not saved: %v", err)
	}
}

func TestTreeCloneIsDeep(t *testing.T) {
	orig := Tree{"": {"a": "1"}}
	c := orig.Clone()
	c[""]["a"] = "2"
	delete(c, "")
	if orig[""]["a"] != "1" {
		t.Error("Clone() shares maps with the original")
	}
	if orig.Len() != 1 {
		t.Errorf("Len() = %d, want 1", orig.Len())
	}
}
