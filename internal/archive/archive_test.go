package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/SheikahConverter/internal/validation"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

var saveTree = map[string]string{
	"option.sav":               "\x00\x00\x47\x1boption",
	"0/game_data.sav":          "\x00\x00\x47\x1bgame",
	"0/caption.sav":            "\x00\x00\x47\x1bcapt",
	"0/caption.jpg":            "jpeg",
	"tracker/trackblock00.sav": "\x00\x00\x47\x1btrak",
}

func TestCreateTarXz_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "wiiu")
	writeTree(t, src, saveTree)

	dst := filepath.Join(t.TempDir(), "backups", "wiiu.tar.xz")
	if err := CreateTarXz(src, dst, "wiiu"); err != nil {
		t.Fatalf("CreateTarXz() error = %v", err)
	}

	entries, err := List(dst)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != len(saveTree) {
		t.Fatalf("List() returned %d entries, want %d", len(entries), len(saveTree))
	}
	for _, e := range entries {
		rel := strings.TrimPrefix(e.Name, "wiiu/")
		content, ok := saveTree[rel]
		if !ok {
			t.Errorf("unexpected entry %s", e.Name)
			continue
		}
		if e.Size != int64(len(content)) {
			t.Errorf("%s size = %d, want %d", e.Name, e.Size, len(content))
		}
	}

	out := filepath.Join(t.TempDir(), "restored")
	restored, err := Restore(dst, out)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(restored) != len(saveTree) {
		t.Errorf("Restore() restored %d files, want %d", len(restored), len(saveTree))
	}
	for name, content := range saveTree {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}
}

func TestBackup(t *testing.T) {
	src := filepath.Join(t.TempDir(), "switch")
	writeTree(t, src, saveTree)
	backupDir := t.TempDir()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	path, err := Backup(src, backupDir, now)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if want := filepath.Join(backupDir, "switch-20240102T030405Z.tar.xz"); path != want {
		t.Errorf("Backup() = %q, want %q", path, want)
	}
	out := t.TempDir()
	if _, err := Restore(path, out); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "option.sav")); err != nil {
		t.Errorf("backup missing option.sav: %v", err)
	}
}

type tarEntry struct {
	name string
	body string
	dir  bool
}

func writeTarGz(t *testing.T, entries ...tarEntry) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		h := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			h.Typeflag, h.Mode, h.Size = tar.TypeDir, 0755, 0
		}
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "saves.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTarGz_ListAndRestore(t *testing.T) {
	path := writeTarGz(t,
		tarEntry{name: "wiiu/", dir: true},
		tarEntry{name: "wiiu/0/", dir: true},
		tarEntry{name: "wiiu/0/game_data.sav", body: "game"},
		tarEntry{name: "wiiu/option.sav", body: "opt"},
	)

	entries, err := List(path)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "wiiu/0/game_data.sav" || entries[0].Size != 4 {
		t.Errorf("List() = %+v", entries)
	}

	out := t.TempDir()
	restored, err := Restore(path, out)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(restored) != 2 || restored[0] != "0/game_data.sav" || restored[1] != "option.sav" {
		t.Errorf("Restore() = %v", restored)
	}
	if got, err := os.ReadFile(filepath.Join(out, "option.sav")); err != nil || string(got) != "opt" {
		t.Errorf("option.sav = %q, %v", got, err)
	}
}

func TestRestore_RejectsBadNames(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		wantErr error
	}{
		{"traversal", "wiiu/../../escape.sav", validation.ErrPathTraversal},
		{"long element", "wiiu/" + strings.Repeat("a", validation.MaxFilenameLength+1) + "/option.sav", validation.ErrFilenameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := t.TempDir()
			_, err := Restore(writeTarGz(t, tarEntry{name: tt.entry, body: "x"}), dst)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Restore() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "escape.sav")); err == nil {
				t.Error("file escaped the destination directory")
			}
		})
	}
}

func TestNewReader_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.rar")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(path); err == nil {
		t.Error("NewReader() should reject unknown extensions")
	}
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.tar.xz")); err == nil {
		t.Error("NewReader() should fail for a missing file")
	}
}

func TestZip_RoundTrip(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, saveTree)

	zipPath := filepath.Join(t.TempDir(), "save.zip")
	if err := CreateZip(src, zipPath); err != nil {
		t.Fatalf("CreateZip() error = %v", err)
	}

	dst := t.TempDir()
	if err := ExtractZip(zipPath, dst); err != nil {
		t.Fatalf("ExtractZip() error = %v", err)
	}

	for name, content := range saveTree {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}
}

func writeRawZip(t *testing.T, names ...string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte("payload")); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "evil.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractZip_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"../escape.sav", "0/../../escape.sav", "/abs/option.sav"} {
		t.Run(name, func(t *testing.T) {
			dst := t.TempDir()
			err := ExtractZip(writeRawZip(t, "option.sav", name), dst)
			if !errors.Is(err, validation.ErrPathTraversal) {
				t.Fatalf("ExtractZip() error = %v, want ErrPathTraversal", err)
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "escape.sav")); err == nil {
				t.Error("file escaped the destination directory")
			}
		})
	}
}

func TestExtractZip_RejectsLongNames(t *testing.T) {
	long := strings.Repeat("a", validation.MaxFilenameLength+1)
	for _, name := range []string{long + ".sav", long + "/option.sav"} {
		t.Run(name[len(name)-10:], func(t *testing.T) {
			err := ExtractZip(writeRawZip(t, "option.sav", name), t.TempDir())
			if !errors.Is(err, validation.ErrFilenameTooLong) {
				t.Fatalf("ExtractZip() error = %v, want ErrFilenameTooLong", err)
			}
		})
	}
}

func TestExtractZip_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ExtractZip(path, t.TempDir()); err == nil {
		t.Error("ExtractZip() should fail for invalid zip data")
	}
}
