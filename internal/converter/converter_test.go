package converter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/SheikahConverter/core/cas"
	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
	"github.com/FocuswithJustin/SheikahConverter/internal/archive"
	"github.com/FocuswithJustin/SheikahConverter/internal/history"
	"github.com/FocuswithJustin/SheikahConverter/internal/testsave"
)

func checkOutput(t *testing.T, d *testsave.Dir, out string) {
	t.Helper()
	for rel, want := range d.Want {
		got, err := os.ReadFile(filepath.Join(out, rel))
		if err != nil {
			t.Errorf("missing %s: %v", rel, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s differs from the expected conversion", rel)
		}
	}
	for _, rel := range d.Images {
		want, err := os.ReadFile(filepath.Join(d.Root, rel))
		if err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(filepath.Join(out, rel))
		if err != nil {
			t.Errorf("missing image %s: %v", rel, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("image %s was modified", rel)
		}
	}
}

func TestRun(t *testing.T) {
	for _, p := range []savecodec.Platform{savecodec.PlatformWiiU, savecodec.PlatformSwitch} {
		t.Run(p.String(), func(t *testing.T) {
			d := testsave.WriteDir(t, filepath.Join(t.TempDir(), "in"), p, 3)
			out := filepath.Join(t.TempDir(), "out")

			c := &Converter{Workers: 2}
			report, err := c.Run(context.Background(), d.Root, out)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			checkOutput(t, d, out)

			if report.Source != p || report.Target != p.Target() {
				t.Errorf("platforms = %v -> %v", report.Source, report.Target)
			}
			if report.Version != "v1.5" {
				t.Errorf("Version = %q", report.Version)
			}
			if len(report.Files) != len(d.Want) {
				t.Errorf("len(Files) = %d, want %d", len(report.Files), len(d.Want))
			}
			if report.Images != len(d.Images) {
				t.Errorf("Images = %d, want %d", report.Images, len(d.Images))
			}
			if report.RunID == "" {
				t.Error("RunID is empty")
			}
			for _, f := range report.Files {
				want := d.Want[filepath.FromSlash(f.Path)]
				if err := cas.Verify(cas.Hash(want), f.Output); err != nil {
					t.Errorf("%s: %v", f.Path, err)
				}
			}
			if report.Bytes() == 0 {
				t.Error("Bytes() = 0")
			}
		})
	}
}

func TestRun_RoundTrip(t *testing.T) {
	d := testsave.WriteDir(t, filepath.Join(t.TempDir(), "wiiu"), savecodec.PlatformWiiU, 2)
	mid := filepath.Join(t.TempDir(), "switch")
	back := filepath.Join(t.TempDir(), "wiiu-again")

	c := &Converter{}
	if _, err := c.Run(context.Background(), d.Root, mid); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := c.Run(context.Background(), mid, back); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	for rel := range d.Want {
		orig, _ := os.ReadFile(filepath.Join(d.Root, rel))
		got, err := os.ReadFile(filepath.Join(back, rel))
		if err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
		if !bytes.Equal(got, orig) {
			t.Errorf("%s did not survive a round trip", rel)
		}
	}
}

func TestRun_MixedPlatforms(t *testing.T) {
	d := testsave.WriteDir(t, filepath.Join(t.TempDir(), "in"), savecodec.PlatformWiiU, 2)
	sw := testsave.Caption(testsave.Version15, 1).Bytes(savecodec.PlatformSwitch)
	if err := os.WriteFile(filepath.Join(d.Root, "1", savecodec.CaptionName), sw, 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "out")

	_, err := (&Converter{}).Run(context.Background(), d.Root, out)
	if !errors.Is(err, errors.ErrPlatformMismatch) {
		t.Fatalf("Run() error = %v, want ErrPlatformMismatch", err)
	}
	var pm *errors.PlatformMismatchError
	if !errors.As(err, &pm) || pm.Expected != "Wii U" || pm.Got != "Switch" {
		t.Errorf("error = %#v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output should not be created for rejected input")
	}
}

func TestRun_Unrecognized(t *testing.T) {
	d := testsave.WriteDir(t, filepath.Join(t.TempDir(), "in"), savecodec.PlatformSwitch, 1)
	opt := filepath.Join(d.Root, savecodec.OptionName)
	if err := os.WriteFile(opt, []byte("not a save"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := (&Converter{}).Run(context.Background(), d.Root, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, errors.ErrUnrecognizedFormat) {
		t.Fatalf("Run() error = %v, want ErrUnrecognizedFormat", err)
	}
	var fe *errors.FormatError
	if !errors.As(err, &fe) || fe.Path != opt {
		t.Errorf("error = %#v, want path %s", err, opt)
	}
}

func TestRun_MissingInput(t *testing.T) {
	_, err := (&Converter{}).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Run() error = %v, want ErrNotFound", err)
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "save directory" {
		t.Errorf("Run() error = %v, want NotFoundError for the save directory", err)
	}
}

func TestRun_OutputContainsInput(t *testing.T) {
	parent := t.TempDir()
	d := testsave.WriteDir(t, filepath.Join(parent, "in"), savecodec.PlatformWiiU, 1)

	for _, out := range []string{d.Root, parent} {
		_, err := (&Converter{Force: true}).Run(context.Background(), d.Root, out)
		var ve *errors.ValidationError
		if !errors.As(err, &ve) || ve.Field != "output" {
			t.Errorf("Run(%s) error = %v, want output ValidationError", out, err)
		}
	}
	if _, err := os.Stat(filepath.Join(d.Root, savecodec.OptionName)); err != nil {
		t.Error("input was touched")
	}
}

func TestRun_Cancelled(t *testing.T) {
	d := testsave.WriteDir(t, filepath.Join(t.TempDir(), "in"), savecodec.PlatformWiiU, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Converter{}).Run(ctx, d.Root, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_BackupAndHistory(t *testing.T) {
	d := testsave.WriteDir(t, filepath.Join(t.TempDir(), "wiiu"), savecodec.PlatformWiiU, 1)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &Converter{
		Backup:  filepath.Join(t.TempDir(), "backups"),
		History: store,
		Now:     func() time.Time { return now },
	}
	report, err := c.Run(context.Background(), d.Root, filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if filepath.Base(report.Backup) != "wiiu-20240102T030405Z.tar.xz" {
		t.Errorf("Backup = %s", report.Backup)
	}
	restored := t.TempDir()
	if _, err := archive.Restore(report.Backup, restored); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(restored, savecodec.OptionName))
	if err != nil {
		t.Fatalf("backup is missing option.sav: %v", err)
	}
	orig, _ := os.ReadFile(filepath.Join(d.Root, savecodec.OptionName))
	if !bytes.Equal(data, orig) {
		t.Error("backup holds a different option.sav")
	}

	run, err := store.Get(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if len(run.Files) != len(report.Files) || !run.StartedAt.Equal(now) {
		t.Errorf("recorded run = %+v", run)
	}

	checks, err := history.Verify(run)
	if err != nil {
		t.Fatalf("history.Verify() error = %v", err)
	}
	if n := history.Failed(checks); n != 0 || len(checks) != len(report.Files) {
		t.Errorf("history.Verify() = %+v", checks)
	}
}

func TestPrepare(t *testing.T) {
	nonEmpty := func(t *testing.T) string {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "old.sav"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		return dir
	}
	yes := ConfirmFunc(func(string) (bool, error) { return true, nil })
	no := ConfirmFunc(func(string) (bool, error) { return false, nil })

	tests := []struct {
		name    string
		dir     func(t *testing.T) string
		c       Converter
		wantErr error
	}{
		{
			name: "missing is created",
			dir:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "a", "b") },
		},
		{
			name: "empty is reused",
			dir:  func(t *testing.T) string { return t.TempDir() },
		},
		{
			name:    "non-empty without force",
			dir:     nonEmpty,
			wantErr: errors.ErrUnauthorized,
		},
		{
			name:    "non-empty with force and no confirmer",
			dir:     nonEmpty,
			c:       Converter{Force: true},
		},
		{
			name:    "non-empty with force confirmed",
			dir:     nonEmpty,
			c:       Converter{Force: true, Confirm: yes},
		},
		{
			name:    "non-empty with force declined",
			dir:     nonEmpty,
			c:       Converter{Force: true, Confirm: no},
			wantErr: ErrAborted,
		},
		{
			name: "file with force",
			dir: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "out")
				if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
					t.Fatal(err)
				}
				return path
			},
			c:       Converter{Force: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.dir(t)
			err := tt.c.Prepare(dir)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Prepare() error = %v, want %v", err, tt.wantErr)
				}
				if _, err := os.Stat(filepath.Join(dir, "old.sav")); err != nil {
					t.Error("existing output was removed")
				}
				return
			}
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("output is not a directory: %v", err)
			}
			if len(entries) != 0 {
				t.Errorf("output has %d entries, want 0", len(entries))
			}
		})
	}
}

func TestPrepare_ConfirmPrompt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	var prompt string
	c := Converter{Force: true, Confirm: ConfirmFunc(func(p string) (bool, error) {
		prompt = p
		return false, nil
	})}
	if err := c.Prepare(dir); !errors.Is(err, ErrAborted) {
		t.Fatalf("Prepare() error = %v", err)
	}
	if prompt != "Remove "+dir+"?" {
		t.Errorf("prompt = %q", prompt)
	}
}
