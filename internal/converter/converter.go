// Package converter converts a whole save directory from one console's
// layout to the other's. It scans the input, checks that every save file
// comes from the same platform, converts the files in parallel and copies
// the screenshots and picture book images next to them.
package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/SheikahConverter/core/cas"
	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
	"github.com/FocuswithJustin/SheikahConverter/internal/archive"
	"github.com/FocuswithJustin/SheikahConverter/internal/fileutil"
	"github.com/FocuswithJustin/SheikahConverter/internal/history"
	"github.com/FocuswithJustin/SheikahConverter/internal/logging"
	"github.com/FocuswithJustin/SheikahConverter/internal/savedir"
	"github.com/FocuswithJustin/SheikahConverter/internal/validation"
	"github.com/FocuswithJustin/SheikahConverter/internal/workerpool"
)

// ErrAborted is returned when the user declines to replace the output
// directory.
var ErrAborted = errors.New("conversion aborted")

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) (bool, error) {
	return f(prompt)
}

// Converter converts save directories. The zero value converts with
// DefaultWorkers goroutines and refuses to touch a non-empty output.
type Converter struct {
	// Workers bounds the number of files converted at once.
	Workers int
	// Force allows replacing an existing, non-empty output directory.
	Force bool
	// Confirm is asked before a forced replacement. Nil means yes.
	Confirm Confirmer
	// Backup, when set, is a directory that receives a tar.xz of the
	// input before anything is written.
	Backup string
	// History, when set, records every successful run.
	History *history.Store
	// Now defaults to time.Now.
	Now func() time.Time
}

// Report describes a finished run.
type Report struct {
	RunID     string
	InputDir  string
	OutputDir string
	Source    savecodec.Platform
	Target    savecodec.Platform
	Version   string
	Files     []history.FileEntry
	Images    int
	Backup    string // input backup, if one was written
	StartedAt time.Time
	Duration  time.Duration
}

// Run returns the history record of r.
func (r *Report) Run() *history.Run {
	return &history.Run{
		ID:        r.RunID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		InputDir:  r.InputDir,
		OutputDir: r.OutputDir,
		Source:    r.Source,
		Target:    r.Target,
		Version:   r.Version,
		Images:    r.Images,
		Files:     r.Files,
	}
}

// Bytes returns the total size of the converted save files.
func (r *Report) Bytes() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Output.Size
	}
	return n
}

func (c *Converter) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Prepare makes outputDir ready to receive a conversion. A missing
// directory is created and an empty one is reused. Anything else needs
// Force, and with Force the Confirmer gets the last word.
func (c *Converter) Prepare(outputDir string) error {
	state, err := savedir.InspectOutput(outputDir)
	if err != nil {
		return err
	}

	switch state {
	case savedir.OutputMissing:
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return errors.NewIO("create", outputDir, err)
		}
		return nil
	case savedir.OutputEmpty:
		return nil
	}

	if !c.Force {
		return errors.NewPermission("overwrite", outputDir,
			fmt.Sprintf("output is %s, use --force to replace it", state))
	}
	if c.Confirm != nil {
		ok, err := c.Confirm.Confirm(fmt.Sprintf("Remove %s?", outputDir))
		if err != nil {
			return errors.Wrap(err, "failed to confirm")
		}
		if !ok {
			return ErrAborted
		}
	}

	logging.Warn("removing output", "path", outputDir, "state", state.String())
	if err := os.RemoveAll(outputDir); err != nil {
		return errors.NewIO("remove", outputDir, err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.NewIO("create", outputDir, err)
	}
	return nil
}

// saveFile is a loaded and detected .sav file.
type saveFile struct {
	rel    string
	kind   savecodec.FileKind
	header savecodec.Header
	data   []byte
}

type converted struct {
	entry history.FileEntry
	err   error
}

// Run converts the save directory inputDir into outputDir.
func (c *Converter) Run(ctx context.Context, inputDir, outputDir string) (*Report, error) {
	started := c.now()
	report := &Report{
		RunID:     uuid.NewString(),
		InputDir:  inputDir,
		OutputDir: outputDir,
		StartedAt: started,
	}
	ctx = logging.WithRunID(ctx, report.RunID)

	if err := checkDistinct(inputDir, outputDir); err != nil {
		return nil, err
	}

	layout, err := savedir.Scan(inputDir)
	if err != nil {
		return nil, err
	}

	files, err := loadSaves(ctx, layout)
	if err != nil {
		return nil, err
	}
	report.Source = files[0].header.Platform
	report.Target = report.Source.Target()
	report.Version = files[0].header.Version

	if c.Backup != "" {
		if report.Backup, err = archive.Backup(inputDir, c.Backup, started); err != nil {
			return nil, errors.Wrap(err, "failed to back up input")
		}
		logging.InfoContext(ctx, "input backed up", "path", report.Backup)
	}

	if err := c.Prepare(outputDir); err != nil {
		return nil, err
	}

	results := workerpool.Map(c.Workers, files, func(f saveFile) converted {
		return convertOne(ctx, f, outputDir)
	})
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		report.Files = append(report.Files, r.entry)
	}

	if report.Images, err = copyImages(ctx, layout, outputDir); err != nil {
		return nil, err
	}

	report.Duration = c.now().Sub(started)
	logging.RunFinished(ctx, savecodec.PrettyPlatform(report.Source), savecodec.PrettyPlatform(report.Target),
		len(report.Files), report.Images, report.Duration)

	if c.History != nil {
		if err := c.History.Record(ctx, report.Run()); err != nil {
			logging.WarnContext(ctx, "failed to record run", "error", err)
		}
	}
	return report, nil
}

// checkDistinct refuses an output directory that is the input or holds
// it, since preparing the output may remove it.
func checkDistinct(inputDir, outputDir string) error {
	in, err := filepath.Abs(inputDir)
	if err != nil {
		return errors.NewIO("resolve", inputDir, err)
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return errors.NewIO("resolve", outputDir, err)
	}
	rel, err := filepath.Rel(out, in)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &errors.ValidationError{
			Field:   "output",
			Value:   outputDir,
			Message: "output directory must not contain the input",
		}
	}
	return nil
}

// loadSaves reads and detects every save file of layout. All files must
// come from the same platform.
func loadSaves(ctx context.Context, layout *savedir.Layout) ([]saveFile, error) {
	var files []saveFile
	for _, rel := range layout.SaveFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(layout.Root, rel)
		data, err := readSave(path)
		if err != nil {
			return nil, err
		}
		h, err := savecodec.Detect(data)
		if err != nil {
			var fe *errors.FormatError
			if errors.As(err, &fe) {
				fe.Path = path
			}
			return nil, err
		}

		kind := savecodec.KindFromName(rel)
		logging.SaveDetected(ctx, rel, kind.String(), savecodec.PrettyPlatform(h.Platform), h.Version)

		if len(files) > 0 {
			first := files[0].header
			if h.Platform != first.Platform {
				return nil, &errors.PlatformMismatchError{
					Path:     path,
					Expected: savecodec.PrettyPlatform(first.Platform),
					Got:      savecodec.PrettyPlatform(h.Platform),
				}
			}
			if h.Version != first.Version {
				logging.WarnContext(ctx, "save files have different versions",
					"path", rel, "version", h.Version, "expected", first.Version)
			}
		}
		files = append(files, saveFile{rel: rel, kind: kind, header: h, data: data})
	}
	return files, nil
}

func readSave(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIO("stat", path, err)
	}
	if err := validation.ValidateSaveSize(info.Size()); err != nil {
		return nil, &errors.ValidationError{Field: "size", Value: path, Message: err.Error(), Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return data, nil
}

func convertOne(ctx context.Context, f saveFile, outputDir string) converted {
	if err := ctx.Err(); err != nil {
		return converted{err: err}
	}

	start := time.Now()
	out, err := savecodec.ConvertFile(f.kind, f.data)
	if err != nil {
		return converted{err: errors.Wrapf(err, "failed to convert %s", f.rel)}
	}

	dst := filepath.Join(outputDir, f.rel)
	if err := fileutil.WriteFileAtomic(dst, out, 0644); err != nil {
		return converted{err: errors.NewIO("write", dst, err)}
	}
	logging.FileConverted(ctx, f.rel, len(out), time.Since(start), "kind", f.kind.String())

	return converted{entry: history.FileEntry{
		Path:   filepath.ToSlash(f.rel),
		Kind:   f.kind.String(),
		Input:  cas.Hash(f.data),
		Output: cas.Hash(out),
	}}
}

// copyImages copies the caption screenshots, the picture book and the
// album unchanged. Image directories are created even when empty.
func copyImages(ctx context.Context, layout *savedir.Layout, outputDir string) (int, error) {
	for _, dir := range layout.ImageDirs() {
		if err := os.MkdirAll(filepath.Join(outputDir, dir), 0755); err != nil {
			return 0, errors.NewIO("create", dir, err)
		}
	}

	images := layout.Images()
	for _, rel := range images {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := fileutil.CopyFile(filepath.Join(layout.Root, rel), filepath.Join(outputDir, rel)); err != nil {
			return 0, errors.NewIO("copy", rel, err)
		}
	}
	return len(images), nil
}
