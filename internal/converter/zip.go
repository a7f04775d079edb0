package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
	"github.com/FocuswithJustin/SheikahConverter/internal/archive"
	"github.com/FocuswithJustin/SheikahConverter/internal/logging"
)

// ConvertZip converts a zipped save directory into a new zip. The save
// directory may sit at the top of the archive or inside a single folder.
func (c *Converter) ConvertZip(ctx context.Context, zipPath, outZip string) (*Report, error) {
	tmp, err := os.MkdirTemp("", "botwc-*")
	if err != nil {
		return nil, errors.NewIO("create", "temp directory", err)
	}
	defer os.RemoveAll(tmp)

	in := filepath.Join(tmp, "in")
	if err := archive.ExtractZip(zipPath, in); err != nil {
		return nil, &errors.ValidationError{Field: "zip", Value: zipPath, Message: err.Error(), Err: err}
	}
	root, err := findSaveRoot(in)
	if err != nil {
		return nil, err
	}

	// The scratch output is always fresh, so Force and Confirm do not
	// apply. History is recorded here with the zip paths.
	sub := *c
	sub.Force = false
	sub.Confirm = nil
	sub.History = nil

	out := filepath.Join(tmp, "out")
	report, err := sub.Run(ctx, root, out)
	if err != nil {
		return nil, err
	}
	report.InputDir = zipPath
	report.OutputDir = outZip

	if err := archive.CreateZip(out, outZip); err != nil {
		return nil, errors.Wrap(err, "failed to write zip")
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	logging.InfoContext(ctx, "zip written", "path", outZip)

	if c.History != nil {
		if err := c.History.Record(ctx, report.Run()); err != nil {
			logging.WarnContext(ctx, "failed to record run", "error", err)
		}
	}
	return report, nil
}

// findSaveRoot returns dir if it holds option.sav, otherwise the single
// visible subdirectory that does.
func findSaveRoot(dir string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, savecodec.OptionName)); err == nil {
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.NewIO("read", dir, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") && !strings.HasPrefix(e.Name(), "__") {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 {
		sub := filepath.Join(dir, dirs[0])
		if _, err := os.Stat(filepath.Join(sub, savecodec.OptionName)); err == nil {
			return sub, nil
		}
	}
	return "", errors.NewNotFound(savecodec.OptionName, "zip archive")
}
