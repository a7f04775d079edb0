package history

import (
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/SheikahConverter/core/cas"
	"github.com/FocuswithJustin/SheikahConverter/core/errors"
)

// FileCheck is the verification result of one recorded file. Err is nil
// when the file on disk still matches its recorded output digest.
type FileCheck struct {
	Path string
	Err  error
}

// Verify rehashes every converted file of run under its output directory
// and compares it with the recorded output digest. Runs whose output was
// packed into a zip cannot be verified.
func Verify(run *Run) ([]FileCheck, error) {
	info, err := os.Stat(run.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("output directory", run.OutputDir)
		}
		return nil, errors.NewIO("stat", run.OutputDir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewUnsupported("verify", run.OutputDir+" is not a directory")
	}

	checks := make([]FileCheck, 0, len(run.Files))
	for _, f := range run.Files {
		path := filepath.Join(run.OutputDir, filepath.FromSlash(f.Path))
		got, err := cas.HashFile(path)
		if err == nil {
			err = cas.Verify(got, f.Output)
		}
		checks = append(checks, FileCheck{Path: f.Path, Err: err})
	}
	return checks, nil
}

// Failed counts the checks that did not pass.
func Failed(checks []FileCheck) int {
	n := 0
	for _, c := range checks {
		if c.Err != nil {
			n++
		}
	}
	return n
}
