package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// BackupExt is the extension of backup archives.
const BackupExt = ".tar.xz"

// BackupName returns the file name of a backup of srcDir taken at t.
func BackupName(srcDir string, t time.Time) string {
	return filepath.Base(filepath.Clean(srcDir)) + "-" + t.UTC().Format("20060102T150405Z") + BackupExt
}

// CreateTarXz creates a tar.xz archive from a source directory.
// The baseDir parameter specifies the directory name inside the archive.
// Parent directories of dstPath are created.
func CreateTarXz(srcDir, dstPath, baseDir string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close archive file: %w", cerr)
		}
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	xw, err := xz.NewWriter(outFile)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}

	tw := tar.NewWriter(xw)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		// Skip root directory
		if relPath == "." {
			return nil
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		// Set the name with the base directory prefix
		header.Name = baseDir + "/" + filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("failed to finish xz stream: %w", err)
	}
	return nil
}

// Backup writes a tar.xz of srcDir into backupDir and returns its path.
func Backup(srcDir, backupDir string, now time.Time) (string, error) {
	dst := filepath.Join(backupDir, BackupName(srcDir, now))
	if err := CreateTarXz(srcDir, dst, filepath.Base(filepath.Clean(srcDir))); err != nil {
		return "", err
	}
	return dst, nil
}
