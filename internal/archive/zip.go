package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/SheikahConverter/internal/validation"
)

// ExtractZip unpacks zipPath into dstDir. Entry names that would escape
// dstDir are rejected, and the total uncompressed size is bounded by
// validation.MaxArchiveSize.
func ExtractZip(zipPath, dstDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return fmt.Errorf("open zip: %w", validation.ErrPathTraversal)
	}
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	var total int64
	for _, f := range zr.File {
		target, err := entryTarget(dstDir, strings.TrimSuffix(f.Name, "/"))
		if err != nil {
			return fmt.Errorf("zip entry %q: %w", f.Name, err)
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		total += int64(f.UncompressedSize64)
		if total > validation.MaxArchiveSize {
			return fmt.Errorf("zip %s: %w", zipPath, validation.ErrFileTooLarge)
		}

		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

// entryTarget resolves an archive entry name below dstDir. Every element
// of the name must be a valid file name.
func entryTarget(dstDir, name string) (string, error) {
	rel, err := validation.SanitizePath(dstDir, name)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return dstDir, nil
	}
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		if err := validation.ValidateFilename(elem); err != nil {
			return "", err
		}
	}
	return filepath.Join(dstDir, rel), nil
}

func extractZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	// The declared size is untrusted; stop one byte past it.
	n, err := io.Copy(out, io.LimitReader(rc, int64(f.UncompressedSize64)+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if n > int64(f.UncompressedSize64) {
		return fmt.Errorf("zip entry %s: larger than declared size", f.Name)
	}
	return nil
}

// CreateZip packs the regular files of srcDir into a zip at dstPath with
// slash separated names relative to srcDir.
func CreateZip(srcDir, dstPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dstPath)
		}
	}()

	zw := zip.NewWriter(out)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create zip: %w", err)
	}
	return zw.Close()
}
