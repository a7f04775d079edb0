// Package archive packs and unpacks save directories: tar.xz backups of
// an input directory, and zip files as produced by console backup tools.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/SheikahConverter/internal/validation"
)

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader creates a new archive reader for the given path.
// It automatically detects and handles .tar.gz and .tar.xz compression.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var reader io.Reader = f
	var decompressor io.Closer

	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
		decompressor = nil // xz reader doesn't need closing
	case strings.HasSuffix(path, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Visitor is a callback function for iterating archive entries.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// IterateFile opens an archive and iterates through its entries.
func IterateFile(path string, visitor Visitor) error {
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

// Entry describes one file in a backup archive.
type Entry struct {
	Name string
	Size int64
	Mode int64
}

// List returns the regular file entries of the archive at path.
func List(path string) ([]Entry, error) {
	var entries []Entry
	err := IterateFile(path, func(header *tar.Header, _ io.Reader) (bool, error) {
		if header.Typeflag == tar.TypeReg {
			entries = append(entries, Entry{Name: header.Name, Size: header.Size, Mode: header.Mode})
		}
		return false, nil
	})
	return entries, err
}

// Restore unpacks the backup at archivePath into dstDir and returns the
// slash separated names of the restored files. The leading base directory
// of entry names is dropped, so dstDir takes the place of the original
// save directory. Entry names are checked like zip entries and the total
// size is bounded by validation.MaxArchiveSize.
func Restore(archivePath, dstDir string) ([]string, error) {
	var restored []string
	var total int64
	err := IterateFile(archivePath, func(header *tar.Header, r io.Reader) (bool, error) {
		name := header.Name
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		name = strings.TrimSuffix(name, "/")
		if name == "" {
			return false, nil
		}

		target, err := entryTarget(dstDir, name)
		if err != nil {
			return false, fmt.Errorf("backup entry %q: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return false, fmt.Errorf("create directory: %w", err)
			}
		case tar.TypeReg:
			total += header.Size
			if total > validation.MaxArchiveSize {
				return false, fmt.Errorf("backup %s: %w", archivePath, validation.ErrFileTooLarge)
			}
			if err := restoreFile(r, target, header.Size); err != nil {
				return false, err
			}
			restored = append(restored, name)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func restoreFile(r io.Reader, target string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	_, err = io.CopyN(out, r, size)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", target, err)
	}
	return nil
}
