// Package savedir understands the on-disk layout of a Breath of the Wild
// save directory:
//
//	option.sav
//	0/ game_data.sav caption.sav caption.jpg
//	1/ ...               (up to 7)
//	tracker/ trackblockNN.sav
//	pict_book/ *.jpg
//	album/ *.jpg
package savedir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/SheikahConverter/core/errors"
	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
)

// MaxSlots is the number of numbered slot directories the game uses.
const MaxSlots = 8

// Directory and file names inside a save directory.
const (
	TrackerDir       = "tracker"
	PictBookDir      = "pict_book"
	AlbumDir         = "album"
	CaptionImageName = "caption.jpg"
)

// Slot is one numbered save slot.
type Slot struct {
	Index int
	// Paths are relative to the layout root. CaptionImage is empty when the
	// slot has no screenshot.
	GameData     string
	Caption      string
	CaptionImage string
}

// Layout is the set of files found in a save directory.
type Layout struct {
	Root          string
	Slots         []Slot
	Option        string
	TrackerBlocks []string
	PictBook      []string
	Album         []string
}

// Scan reads the layout of the save directory at root. Slot directories
// are taken in order starting at 0 and scanning stops at the first index
// that does not exist. At least one slot and option.sav are required.
func Scan(root string) (*Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("save directory", root)
		}
		return nil, errors.NewIO("stat", root, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidation("input", fmt.Sprintf("%s is not a directory", root))
	}

	l := &Layout{Root: root}

	for i := 0; i < MaxSlots; i++ {
		name := strconv.Itoa(i)
		if !isDir(filepath.Join(root, name)) {
			break
		}
		slot := Slot{
			Index:    i,
			GameData: filepath.Join(name, savecodec.GameDataName),
			Caption:  filepath.Join(name, savecodec.CaptionName),
		}
		for _, rel := range []string{slot.GameData, slot.Caption} {
			if !isFile(filepath.Join(root, rel)) {
				return nil, errors.NewNotFound("save file", filepath.Join(root, rel))
			}
		}
		if isFile(filepath.Join(root, name, CaptionImageName)) {
			slot.CaptionImage = filepath.Join(name, CaptionImageName)
		}
		l.Slots = append(l.Slots, slot)
	}
	if len(l.Slots) == 0 {
		return nil, errors.NewNotFound("save slot", root)
	}

	if !isFile(filepath.Join(root, savecodec.OptionName)) {
		return nil, errors.NewNotFound(savecodec.OptionName, root)
	}
	l.Option = savecodec.OptionName

	if l.TrackerBlocks, err = listFiles(root, TrackerDir, func(name string) bool {
		return savecodec.KindFromName(name) == savecodec.KindTrackerBlock
	}); err != nil {
		return nil, err
	}
	if l.PictBook, err = listFiles(root, PictBookDir, nil); err != nil {
		return nil, err
	}
	if l.Album, err = listFiles(root, AlbumDir, nil); err != nil {
		return nil, err
	}

	return l, nil
}

// SaveFiles returns every .sav file of the layout, relative to Root.
func (l *Layout) SaveFiles() []string {
	var files []string
	for _, s := range l.Slots {
		files = append(files, s.GameData, s.Caption)
	}
	if l.Option != "" {
		files = append(files, l.Option)
	}
	return append(files, l.TrackerBlocks...)
}

// Images returns every file that is copied without conversion.
func (l *Layout) Images() []string {
	var files []string
	for _, s := range l.Slots {
		if s.CaptionImage != "" {
			files = append(files, s.CaptionImage)
		}
	}
	files = append(files, l.PictBook...)
	return append(files, l.Album...)
}

// ImageDirs returns the image directories present in the layout, which are
// created in the output even when empty.
func (l *Layout) ImageDirs() []string {
	var dirs []string
	for _, d := range []string{PictBookDir, AlbumDir} {
		if isDir(filepath.Join(l.Root, d)) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// listFiles returns the regular, non-hidden files of root/dir accepted by
// keep, sorted by name. A missing directory yields no files.
func listFiles(root, dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIO("read directory", filepath.Join(root, dir), err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if keep != nil && !keep(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// OutputState describes an output directory before conversion.
type OutputState int

const (
	OutputMissing OutputState = iota
	OutputNotDir
	OutputEmpty
	OutputNotEmpty
)

func (s OutputState) String() string {
	switch s {
	case OutputMissing:
		return "missing"
	case OutputNotDir:
		return "not a directory"
	case OutputEmpty:
		return "empty"
	case OutputNotEmpty:
		return "not empty"
	default:
		return fmt.Sprintf("OutputState(%d)", int(s))
	}
}

// InspectOutput reports the state of the output directory dir.
func InspectOutput(dir string) (OutputState, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return OutputMissing, nil
		}
		return 0, errors.NewIO("stat", dir, err)
	}
	if !info.IsDir() {
		return OutputNotDir, nil
	}

	f, err := os.Open(dir)
	if err != nil {
		return 0, errors.NewIO("open", dir, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	return classifyEntries(dir, names, err)
}

// classifyEntries turns the result of reading one directory entry into an
// OutputState. io.EOF only means the directory is empty.
func classifyEntries(dir string, names []string, err error) (OutputState, error) {
	if err != nil && err != io.EOF {
		return 0, errors.NewIO("read directory", dir, err)
	}
	if len(names) == 0 {
		return OutputEmpty, nil
	}
	return OutputNotEmpty, nil
}

// DefaultOutputName returns the default output directory name for a run
// started at t, in the form botw-YYYY-MM-DD_HH-MM-SS (UTC).
func DefaultOutputName(t time.Time) string {
	return "botw-" + t.UTC().Format("2006-01-02_15-04-05")
}
