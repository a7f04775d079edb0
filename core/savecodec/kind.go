package savecodec

import (
	"path/filepath"
	"regexp"

	"github.com/FocuswithJustin/SheikahConverter/core/errors"
)

// FileKind is the role of a .sav file inside a save directory.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindGameData
	KindCaption
	KindOption
	KindTrackerBlock
)

// Well-known file names.
const (
	GameDataName = "game_data.sav"
	CaptionName  = "caption.sav"
	OptionName   = "option.sav"
)

var trackerBlockPattern = regexp.MustCompile(`^trackblock[0-9]{2}\.sav$`)

func (k FileKind) String() string {
	switch k {
	case KindGameData:
		return "game_data"
	case KindCaption:
		return "caption"
	case KindOption:
		return "option"
	case KindTrackerBlock:
		return "trackblock"
	default:
		return "unknown"
	}
}

// KindFromName classifies a file by its base name.
func KindFromName(name string) FileKind {
	switch base := filepath.Base(name); {
	case base == GameDataName:
		return KindGameData
	case base == CaptionName:
		return KindCaption
	case base == OptionName:
		return KindOption
	case trackerBlockPattern.MatchString(base):
		return KindTrackerBlock
	default:
		return KindUnknown
	}
}

// ConvertFile converts data according to its kind. Tracker blocks are the
// only kind with the half-word field.
func ConvertFile(kind FileKind, data []byte) ([]byte, error) {
	if kind == KindUnknown {
		return nil, errors.NewUnsupported("file kind", "not a save file")
	}
	return Convert(data, kind == KindTrackerBlock)
}
