// Package savecodec converts Breath of the Wild save files between the
// Wii U and Switch layouts.
//
// Both consoles write the same logical records. The Wii U stores every
// 32-bit word big-endian and the Switch stores it little-endian, except for
// raw ASCII tags and the word that follows a structural hash marker, which
// keep their original orientation. Detect classifies a buffer by its
// header and Convert rewrites it word by word for the other console.
package savecodec

import (
	"encoding/binary"

	"github.com/FocuswithJustin/SheikahConverter/core/errors"
)

// Platform identifies the console byte order of a save file.
type Platform int

const (
	// PlatformWiiU is the big-endian layout.
	PlatformWiiU Platform = iota + 1
	// PlatformSwitch is the little-endian layout.
	PlatformSwitch
)

// String returns the display name of the platform, or "Unknown".
func (p Platform) String() string {
	switch p {
	case PlatformWiiU:
		return "Wii U"
	case PlatformSwitch:
		return "Switch"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the two supported platforms.
func (p Platform) Valid() bool {
	return p == PlatformWiiU || p == PlatformSwitch
}

// Target returns the platform a conversion of p produces.
func (p Platform) Target() Platform {
	switch p {
	case PlatformWiiU:
		return PlatformSwitch
	case PlatformSwitch:
		return PlatformWiiU
	default:
		return 0
	}
}

// PrettyPlatform returns the display name for p. Out of range values
// yield "Unknown" so display code never has to handle an error.
func PrettyPlatform(p Platform) string {
	return p.String()
}

// versions maps the header version code to the game release.
var versions = map[uint16]string{
	0x24e2: "v1.0",
	0x24ee: "v1.1",
	0x4730: "v1.2",
	0x39c5: "v1.3",
	0x3ef8: "v1.3.3",
	0x3ef9: "v1.3.4",
	0x471a: "v1.4",
	0x471b: "v1.5",
	0x471e: "v1.6",
}

// VersionLabel returns the release label for a header version code.
func VersionLabel(code uint16) (string, bool) {
	v, ok := versions[code]
	return v, ok
}

// Header is the result of sniffing the first word of a save file.
type Header struct {
	Platform Platform
	Version  string
	Code     uint16
}

// HeaderSize is the number of leading bytes Detect inspects.
const HeaderSize = 4

// Detect classifies data by its header word. The word is read as two
// big-endian halves; a zero left half and a known version code on the
// right means Wii U. Otherwise the same test is repeated on the fully
// reversed word and a hit means Switch. data is not modified.
func Detect(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errors.NewFormat("", data)
	}

	var word [HeaderSize]byte
	copy(word[:], data)

	if code, label, ok := matchHeader(word); ok {
		return Header{Platform: PlatformWiiU, Version: label, Code: code}, nil
	}
	if code, label, ok := matchHeader(reverse(word)); ok {
		return Header{Platform: PlatformSwitch, Version: label, Code: code}, nil
	}

	return Header{}, errors.NewFormat("", data)
}

func matchHeader(word [4]byte) (uint16, string, bool) {
	left := binary.BigEndian.Uint16(word[0:2])
	right := binary.BigEndian.Uint16(word[2:4])
	if left != 0 {
		return 0, "", false
	}
	label, ok := versions[right]
	return right, label, ok
}
