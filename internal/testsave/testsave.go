// Package testsave builds synthetic save files and save directories for
// tests. Every builder produces the Wii U and Switch encodings of the same
// records side by side, so a conversion can be checked byte for byte.
package testsave

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/SheikahConverter/core/savecodec"
)

// Builder accumulates words in both layouts.
type Builder struct {
	wiiu []byte
	nx   []byte
}

// NewBuilder starts a file with the header for the given version code.
func NewBuilder(code uint16) *Builder {
	b := &Builder{}
	var w [4]byte
	binary.BigEndian.PutUint16(w[2:], code)
	b.push(w, reversed(w))
	return b
}

func (b *Builder) push(wiiu, sw [4]byte) *Builder {
	b.wiiu = append(b.wiiu, wiiu[:]...)
	b.nx = append(b.nx, sw[:]...)
	return b
}

// Value appends a plain 32-bit value. It panics if either encoding of v
// would be mistaken for a tag or a structural marker.
func (b *Builder) Value(v uint32) *Builder {
	var be, le [4]byte
	binary.BigEndian.PutUint32(be[:], v)
	binary.LittleEndian.PutUint32(le[:], v)
	if savecodec.IsStructuralHash(v) || savecodec.IsTag(be) || savecodec.IsTag(le) {
		panic(fmt.Sprintf("testsave: value %#08x is ambiguous", v))
	}
	return b.push(be, le)
}

// Values appends several plain values.
func (b *Builder) Values(vs ...uint32) *Builder {
	for _, v := range vs {
		b.Value(v)
	}
	return b
}

// Tag appends a four character ASCII tag, identical on both consoles.
func (b *Builder) Tag(tag string) *Builder {
	if len(tag) != 4 {
		panic(fmt.Sprintf("testsave: tag %q is not 4 bytes", tag))
	}
	var w [4]byte
	copy(w[:], tag)
	return b.push(w, w)
}

// Marker appends a structural hash followed by the word it guards. The
// guarded word is written identically on both consoles.
func (b *Builder) Marker(hash uint32, guarded uint32) *Builder {
	if !savecodec.IsStructuralHash(hash) {
		panic(fmt.Sprintf("testsave: %#08x is not a structural hash", hash))
	}
	var m, g [4]byte
	binary.BigEndian.PutUint32(m[:], hash)
	binary.BigEndian.PutUint32(g[:], guarded)
	b.push(m, reversed(m))
	return b.push(g, g)
}

// TrackerField appends the half-swapped pair of a tracker block. It must
// be the second word of the file.
func (b *Builder) TrackerField(hi, lo uint16) *Builder {
	if len(b.wiiu) != 4 {
		panic("testsave: tracker field must directly follow the header")
	}
	var w [4]byte
	binary.BigEndian.PutUint16(w[0:], hi)
	binary.BigEndian.PutUint16(w[2:], lo)
	return b.push(w, [4]byte{w[1], w[0], w[3], w[2]})
}

// Bytes returns the encoding for platform p.
func (b *Builder) Bytes(p savecodec.Platform) []byte {
	if p == savecodec.PlatformSwitch {
		return append([]byte(nil), b.nx...)
	}
	return append([]byte(nil), b.wiiu...)
}

func reversed(w [4]byte) [4]byte {
	return [4]byte{w[3], w[2], w[1], w[0]}
}

// Version15 is the header code of game version 1.5.
const Version15 uint16 = 0x471b

// GameData builds a game_data.sav with tags, markers and plain values.
func GameData(code uint16, slot int) *Builder {
	return NewBuilder(code).
		Values(0xffffffff, 0x00000001).
		Marker(0x7b74e117, 0x00000003).
		Tag("Weap").Tag("Armo").Values(0x0000002a, uint32(slot)+0x100).
		Marker(0x0f9674ff, 0x00010000).
		Tag("Item").Values(0x3f800000, 0x00000000).
		Marker(0x750e9d0e, 0x00000002).
		Tag("Obj_").Value(0x12345678)
}

// Caption builds a caption.sav.
func Caption(code uint16, slot int) *Builder {
	return NewBuilder(code).
		Values(0x00000020, uint32(slot)+7).
		Tag("Game").Value(0x0badcafe)
}

// Option builds an option.sav.
func Option(code uint16) *Builder {
	return NewBuilder(code).Values(0x00000001, 0x3f000000, 0x00000064)
}

// TrackBlock builds a trackblockNN.sav.
func TrackBlock(code uint16) *Builder {
	return NewBuilder(code).
		TrackerField(0x0102, 0x0304).
		Values(0x00000010, 0xdeadbeef).
		Marker(0xd913b769, 0x00000001).
		Value(0x00000005)
}

// Dir describes a save directory written by WriteDir.
type Dir struct {
	Root string
	// Want maps every .sav path relative to Root to its encoding on the
	// other platform.
	Want map[string][]byte
	// Images lists every copied file relative to Root.
	Images []string
}

// WriteDir writes a complete save directory for platform p with the given
// number of slots and returns what a conversion should produce.
func WriteDir(t testing.TB, root string, p savecodec.Platform, slots int) *Dir {
	t.Helper()

	d := &Dir{Root: root, Want: map[string][]byte{}}
	target := p.Target()

	writeSave := func(rel string, b *Builder) {
		t.Helper()
		writeFile(t, filepath.Join(root, rel), b.Bytes(p))
		d.Want[rel] = b.Bytes(target)
	}
	writeImage := func(rel string) {
		t.Helper()
		writeFile(t, filepath.Join(root, rel), []byte("\xff\xd8\xff\xe0 jpeg "+rel))
		d.Images = append(d.Images, rel)
	}

	for i := 0; i < slots; i++ {
		slot := fmt.Sprint(i)
		writeSave(filepath.Join(slot, savecodec.GameDataName), GameData(Version15, i))
		writeSave(filepath.Join(slot, savecodec.CaptionName), Caption(Version15, i))
		writeImage(filepath.Join(slot, "caption.jpg"))
	}
	writeSave(savecodec.OptionName, Option(Version15))
	writeSave(filepath.Join("tracker", "trackblock00.sav"), TrackBlock(Version15))
	writeImage(filepath.Join("pict_book", "Animal_Fox_A.jpg"))
	writeImage(filepath.Join("album", "photo_00.jpg"))

	return d
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
