package savecodec

import (
	"slices"
)

// structuralHashes are the field hashes that introduce a length or
// count word in game_data.sav. Every value is listed together with its
// byte-reversed form so a marker is recognised in either byte order.
var structuralHashes = sortedUint32s(
	0x7b74e117, 0x17e1747b,
	0xd913b769, 0x69b713d9,
	0xb666d246, 0x46d266b6,
	0x021a6ff2, 0xf26f1a02,
	0xff74960f, 0x0f9674ff,
	0x8932285f, 0x5f283289,
	0x3b0a289b, 0x9b280a3b,
	0x2f95768f, 0x8f76952f,
	0x9c6cfd3f, 0x3ffd6c9c,
	0xbbac416b, 0x6b41acbb,
	0xccab71fd, 0xfd71abcc,
	0xcbc6b5e4, 0xe4b5c6cb,
	0x2cadb0e7, 0xe7b0ad2c,
	0xa6eb3ef4, 0xf43eeba6,
	0x21d4cffa, 0xfacfd421,
	0x22a510d1, 0xd110a522,
	0x98d10d53, 0x530dd198,
	0x55a22047, 0x4720a255,
	0xe5a63a33, 0x333aa6e5,
	0xbec65061, 0x6150c6be,
	0xbc118370, 0x708311bc,
	0x0e9d0e75, 0x750e9d0e,
)

// asciiTags are actor-name prefixes that the game stores as raw
// characters. They read the same on both consoles and are never swapped.
var asciiTags = sortedStrings(
	"Anci", "Anim", "Armo", "Arro", "Bana", "Beet", "Boko", "Bomb",
	"Bow_", "Brig", "Cake", "Card", "Chil", "Clot", "Cook", "Dm_A",
	"Dm_E", "Dm_N", "Dm_P", "Drag", "Elec", "Figu", "Fire", "Fish",
	"FldO", "Fore", "Game", "Gear", "Gold", "Grou", "Guar", "Hear",
	"Hors", "IceA", "Insc", "Item", "Kokk", "Kore", "Leaf", "Leat",
	"Liza", "Lsw_", "Lyne", "Meat", "Mine", "Moli", "Mush", "Norm",
	"Npc_", "Obj_", "Plan", "Powe", "Prim", "Roas", "Rupe", "Sand",
	"Shie", "Spea", "Ston", "Weap",
)

func sortedUint32s(v ...uint32) []uint32 {
	slices.Sort(v)
	return slices.Compact(v)
}

func sortedStrings(v ...string) []string {
	slices.Sort(v)
	return slices.Compact(v)
}

// IsStructuralHash reports whether v is a structural marker in either byte order.
func IsStructuralHash(v uint32) bool {
	_, ok := slices.BinarySearch(structuralHashes, v)
	return ok
}

// IsTag reports whether w holds one of the raw ASCII tags.
// Words containing non-ASCII bytes never match.
func IsTag(w [4]byte) bool {
	for _, b := range w {
		if b >= 0x80 {
			return false
		}
	}
	_, ok := slices.BinarySearch(asciiTags, string(w[:]))
	return ok
}
