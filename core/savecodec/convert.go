package savecodec

import (
	"encoding/binary"
	"fmt"

	"github.com/FocuswithJustin/SheikahConverter/core/errors"
)

// WordSize is the unit the converter works in.
const WordSize = 4

// trackerFieldOffset is the offset of the pair of 16-bit values in a
// tracker block that is swapped half by half.
const trackerFieldOffset = 4

// state is carried from one word to the next.
type state struct {
	// skipNext keeps the word after a structural marker unswapped.
	skipNext bool
}

// Convert rewrites data for the other console and returns a new buffer of
// the same length. trackerBlock enables the half-word rule used by
// trackblockNN.sav files. The conversion is its own inverse for well
// formed saves, so the same call converts in both directions.
//
// data must be a whole number of words; anything else is rejected with a
// ValidationError wrapping errors.ErrMisaligned.
func Convert(data []byte, trackerBlock bool) ([]byte, error) {
	if len(data)%WordSize != 0 {
		return nil, &errors.ValidationError{
			Field:   "length",
			Value:   fmt.Sprint(len(data)),
			Message: fmt.Sprintf("%d bytes is not a multiple of %d", len(data), WordSize),
			Err:     errors.ErrMisaligned,
		}
	}

	out := make([]byte, len(data))
	var st state
	for off := 0; off < len(data); off += WordSize {
		var w [WordSize]byte
		copy(w[:], data[off:off+WordSize])

		var res [WordSize]byte
		res, st = step(off, w, st, trackerBlock)
		copy(out[off:], res[:])
	}
	return out, nil
}

// step decides the output for the word w found at offset off.
func step(off int, w [4]byte, st state, trackerBlock bool) ([4]byte, state) {
	if trackerBlock && off == trackerFieldOffset {
		return swapHalves(w), st
	}
	if st.skipNext {
		return w, state{}
	}
	if IsStructuralHash(binary.BigEndian.Uint32(w[:])) {
		return reverse(w), state{skipNext: true}
	}
	if IsTag(w) {
		return w, st
	}
	return reverse(w), st
}

func reverse(w [4]byte) [4]byte {
	return [4]byte{w[3], w[2], w[1], w[0]}
}

func swapHalves(w [4]byte) [4]byte {
	return [4]byte{w[1], w[0], w[3], w[2]}
}
