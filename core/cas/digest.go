// Package cas computes the content digests recorded for every converted
// save file. Each blob is identified by its SHA-256 hash with a BLAKE3
// hash alongside, so converted output can be verified later.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/zeebo/blake3"
)

// ErrDigestMismatch is returned when data does not match a recorded digest.
var ErrDigestMismatch = errors.New("digest mismatch")

// ErrInvalidHash is returned when a hash string is not a 64 character hex string.
var ErrInvalidHash = errors.New("invalid hash format")

// hashPattern matches a valid lowercase 256-bit hex string (64 characters).
var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashResult contains both SHA-256 and BLAKE3 hashes for a blob.
type HashResult struct {
	SHA256 string `json:"sha256" cbor:"1,keyasint"`
	BLAKE3 string `json:"blake3" cbor:"2,keyasint"`
	Size   int64  `json:"size" cbor:"3,keyasint"`
}

// Hash computes both digests of data.
func Hash(data []byte) HashResult {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return HashResult{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
		Size:   int64(len(data)),
	}
}

// HashReader streams r through both hash functions.
func HashReader(r io.Reader) (HashResult, error) {
	s := sha256.New()
	b := blake3.New()
	n, err := io.Copy(io.MultiWriter(s, b), r)
	if err != nil {
		return HashResult{}, fmt.Errorf("failed to hash: %w", err)
	}
	return HashResult{
		SHA256: hex.EncodeToString(s.Sum(nil)),
		BLAKE3: hex.EncodeToString(b.Sum(nil)),
		Size:   n,
	}, nil
}

// HashFile computes both digests of the file at path.
func HashFile(path string) (HashResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return HashResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return HashReader(f)
}

// Short returns the first 12 characters of the BLAKE3 hash for display.
func (h HashResult) Short() string {
	if len(h.BLAKE3) < 12 {
		return h.BLAKE3
	}
	return h.BLAKE3[:12]
}

// Validate checks that both hashes are well formed.
func (h HashResult) Validate() error {
	if !hashPattern.MatchString(h.SHA256) || !hashPattern.MatchString(h.BLAKE3) {
		return ErrInvalidHash
	}
	return nil
}

// Verify checks a freshly computed digest against a recorded one.
func Verify(got, want HashResult) error {
	if err := want.Validate(); err != nil {
		return err
	}
	if got.SHA256 != want.SHA256 || got.BLAKE3 != want.BLAKE3 || got.Size != want.Size {
		return fmt.Errorf("%w: got blake3 %s (%d bytes), want %s (%d bytes)",
			ErrDigestMismatch, got.Short(), got.Size, want.Short(), want.Size)
	}
	return nil
}
