// Package oracle provides the key predicate used by the search: does a
// candidate key decrypt the ciphertext into text containing the phrase.
//
// The bundled implementation is single DES in ECB mode. Keys are the 64-bit
// big-endian encoding of the candidate; the low bit of each byte is a parity
// bit DES ignores, so keys differing only in those bits are equivalent.
package oracle

import (
	"bytes"
	"crypto/des"
	"encoding/binary"
	"errors"
	"fmt"
)

// BlockSize is the cipher block size in bytes.
const BlockSize = des.BlockSize

var (
	// ErrWeakKey is returned when a weak or semi-weak DES key is used to encrypt.
	ErrWeakKey = errors.New("weak DES key")

	// ErrBlockAlignment is returned when a ciphertext is not a whole number of blocks.
	ErrBlockAlignment = errors.New("ciphertext is not block aligned")

	// ErrEmptyPhrase is returned when an oracle is built without a phrase.
	ErrEmptyPhrase = errors.New("search phrase cannot be empty")
)

// Oracle decides whether a key succeeds. Implementations must be pure and
// safe for concurrent use. On success the decrypted text is returned.
type Oracle interface {
	TryKey(key uint64) (plaintext []byte, ok bool)
}

// Func adapts a plain function to the Oracle interface.
type Func func(key uint64) ([]byte, bool)

// TryKey calls f(key).
func (f Func) TryKey(key uint64) ([]byte, bool) {
	return f(key)
}

// weakKeys lists the DES weak and semi-weak keys in odd-parity form.
var weakKeys = map[uint64]struct{}{
	// weak
	0x0101010101010101: {},
	0xFEFEFEFEFEFEFEFE: {},
	0xE0E0E0E0F1F1F1F1: {},
	0x1F1F1F1F0E0E0E0E: {},
	// semi-weak
	0x011F011F010E010E: {},
	0x1F011F010E010E01: {},
	0x01E001E001F101F1: {},
	0xE001E001F101F101: {},
	0x01FE01FE01FE01FE: {},
	0xFE01FE01FE01FE01: {},
	0x1FE01FE00EF10EF1: {},
	0xE01FE01FF10EF10E: {},
	0x1FFE1FFE0EFE0EFE: {},
	0xFE1FFE1FFE0EFE0E: {},
	0xE0FEE0FEF1FEF1FE: {},
	0xFEE0FEE0FEF1FEF1: {},
}

// KeyBytes returns the 8-byte DES key for a candidate.
func KeyBytes(key uint64) []byte {
	b := make([]byte, BlockSize)
	binary.BigEndian.PutUint64(b, key)
	return b
}

// OddParity returns key with the low bit of every byte set so that each byte
// has an odd number of one bits.
func OddParity(key uint64) uint64 {
	var out uint64
	for i := 0; i < 8; i++ {
		shift := uint(56 - 8*i)
		b := byte(key>>shift) &^ 1
		ones := 0
		for v := b; v != 0; v &= v - 1 {
			ones++
		}
		if ones%2 == 0 {
			b |= 1
		}
		out |= uint64(b) << shift
	}
	return out
}

// IsWeakKey reports whether key is a DES weak or semi-weak key once its
// parity bits are normalised.
func IsWeakKey(key uint64) bool {
	_, weak := weakKeys[OddParity(key)]
	return weak
}

// Pad returns plaintext zero-padded to a multiple of BlockSize. The input is
// never modified.
func Pad(plaintext []byte) []byte {
	padded := (len(plaintext) + BlockSize - 1) / BlockSize * BlockSize
	out := make([]byte, padded)
	copy(out, plaintext)
	return out
}

// Encrypt zero-pads plaintext and encrypts it block by block. The ciphertext
// length is the padded length. Weak keys are rejected.
func Encrypt(key uint64, plaintext []byte) ([]byte, error) {
	if IsWeakKey(key) {
		return nil, fmt.Errorf("%w: %d", ErrWeakKey, key)
	}
	block, err := des.NewCipher(KeyBytes(key))
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	padded := Pad(plaintext)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		block.Encrypt(out[i:i+BlockSize], padded[i:i+BlockSize])
	}
	return out, nil
}

// Decrypt decrypts a block-aligned ciphertext.
func Decrypt(key uint64, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockAlignment, len(ciphertext))
	}
	block, err := des.NewCipher(KeyBytes(key))
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += BlockSize {
		block.Decrypt(out[i:i+BlockSize], ciphertext[i:i+BlockSize])
	}
	return out, nil
}

// DES is the phrase-containment oracle over a fixed ciphertext.
type DES struct {
	ciphertext []byte
	phrase     []byte
}

// NewDES returns an oracle that accepts keys whose decryption of ciphertext
// contains phrase. Both inputs are copied.
func NewDES(ciphertext []byte, phrase string) (*DES, error) {
	if phrase == "" {
		return nil, ErrEmptyPhrase
	}
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockAlignment, len(ciphertext))
	}
	return &DES{
		ciphertext: bytes.Clone(ciphertext),
		phrase:     []byte(phrase),
	}, nil
}

// TryKey decrypts the ciphertext with key and checks for the phrase.
// Weak keys never match.
func (d *DES) TryKey(key uint64) ([]byte, bool) {
	if IsWeakKey(key) {
		return nil, false
	}
	plaintext, err := Decrypt(key, d.ciphertext)
	if err != nil {
		return nil, false
	}
	if !bytes.Contains(plaintext, d.phrase) {
		return nil, false
	}
	return plaintext, true
}
