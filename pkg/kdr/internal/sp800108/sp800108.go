// Package sp800108 implements the NIST SP 800-108 counter-mode KDF with AES-CMAC as the PRF.
//
// Output is generated one CMAC block at a time, given a key KI, label, context, and output length
// L in bytes:
//
//	K(i) = CMAC(KI, [i]_8 || Label || 0x00 || Context || [L*8]_16)
//	K    = K(1) || K(2) || ... truncated to L bytes
//
// The counter and the bit length are big-endian.
package sp800108

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aead/cmac"
)

const (
	BlockSize = aes.BlockSize       // BlockSize is the size of one PRF output block in bytes.
	MaxOutput = 255 * aes.BlockSize // MaxOutput is the most output an 8-bit counter can produce.
)

var (
	// ErrInvalidKeySize is returned when the key is not a valid AES key.
	ErrInvalidKeySize = errors.New("sp800108: invalid key size")

	// ErrInvalidOutputSize is returned when the requested output cannot be produced.
	ErrInvalidOutputSize = errors.New("sp800108: invalid output size")
)

// Derive fills out with key material derived from key, label, and context. If an error is
// returned, out is left zeroed.
func Derive(key, label, context, out []byte) error {
	// Clear the output so every failure leaves it zeroed.
	clear(out)

	// Check the output length against what the counter and length fields can represent.
	if len(out) == 0 || len(out) > MaxOutput {
		return fmt.Errorf("%w: %d bytes", ErrInvalidOutputSize, len(out))
	}

	// Create the AES block cipher for the PRF.
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("%w: %d bytes", ErrInvalidKeySize, len(key))
	}

	// Create the CMAC instance.
	h, err := cmac.New(block)
	if err != nil {
		return err
	}

	// Encode the fixed input data once, leaving the first byte for the counter.
	msg := fixedInput(label, context, len(out))
	tag := make([]byte, 0, BlockSize)

	for i, off := 1, 0; off < len(out); i, off = i+1, off+BlockSize {
		// Set the counter.
		msg[0] = byte(i)

		// Calculate the next block.
		h.Reset()
		_, _ = h.Write(msg)
		tag = h.Sum(tag[:0])

		// Copy as much of it as fits.
		copy(out[off:], tag)
	}

	// Clear the final block and reset the CMAC state.
	clear(tag[:cap(tag)])
	h.Reset()

	return nil
}

// fixedInput returns the PRF input with a zero counter byte.
func fixedInput(label, context []byte, n int) []byte {
	msg := make([]byte, 0, 1+len(label)+1+len(context)+2)

	msg = append(msg, 0)
	msg = append(msg, label...)
	msg = append(msg, 0)
	msg = append(msg, context...)

	return binary.BigEndian.AppendUint16(msg, uint16(n*8))
}
