// Package wipe overwrites sensitive buffers with zeros.
package wipe

import (
	"crypto/subtle"
	"runtime"
)

// Bytes overwrites b with zeros. The copy is constant-time and b is kept alive past the write so
// the compiler cannot elide it as a dead store.
func Bytes(b []byte) {
	if len(b) == 0 {
		return
	}

	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Words overwrites w with zeros.
func Words(w []uint32) {
	for i := range w {
		w[i] = 0
	}

	runtime.KeepAlive(w)
}

// IsZero returns true if every byte of b is zero.
func IsZero(b []byte) bool {
	var acc byte

	for _, v := range b {
		acc |= v
	}

	return acc == 0
}
