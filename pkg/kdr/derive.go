package kdr

import (
	"fmt"

	"github.com/codahale/kdr/pkg/kdr/internal/wipe"
)

const (
	MaxLabelSize   = 64 // MaxLabelSize is the longest derivation label in bytes.
	MaxContextSize = 64 // MaxContextSize is the longest derivation context in bytes.
	KeySize        = 16 // KeySize is the size of an AES-128 derived key in bytes.
)

// DerivedKey is a secret key derived from the root key. It lives only in memory and must be
// destroyed as soon as it is no longer needed.
type DerivedKey struct {
	b []byte
}

// Bytes returns the key material, or nil once the key is destroyed. The returned slice aliases
// the key and is zeroed by Destroy.
func (k *DerivedKey) Bytes() []byte {
	return k.b
}

// Len returns the size of the key in bytes, or zero once the key is destroyed.
func (k *DerivedKey) Len() int {
	return len(k.b)
}

// Destroy zeroes the key material. It is safe to call more than once.
func (k *DerivedKey) Destroy() {
	wipe.Bytes(k.b)
	k.b = nil
}

// String never returns key material.
func (k *DerivedKey) String() string {
	return fmt.Sprintf("DerivedKey(%d bytes)", len(k.b))
}

var _ fmt.Stringer = &DerivedKey{}

// Deriver derives purpose-bound keys from a provisioned root key.
type Deriver struct {
	p   *Provisioner
	kdf KDF
}

// NewDeriver returns a Deriver which uses kdf once p has provisioned the root key.
func NewDeriver(p *Provisioner, kdf KDF) *Deriver {
	return &Deriver{p: p, kdf: kdf}
}

// Derive derives an n-byte key from the root key, the label, and the context. The label names
// the key's purpose; the context must be unique per device. Both must be 1 to 64 bytes long and n
// must be an AES key size. Out-of-bounds inputs return ErrInvalidInput and never reach the KDF.
// A non-OK KDF status returns a *KDFError; the output buffer is zeroed first.
//
// The caller owns the returned key and must Destroy it.
func (d *Deriver) Derive(label, context []byte, n int) (*DerivedKey, error) {
	// Check the inputs.
	if err := checkInputs(label, context, n); err != nil {
		return nil, err
	}

	// Refuse to derive from an unverified root key.
	if !d.p.Provisioned() {
		return nil, ErrNotProvisioned
	}

	// Derive the key via the hardware key path.
	out := make([]byte, n)
	if code := d.kdf.DeriveKey(HandleKDR, label, context, out); code != StatusOK {
		// Zero whatever the KDF may have written.
		wipe.Bytes(out)

		return nil, &KDFError{Code: code}
	}

	return &DerivedKey{b: out}, nil
}

// DeriveFunc derives a key as Derive does, passes it to fn, and zeroes it on every path out,
// including a panic in fn. The slice passed to fn must not be retained.
func (d *Deriver) DeriveFunc(label, context []byte, n int, fn func(key []byte) error) error {
	key, err := d.Derive(label, context, n)
	if err != nil {
		return err
	}

	defer key.Destroy()

	return fn(key.Bytes())
}

func checkInputs(label, context []byte, n int) error {
	if len(label) == 0 || len(label) > MaxLabelSize {
		return fmt.Errorf("%w: label is %d bytes, must be 1..%d", ErrInvalidInput, len(label), MaxLabelSize)
	}

	if len(context) == 0 || len(context) > MaxContextSize {
		return fmt.Errorf("%w: context is %d bytes, must be 1..%d", ErrInvalidInput, len(context), MaxContextSize)
	}

	switch n {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: key size is %d bytes, must be 16, 24, or 32", ErrInvalidInput, n)
	}
}
