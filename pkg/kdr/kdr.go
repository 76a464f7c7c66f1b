// Package kdr provisions a CryptoCell-style secure element with a device root key and derives
// purpose-bound secret keys from it.
//
// The root key (KDR, Key Derivation Root) is four 32-bit words held in write-once hardware
// registers. Provisioning is an ordered, irreversible sequence which runs once per power-on reset:
//
//  1. Enable the secure element.
//  2. Lock the lifecycle state (LCS) to Secure and verify it.
//  3. Write the four KDR words.
//  4. Verify that all four KDR latches report set.
//
// Once provisioned, keys are derived from the KDR by the secure element's NIST SP 800-108
// counter-mode KDF with AES-CMAC as the PRF. The KDR never leaves the hardware; software only sees
// derived keys, and every derived key buffer is zeroed before control returns to a caller which no
// longer needs it.
//
// The hardware is reached through a Bus, which a real target implements with MMIO and tests
// implement with the simulator in package sim. None of the types in this package are safe for
// concurrent use: the hardware state they drive is global to the device.
package kdr

import (
	"errors"
	"fmt"
	"strings"
)

// Bus reads and writes the secure element's 32-bit registers. Accesses are synchronous and
// complete in order.
type Bus interface {
	Read(reg Register) uint32
	Write(reg Register, v uint32)
}

// KeyHandle selects a hardware-held key for the KDF without exposing its value.
type KeyHandle int

const (
	HandleKDR   KeyHandle = iota // HandleKDR is the device root key.
	HandleKPRTL                  // HandleKPRTL is the manufacturer's provisioning key.
)

func (h KeyHandle) String() string {
	switch h {
	case HandleKDR:
		return "KDR"
	case HandleKPRTL:
		return "KPRTL"
	default:
		return fmt.Sprintf("KeyHandle(%d)", int(h))
	}
}

// StatusOK is the KDF status code for a successful derivation. Any other code is a failure.
const StatusOK uint32 = 0

// KDF is the secure element's key derivation primitive. DeriveKey fills out with key material
// derived from the key selected by handle, label, and context, and returns a status code.
type KDF interface {
	DeriveKey(handle KeyHandle, label, context, out []byte) uint32
}

// Reporter is a one-way diagnostic sink.
type Reporter interface {
	Report(msg string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(msg string)

// Report calls f(msg).
func (f ReporterFunc) Report(msg string) {
	f(msg)
}

// Discard is a Reporter which drops every message.
//
//nolint:gochecknoglobals // reusable sink
var Discard Reporter = ReporterFunc(func(string) {})

var (
	// ErrInvalidState is returned when the lifecycle state does not read back as valid.
	ErrInvalidState = errors.New("lifecycle state is invalid")

	// ErrNotSecure is returned when the lifecycle state does not read back as Secure.
	ErrNotSecure = errors.New("lifecycle state is not secure")

	// ErrAlreadyLocked is returned when the lifecycle state has already been written this reset.
	ErrAlreadyLocked = errors.New("lifecycle state already written this reset")

	// ErrEnableFailed is returned when the secure element does not report enabled.
	ErrEnableFailed = errors.New("secure element enable failed")

	// ErrLifecycleFailed is returned when the lifecycle state cannot be locked to Secure.
	ErrLifecycleFailed = errors.New("lifecycle lock failed")

	// ErrVerificationFailed is returned when the root key does not read back as set.
	ErrVerificationFailed = errors.New("root key verification failed")

	// ErrAlreadyProvisioned is returned when provisioning has already been attempted this reset.
	ErrAlreadyProvisioned = errors.New("root key provisioning already attempted this reset")

	// ErrKPRTLLockFailed is returned when the KPRTL lock does not read back as locked.
	ErrKPRTLLockFailed = errors.New("KPRTL lock failed")

	// ErrNotProvisioned is returned when a key is derived before the root key is verified.
	ErrNotProvisioned = errors.New("root key not provisioned")

	// ErrInvalidInput is returned when a derivation label, context, or size is out of bounds.
	ErrInvalidInput = errors.New("invalid derivation input")

	// ErrKDFFailed is returned when the KDF reports a non-OK status.
	ErrKDFFailed = errors.New("key derivation failed")
)

// LifecycleError describes which lifecycle state checks failed after locking. It matches
// ErrInvalidState and ErrNotSecure with errors.Is.
type LifecycleError struct {
	Invalid   bool // The LCS_IS_VALID field did not read Valid.
	NotSecure bool // The LCS field did not read Secure.
}

func (e *LifecycleError) Error() string {
	errs := e.Unwrap()
	msgs := make([]string, len(errs))

	for i, err := range errs {
		msgs[i] = err.Error()
	}

	return strings.Join(msgs, "; ")
}

// Unwrap returns the sentinel for each failed check.
func (e *LifecycleError) Unwrap() []error {
	var errs []error

	if e.Invalid {
		errs = append(errs, ErrInvalidState)
	}

	if e.NotSecure {
		errs = append(errs, ErrNotSecure)
	}

	return errs
}

// ProvisionError describes the provisioning stage which failed.
type ProvisionError struct {
	Op  error // One of ErrEnableFailed, ErrLifecycleFailed, or ErrVerificationFailed.
	Err error // The underlying cause, if any.
}

func (e *ProvisionError) Error() string {
	if e.Err == nil {
		return e.Op.Error()
	}

	return e.Op.Error() + ": " + e.Err.Error()
}

// Unwrap returns the failed stage and its cause.
func (e *ProvisionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Op}
	}

	return []error{e.Op, e.Err}
}

// KDFError carries the status code of a failed derivation. It matches ErrKDFFailed with
// errors.Is.
type KDFError struct {
	Code uint32
}

func (e *KDFError) Error() string {
	return fmt.Sprintf("%s: status 0x%08x", ErrKDFFailed, e.Code)
}

// Is returns true if target is ErrKDFFailed.
func (e *KDFError) Is(target error) bool {
	return target == ErrKDFFailed
}

var (
	_ error = &LifecycleError{}
	_ error = &ProvisionError{}
	_ error = &KDFError{}
)
