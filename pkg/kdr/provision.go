package kdr

import "github.com/codahale/kdr/pkg/kdr/internal/wipe"

// RootKeyWords is the number of 32-bit words in a root key.
const RootKeyWords = 4

// RootKey is a device root key. In production it must come from a protected, authenticated
// source, such as a secure configuration area decrypted with the KPRTL key.
type RootKey [RootKeyWords]uint32

// Destroy zeroes the key words.
func (k *RootKey) Destroy() {
	wipe.Words(k[:])
}

// String never returns key material.
func (k RootKey) String() string {
	return "RootKey(redacted)"
}

// TestRootKey returns a fixed, publicly known root key. It is a test-only stand-in and is never a
// real secret.
func TestRootKey() RootKey {
	return RootKey{0xBADEBA11, 0xBADEBA11, 0xBADEBA11, 0xBADEBA11}
}

// Provisioner programs the root key into the secure element. A Provisioner covers a single reset
// and makes at most one provisioning attempt: the KDR registers cannot be rewritten, so a failed
// attempt needs a hardware reset before it can be retried.
type Provisioner struct {
	bus         Bus
	lcs         *Controller
	attempted   bool
	provisioned bool
}

// NewProvisioner returns a Provisioner which locks the lifecycle state with lcs.
func NewProvisioner(bus Bus, lcs *Controller) *Provisioner {
	return &Provisioner{bus: bus, lcs: lcs}
}

// Provision enables the secure element, locks the lifecycle state to Secure, writes the root key,
// and verifies that it is set. Failures are returned as a *ProvisionError. Provision's copy of the
// key is zeroed before it returns.
func (p *Provisioner) Provision(key RootKey) error {
	defer key.Destroy()

	if p.attempted {
		return ErrAlreadyProvisioned
	}

	p.attempted = true

	// Enable the secure element and check that it took.
	p.bus.Write(RegEnable, EnableEnabled)

	if p.bus.Read(RegEnable) != EnableEnabled {
		return &ProvisionError{Op: ErrEnableFailed}
	}

	// Lock the lifecycle state to Secure.
	if err := p.lcs.LockSecure(); err != nil {
		return &ProvisionError{Op: ErrLifecycleFailed, Err: err}
	}

	// Write the root key words, in order.
	for i, reg := range KDRRegisters {
		p.bus.Write(reg, key[i])
	}

	// Verify that every word latched.
	if !p.lcs.IsRootKeySet() {
		return &ProvisionError{Op: ErrVerificationFailed}
	}

	p.provisioned = true

	return nil
}

// Provisioned returns true if Provision succeeded.
func (p *Provisioner) Provisioned() bool {
	return p.provisioned
}

// LockKPRTL locks the KPRTL key from use until the next reset. Call it once the secure
// configuration area has been consumed.
func (p *Provisioner) LockKPRTL() error {
	p.bus.Write(RegKPRTLLock, KPRTLLocked)

	if p.bus.Read(RegKPRTLLock) != KPRTLLocked {
		return ErrKPRTLLockFailed
	}

	return nil
}
