package kdr

import (
	"errors"
	"testing"

	"github.com/codahale/gubbins/assert"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestProvisioner_Provision(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	lcs := NewController(bus)
	p := NewProvisioner(bus, lcs)

	if err := p.Provision(TestRootKey()); err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "provisioned", true, p.Provisioned())
	assert.Equal(t, "lifecycle state", Secure, lcs.State())
	assert.Equal(t, "root key set", true, lcs.IsRootKeySet())
	assert.Equal(t, "accesses", []string{
		"W ENABLE",
		"R ENABLE",
		"W HOST_IOT_LCS",
		"R HOST_IOT_LCS",
		"R HOST_IOT_LCS",
		"W HOST_IOT_KDR0",
		"W HOST_IOT_KDR1",
		"W HOST_IOT_KDR2",
		"W HOST_IOT_KDR3",
		"R HOST_IOT_KDR0",
		"R HOST_IOT_KDR1",
		"R HOST_IOT_KDR2",
		"R HOST_IOT_KDR3",
		"R HOST_IOT_KDR0",
		"R HOST_IOT_KDR1",
		"R HOST_IOT_KDR2",
		"R HOST_IOT_KDR3",
	}, bus.accesses)
}

func TestProvisioner_Provision_WritesWordsVerbatim(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	p := NewProvisioner(bus, NewController(bus))

	if err := p.Provision(RootKey{0x00000001, 0x00000002, 0xFFFFFFFF, 0xBADEBA11}); err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "KDR0", []uint32{0x00000001}, bus.written[RegKDR0])
	assert.Equal(t, "KDR1", []uint32{0x00000002}, bus.written[RegKDR1])
	assert.Equal(t, "KDR2", []uint32{0xFFFFFFFF}, bus.written[RegKDR2])
	assert.Equal(t, "KDR3", []uint32{0xBADEBA11}, bus.written[RegKDR3])
}

func TestProvisioner_Provision_EnableFailed(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	bus.stick(RegEnable, EnableDisabled)

	lcs := NewController(bus)
	p := NewProvisioner(bus, lcs)
	err := p.Provision(TestRootKey())

	assert.Equal(t, "error", ErrEnableFailed, err, cmpopts.EquateErrors())
	assert.Equal(t, "lifecycle untouched", 0, len(bus.written[RegLCS]))
	assert.Equal(t, "lifecycle state", Uninitialized, lcs.State())
	assert.Equal(t, "provisioned", false, p.Provisioned())
}

func TestProvisioner_Provision_LifecycleFailed(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	bus.stick(RegLCS, LCSDebugEnable<<LCSPos | LCSIsValidInvalid<<LCSIsValidPos)

	p := NewProvisioner(bus, NewController(bus))
	err := p.Provision(TestRootKey())

	var perr *ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want a *ProvisionError", err)
	}

	assert.Equal(t, "op", ErrLifecycleFailed, perr.Op, cmpopts.EquateErrors())
	assert.Equal(t, "is invalid state", true, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "is not secure", true, errors.Is(err, ErrNotSecure))
	assert.Equal(t, "no key written", 0, len(bus.written[RegKDR0]))
	assert.Equal(t, "provisioned", false, p.Provisioned())
}

func TestProvisioner_Provision_VerificationFailed(t *testing.T) {
	t.Parallel()

	for _, stuck := range KDRRegisters {
		bus := newFakeBus()
		bus.stick(stuck, 0)

		p := NewProvisioner(bus, NewController(bus))
		err := p.Provision(TestRootKey())

		assert.Equal(t, stuck.String()+" stuck", ErrVerificationFailed, err, cmpopts.EquateErrors())
		assert.Equal(t, "provisioned", false, p.Provisioned())
	}
}

func TestProvisioner_Provision_Once(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	bus.stick(RegKDR2, 0)

	p := NewProvisioner(bus, NewController(bus))
	_ = p.Provision(TestRootKey())

	n := len(bus.accesses)
	err := p.Provision(TestRootKey())

	assert.Equal(t, "error", ErrAlreadyProvisioned, err, cmpopts.EquateErrors())
	assert.Equal(t, "no hardware access", n, len(bus.accesses))
}

func TestProvisioner_Provision_LifecycleAlreadyLocked(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	lcs := NewController(bus)

	if err := lcs.LockSecure(); err != nil {
		t.Fatal(err)
	}

	err := NewProvisioner(bus, lcs).Provision(TestRootKey())

	assert.Equal(t, "stage", ErrLifecycleFailed, err, cmpopts.EquateErrors())
	assert.Equal(t, "cause", ErrAlreadyLocked, err, cmpopts.EquateErrors())
}

func TestProvisioner_LockKPRTL(t *testing.T) {
	t.Parallel()

	p := provisioned()

	assert.Equal(t, "error", nil, p.LockKPRTL(), cmpopts.EquateErrors())

	bus := newFakeBus()
	bus.stick(RegKPRTLLock, 0)

	err := NewProvisioner(bus, NewController(bus)).LockKPRTL()

	assert.Equal(t, "stuck error", ErrKPRTLLockFailed, err, cmpopts.EquateErrors())
}

func TestProvisionError_Error(t *testing.T) {
	t.Parallel()

	err := &ProvisionError{Op: ErrLifecycleFailed, Err: &LifecycleError{NotSecure: true}}

	assert.Equal(t, "with cause", "lifecycle lock failed: lifecycle state is not secure", err.Error())
	assert.Equal(t, "without cause", "root key verification failed",
		(&ProvisionError{Op: ErrVerificationFailed}).Error())
}

func TestRootKey_Destroy(t *testing.T) {
	t.Parallel()

	k := TestRootKey()
	k.Destroy()

	assert.Equal(t, "destroyed", RootKey{}, k)
	assert.Equal(t, "string", "RootKey(redacted)", TestRootKey().String())
}
