package kdr

import "fmt"

// LifecycleState is software's view of the secure element's lifecycle state for one reset.
//
//	Uninitialized --LockSecure--> Secure | Invalid
//
// Secure and Invalid are terminal until the next hardware reset.
type LifecycleState int

const (
	Uninitialized LifecycleState = iota // Uninitialized is the state before LockSecure.
	Secure                              // Secure is a verified Secure lock.
	Invalid                             // Invalid is a lock which failed verification.
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Secure:
		return "Secure"
	case Invalid:
		return "Invalid"
	default:
		return fmt.Sprintf("LifecycleState(%d)", int(s))
	}
}

// Controller drives the one-way lifecycle state transition and checks the root key latches. A
// Controller covers a single reset; create a new one after the hardware is reset.
type Controller struct {
	bus   Bus
	state LifecycleState
}

// NewController returns a Controller in the Uninitialized state.
func NewController(bus Bus) *Controller {
	return &Controller{bus: bus}
}

// State returns the lifecycle state as of the last LockSecure call.
func (c *Controller) State() LifecycleState {
	return c.state
}

// IsRootKeySet returns true if all four KDR registers read back as set. Any unset register,
// including a partially-set key, returns false.
func (c *Controller) IsRootKeySet() bool {
	set := true

	// Read every latch, even after a miss, so each register is sampled once per check.
	for _, reg := range KDRRegisters {
		if c.bus.Read(reg) != KDRSet {
			set = false
		}
	}

	return set
}

// LockSecure writes Secure to the lifecycle state register and verifies it. The register is
// write-once per reset, so LockSecure must be called at most once; a second call returns
// ErrAlreadyLocked without touching the hardware. A failed verification returns a
// *LifecycleError naming every failed check and leaves the Controller Invalid.
func (c *Controller) LockSecure() error {
	if c.state != Uninitialized {
		return fmt.Errorf("%w: state is %s", ErrAlreadyLocked, c.state)
	}

	// Write the lifecycle state.
	c.bus.Write(RegLCS, LCSSecure<<LCSPos)

	// Read the register once to force the write to complete before verifying it.
	_ = c.bus.Read(RegLCS)

	// Verify the lifecycle state is both valid and Secure.
	v := c.bus.Read(RegLCS)
	lerr := &LifecycleError{
		Invalid:   field(v, LCSIsValidMask, LCSIsValidPos) != LCSIsValidValid,
		NotSecure: field(v, LCSMask, LCSPos) != LCSSecure,
	}

	if lerr.Invalid || lerr.NotSecure {
		c.state = Invalid
		return lerr
	}

	c.state = Secure

	return nil
}
