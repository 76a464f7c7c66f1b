package kdr

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// DeviceID is the factory-programmed, per-device identifier.
type DeviceID [2]uint32

// ReadDeviceID reads the device ID words.
func ReadDeviceID(bus Bus) DeviceID {
	return DeviceID{bus.Read(RegDeviceID0), bus.Read(RegDeviceID1)}
}

// Bytes returns the device ID as it is laid out in memory: two little-endian words.
func (id DeviceID) Bytes() []byte {
	b := make([]byte, 0, 8)
	b = binary.LittleEndian.AppendUint32(b, id[0])

	return binary.LittleEndian.AppendUint32(b, id[1])
}

// String returns the device ID as base58 text.
func (id DeviceID) String() string {
	return base58.Encode(id.Bytes())
}

var _ fmt.Stringer = DeviceID{}

// DefaultLabel is the label of the key encryption key derived at boot.
const DefaultLabel = "KEY ENC KEY"

// Config is the input to Sequence.
type Config struct {
	RootKey   RootKey // RootKey is the root key to provision.
	Label     []byte  // Label names the derived key's purpose.
	Context   []byte  // Context binds the derived key to the device; if nil, the device ID is used.
	KeySize   int     // KeySize is the derived key size in bytes; if zero, KeySize is used.
	LockKPRTL bool    // LockKPRTL locks the KPRTL key after provisioning.
}

// Sequence runs the boot-time provisioning and derivation sequence once against a freshly reset
// secure element: provision the root key, optionally lock the KPRTL key, derive a key, pass it to
// use, and zero it. Each failure is reported once to r and returned; a provisioning failure ends
// the sequence, since an unverified root key must never be used. Sequence's copy of the root key
// is zeroed before it returns.
func Sequence(cfg Config, bus Bus, kdf KDF, r Reporter, use func(key []byte) error) error {
	defer cfg.RootKey.Destroy()

	lcs := NewController(bus)
	p := NewProvisioner(bus, lcs)

	// Provision the root key.
	if err := p.Provision(cfg.RootKey); err != nil {
		r.Report(fmt.Sprintf("root key provisioning failed: %v", err))
		return err
	}

	r.Report("root key provisioned, lifecycle state is " + lcs.State().String())

	// Lock the KPRTL key, if asked.
	if cfg.LockKPRTL {
		if err := p.LockKPRTL(); err != nil {
			r.Report(fmt.Sprintf("KPRTL lock failed: %v", err))
			return err
		}

		r.Report("KPRTL key locked until reset")
	}

	// Bind the derived key to this device unless a context was given.
	context := cfg.Context
	if context == nil {
		id := ReadDeviceID(bus)
		context = id.Bytes()

		r.Report("using device ID " + id.String() + " as derivation context")
	}

	n := cfg.KeySize
	if n == 0 {
		n = KeySize
	}

	// Derive the key and hand it off. The deriver zeroes it once use returns.
	var useErr error

	err := NewDeriver(p, kdf).DeriveFunc(cfg.Label, context, n, func(key []byte) error {
		r.Report(fmt.Sprintf("successfully derived %d-byte key", len(key)))

		if use != nil {
			useErr = use(key)
		}

		return useErr
	})

	switch {
	case useErr != nil:
		r.Report(fmt.Sprintf("derived key consumer failed: %v", useErr))
	case err != nil:
		r.Report(fmt.Sprintf("error while deriving key: %v", err))
	}

	return err
}
