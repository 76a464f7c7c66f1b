package kdr

import (
	"crypto/sha256"
	"encoding/binary"
)

// fakeBus is a register file which latches every write, except to stuck registers, and records
// each access by name.
type fakeBus struct {
	regs     map[Register]uint32
	written  map[Register][]uint32
	stuck    map[Register]bool
	accesses []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		regs:    map[Register]uint32{RegDeviceID0: 0x01020304, RegDeviceID1: 0x05060708},
		written: make(map[Register][]uint32),
		stuck:   make(map[Register]bool),
	}
}

// stick makes writes to reg ignored, leaving it reading v.
func (b *fakeBus) stick(reg Register, v uint32) {
	b.stuck[reg] = true
	b.regs[reg] = v
}

func (b *fakeBus) Read(reg Register) uint32 {
	b.accesses = append(b.accesses, "R "+reg.String())

	return b.regs[reg]
}

func (b *fakeBus) Write(reg Register, v uint32) {
	b.accesses = append(b.accesses, "W "+reg.String())
	b.written[reg] = append(b.written[reg], v)

	if b.stuck[reg] {
		return
	}

	switch reg {
	case RegLCS:
		b.regs[reg] = v | LCSIsValidValid<<LCSIsValidPos
	case RegKDR0, RegKDR1, RegKDR2, RegKDR3:
		b.regs[reg] = KDRSet
	default:
		b.regs[reg] = v
	}
}

// stubKDF returns a fixed vector for a known label and context, or a hash of its inputs. A non-OK
// status fills the whole buffer before failing.
type stubKDF struct {
	status  uint32
	vectors map[string][]byte
	calls   int
	handle  KeyHandle
	out     []byte
}

func (k *stubKDF) DeriveKey(handle KeyHandle, label, context, out []byte) uint32 {
	k.calls++
	k.handle = handle
	k.out = out

	if k.status != StatusOK {
		for i := range out {
			out[i] = 0xFF
		}

		return k.status
	}

	if v, ok := k.vectors[string(label)+"|"+string(context)]; ok {
		copy(out, v)

		return StatusOK
	}

	h := sha256.New()
	_ = binary.Write(h, binary.BigEndian, uint32(len(out)))
	_, _ = h.Write(label)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(context)

	copy(out, h.Sum(nil))

	return StatusOK
}

// provisioned returns a Provisioner which has provisioned the test root key on a fake bus.
func provisioned() *Provisioner {
	bus := newFakeBus()
	p := NewProvisioner(bus, NewController(bus))

	if err := p.Provision(TestRootKey()); err != nil {
		panic(err)
	}

	return p
}
