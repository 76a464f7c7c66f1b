// Package sim provides a simulated secure element for testing and demonstrating root key
// provisioning.
//
// A Device implements both kdr.Bus and kdr.KDF. It models the parts of a CryptoCell-style host
// register file which provisioning depends on:
//
//   - Writes to the host registers are ignored while the block is disabled, and reads return 0.
//   - The lifecycle state register is write-once per reset. Writes to it are posted: the first
//     read after a write returns the old value and completes the write.
//   - Each KDR register latches on its first write after reset, accepts writes only while the
//     lifecycle state is a valid Secure, and reads back 1 when set.
//   - The KDF reads the latched KDR through an internal key path and never exposes it.
//
// All access to a Device is serialized by a single mutex.
package sim

import (
	"encoding/binary"
	"sync"

	"github.com/codahale/kdr/pkg/kdr"
	"github.com/codahale/kdr/pkg/kdr/internal/sp800108"
	"github.com/codahale/kdr/pkg/kdr/internal/wipe"
	"github.com/google/uuid"
)

// MaxOutput is the largest derived key the simulated KDF produces, in bytes.
const MaxOutput = 4 * sp800108.BlockSize

// DefaultDeviceID is the device ID of a Device created without WithDeviceID.
//
//nolint:gochecknoglobals // test fixture
var DefaultDeviceID = kdr.DeviceID{0x01020304, 0x05060708}

// Access is one register access recorded by a Device. The values of KDR writes are not recorded.
type Access struct {
	Write bool
	Reg   kdr.Register
	Value uint32
}

// RegisterValue is a register and the value a read would return.
type RegisterValue struct {
	Reg   kdr.Register
	Value uint32
}

// Option configures a Device.
type Option func(d *Device)

// WithDeviceID sets the factory device ID.
func WithDeviceID(id kdr.DeviceID) Option {
	return func(d *Device) {
		d.deviceID = id
	}
}

// WithFaults injects hardware faults which persist across resets.
func WithFaults(faults ...Fault) Option {
	return func(d *Device) {
		for _, f := range faults {
			d.faults[f] = true
		}
	}
}

// WithoutPostedWrites makes lifecycle state writes complete immediately.
func WithoutPostedWrites() Option {
	return func(d *Device) {
		d.posted = false
	}
}

// Device is a simulated secure element.
type Device struct {
	mu    sync.Mutex
	claim sync.Mutex

	deviceID kdr.DeviceID
	faults   map[Fault]bool
	posted   bool
	kprtl    [kdr.RootKeyWords]uint32

	bootID      uuid.UUID
	enable      uint32
	lcs         uint32
	lcsWritten  bool
	lcsPending  bool
	lcsPosted   uint32
	kdrWords    [kdr.RootKeyWords]uint32
	kdrSet      [kdr.RootKeyWords]bool
	kprtlLocked bool
	kdfCalls    int
	trace       []Access
}

// New returns a Device in its power-on reset state.
func New(opts ...Option) *Device {
	d := &Device{
		deviceID: DefaultDeviceID,
		faults:   make(map[Fault]bool),
		posted:   true,
		kprtl:    [kdr.RootKeyWords]uint32{0x4B505254, 0x4C544553, 0x54204B45, 0x59000000},
	}

	for _, opt := range opts {
		opt(d)
	}

	d.reset()

	return d
}

// Reset returns every register to its power-on value and starts a new boot.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reset()
}

// Claim takes exclusive use of the device for a whole sequence of accesses and returns the
// function which releases it.
func (d *Device) Claim() (release func()) {
	d.claim.Lock()

	return d.claim.Unlock
}

// BootID returns the identifier of the current boot.
func (d *Device) BootID() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.bootID
}

// KDFCalls returns the number of DeriveKey calls since the last reset.
func (d *Device) KDFCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.kdfCalls
}

// Trace returns the register accesses since the last reset.
func (d *Device) Trace() []Access {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Access(nil), d.trace...)
}

// Registers returns what a read of each register would return, without completing posted writes.
func (d *Device) Registers() []RegisterValue {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := []kdr.Register{
		kdr.RegEnable, kdr.RegLCS,
		kdr.RegKDR0, kdr.RegKDR1, kdr.RegKDR2, kdr.RegKDR3,
		kdr.RegKPRTLLock, kdr.RegDeviceID0, kdr.RegDeviceID1,
	}

	out := make([]RegisterValue, len(regs))
	for i, reg := range regs {
		out[i] = RegisterValue{Reg: reg, Value: d.peek(reg)}
	}

	return out
}

// Read returns the value of a register.
func (d *Device) Read(reg kdr.Register) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := d.peek(reg)

	// A read of the lifecycle state completes a posted write after sampling the old value.
	if reg == kdr.RegLCS && d.enable == kdr.EnableEnabled {
		d.complete()
	}

	d.trace = append(d.trace, Access{Reg: reg, Value: v})

	return v
}

// Write writes a value to a register.
func (d *Device) Write(reg kdr.Register, v uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Writes complete in order.
	d.complete()

	if i, ok := kdrIndex(reg); ok {
		d.trace = append(d.trace, Access{Write: true, Reg: reg})
		d.writeKDR(i, v)

		return
	}

	d.trace = append(d.trace, Access{Write: true, Reg: reg, Value: v})

	switch {
	case reg == kdr.RegEnable:
		if !d.faults[FaultEnableStuck] {
			d.enable = v & kdr.EnableEnabled
		}
	case d.enable != kdr.EnableEnabled:
		// The host register file is gated off.
	case reg == kdr.RegLCS:
		d.writeLCS(v)
	case reg == kdr.RegKPRTLLock:
		if v&kdr.KPRTLLocked != 0 {
			d.kprtlLocked = true
		}
	}
}

// DeriveKey runs the SP 800-108 KDF with the selected hardware key and returns a status code.
func (d *Device) DeriveKey(handle kdr.KeyHandle, label, context, out []byte) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.kdfCalls++
	d.complete()

	if d.enable != kdr.EnableEnabled {
		return StatusFatal
	}

	if len(label) == 0 || len(label) > kdr.MaxLabelSize ||
		len(context) == 0 || len(context) > kdr.MaxContextSize {
		return StatusDataInSizeInvalid
	}

	if len(out) == 0 || len(out) > MaxOutput {
		return StatusDataOutSizeInvalid
	}

	// Select the key through the internal key path.
	var words [kdr.RootKeyWords]uint32

	switch handle {
	case kdr.HandleKDR:
		if !d.lcsSecure() {
			return StatusLCSInvalid
		}

		if !d.kdrComplete() {
			return StatusKDRInvalid
		}

		words = d.kdrWords
	case kdr.HandleKPRTL:
		if d.kprtlLocked {
			return StatusKeyLocked
		}

		words = d.kprtl
	default:
		return StatusInvalidKeyType
	}

	key := wordBytes(&words)
	defer wipe.Bytes(key)

	wipe.Words(words[:])

	// Fail halfway through the output, leaving it partially written.
	if d.faults[FaultKDF] {
		for i := range out[:len(out)/2] {
			out[i] = 0xA5
		}

		return StatusFatal
	}

	if err := sp800108.Derive(key, label, context, out); err != nil {
		return StatusFatal
	}

	return StatusOK
}

// Vector computes a derivation from key bytes in the clear, as DeriveKey would from the same bytes
// latched in the KDR registers. It exists for producing test vectors.
func Vector(key, label, context, out []byte) error {
	return sp800108.Derive(key, label, context, out)
}

func (d *Device) reset() {
	d.bootID = uuid.New()
	d.enable = kdr.EnableDisabled
	d.lcs = kdr.LCSDebugEnable<<kdr.LCSPos | kdr.LCSIsValidInvalid<<kdr.LCSIsValidPos
	d.lcsWritten = false
	d.lcsPending = false
	d.lcsPosted = 0
	wipe.Words(d.kdrWords[:])
	d.kdrSet = [kdr.RootKeyWords]bool{}
	d.kprtlLocked = false
	d.kdfCalls = 0
	d.trace = nil
}

// peek returns what a read of reg would return, without side effects.
func (d *Device) peek(reg kdr.Register) uint32 {
	switch reg {
	case kdr.RegDeviceID0:
		return d.deviceID[0]
	case kdr.RegDeviceID1:
		return d.deviceID[1]
	case kdr.RegEnable:
		return d.enable
	}

	if d.enable != kdr.EnableEnabled {
		return 0
	}

	if i, ok := kdrIndex(reg); ok {
		if d.kdrSet[i] {
			return kdr.KDRSet
		}

		return 0
	}

	switch reg {
	case kdr.RegLCS:
		return d.lcs
	case kdr.RegKPRTLLock:
		if d.kprtlLocked {
			return kdr.KPRTLLocked
		}
	}

	return 0
}

func (d *Device) writeLCS(v uint32) {
	// The lifecycle state takes only the first write after reset.
	if d.lcsWritten {
		return
	}

	d.lcsWritten = true

	state := (v & kdr.LCSMask) >> kdr.LCSPos
	if d.faults[FaultLCSNotSecure] {
		state = kdr.LCSDebugEnable
	}

	valid := kdr.LCSIsValidInvalid
	if (state == kdr.LCSDebugEnable || state == kdr.LCSSecure) && !d.faults[FaultLCSInvalid] {
		valid = kdr.LCSIsValidValid
	}

	next := state<<kdr.LCSPos | valid<<kdr.LCSIsValidPos

	if d.posted {
		d.lcsPending = true
		d.lcsPosted = next

		return
	}

	d.lcs = next
}

func (d *Device) writeKDR(i int, v uint32) {
	switch {
	case d.enable != kdr.EnableEnabled:
	case d.kdrSet[i]:
	case !d.lcsSecure():
	case d.faults[FaultKDRStuck0+Fault(i)]:
	default:
		d.kdrWords[i] = v
		d.kdrSet[i] = true
	}
}

// complete finishes a posted lifecycle state write.
func (d *Device) complete() {
	if d.lcsPending {
		d.lcs = d.lcsPosted
		d.lcsPending = false
	}
}

func (d *Device) lcsSecure() bool {
	return (d.lcs&kdr.LCSMask)>>kdr.LCSPos == kdr.LCSSecure &&
		(d.lcs&kdr.LCSIsValidMask)>>kdr.LCSIsValidPos == kdr.LCSIsValidValid
}

func (d *Device) kdrComplete() bool {
	for _, set := range d.kdrSet {
		if !set {
			return false
		}
	}

	return true
}

func kdrIndex(reg kdr.Register) (int, bool) {
	for i, r := range kdr.KDRRegisters {
		if r == reg {
			return i, true
		}
	}

	return 0, false
}

// wordBytes serializes key words little-endian, as they sit in the key registers.
func wordBytes(words *[kdr.RootKeyWords]uint32) []byte {
	b := make([]byte, 4*kdr.RootKeyWords)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}

	return b
}

var (
	_ kdr.Bus = &Device{}
	_ kdr.KDF = &Device{}
)
