package kdr

import "fmt"

// Register is the address of a 32-bit secure element register.
type Register uint32

const (
	RegEnable    Register = 0x5002A500 // RegEnable gates the secure element's power and clock.
	RegKPRTLLock Register = 0x5002BA4C // RegKPRTLLock is the write-once KPRTL lock.
	RegKDR0      Register = 0x5002BA50 // RegKDR0 is the first write-once root key word.
	RegKDR1      Register = 0x5002BA54 // RegKDR1 is the second write-once root key word.
	RegKDR2      Register = 0x5002BA58 // RegKDR2 is the third write-once root key word.
	RegKDR3      Register = 0x5002BA5C // RegKDR3 is the fourth write-once root key word.
	RegLCS       Register = 0x5002BA60 // RegLCS is the write-once lifecycle state.
	RegDeviceID0 Register = 0x10000060 // RegDeviceID0 is the low word of the factory device ID.
	RegDeviceID1 Register = 0x10000064 // RegDeviceID1 is the high word of the factory device ID.
)

// KDRRegisters are the root key word registers, in write order.
//
//nolint:gochecknoglobals // register map
var KDRRegisters = [RootKeyWords]Register{RegKDR0, RegKDR1, RegKDR2, RegKDR3}

// Field values of RegEnable.
const (
	EnableDisabled uint32 = 0
	EnableEnabled  uint32 = 1
)

// Fields of RegLCS.
const (
	LCSPos  = 0
	LCSMask = uint32(0x7) << LCSPos

	LCSDebugEnable uint32 = 0 // LCSDebugEnable is the power-on lifecycle state.
	LCSSecure      uint32 = 2 // LCSSecure is the locked lifecycle state.

	LCSIsValidPos  = 8
	LCSIsValidMask = uint32(0x1) << LCSIsValidPos

	LCSIsValidInvalid uint32 = 0
	LCSIsValidValid   uint32 = 1
)

// KDRSet is the value a KDR register reads back once it has been written.
const KDRSet uint32 = 1

// KPRTLLocked is the value RegKPRTLLock reads back once the KPRTL key is locked.
const KPRTLLocked uint32 = 1

func (r Register) String() string {
	switch r {
	case RegEnable:
		return "ENABLE"
	case RegKPRTLLock:
		return "HOST_IOT_KPRTL_LOCK"
	case RegKDR0:
		return "HOST_IOT_KDR0"
	case RegKDR1:
		return "HOST_IOT_KDR1"
	case RegKDR2:
		return "HOST_IOT_KDR2"
	case RegKDR3:
		return "HOST_IOT_KDR3"
	case RegLCS:
		return "HOST_IOT_LCS"
	case RegDeviceID0:
		return "DEVICEID[0]"
	case RegDeviceID1:
		return "DEVICEID[1]"
	default:
		return fmt.Sprintf("0x%08X", uint32(r))
	}
}

// field extracts the field at pos under mask from v.
func field(v, mask uint32, pos int) uint32 {
	return (v & mask) >> pos
}
