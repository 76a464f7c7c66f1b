package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codahale/kdr/pkg/kdr"
)

// Fault is an injectable hardware fault.
type Fault int

const (
	FaultEnableStuck  Fault = iota + 1 // FaultEnableStuck keeps the block disabled.
	FaultLCSInvalid                    // FaultLCSInvalid leaves LCS_IS_VALID at Invalid.
	FaultLCSNotSecure                  // FaultLCSNotSecure latches DebugEnable instead of Secure.
	FaultKDRStuck0                     // FaultKDRStuck0 keeps HOST_IOT_KDR0 from latching.
	FaultKDRStuck1                     // FaultKDRStuck1 keeps HOST_IOT_KDR1 from latching.
	FaultKDRStuck2                     // FaultKDRStuck2 keeps HOST_IOT_KDR2 from latching.
	FaultKDRStuck3                     // FaultKDRStuck3 keeps HOST_IOT_KDR3 from latching.
	FaultKDF                           // FaultKDF fails every derivation after a partial write.
)

//nolint:gochecknoglobals // lookup table
var faultNames = map[Fault]string{
	FaultEnableStuck:  "enable-stuck",
	FaultLCSInvalid:   "lcs-invalid",
	FaultLCSNotSecure: "lcs-not-secure",
	FaultKDRStuck0:    "kdr0-stuck",
	FaultKDRStuck1:    "kdr1-stuck",
	FaultKDRStuck2:    "kdr2-stuck",
	FaultKDRStuck3:    "kdr3-stuck",
	FaultKDF:          "kdf",
}

// ErrUnknownFault is returned when a fault name is not recognized.
var ErrUnknownFault = errors.New("unknown fault")

func (f Fault) String() string {
	if s, ok := faultNames[f]; ok {
		return s
	}

	return fmt.Sprintf("Fault(%d)", int(f))
}

// MarshalText encodes the fault as its name.
func (f Fault) MarshalText() ([]byte, error) {
	if _, ok := faultNames[f]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFault, int(f))
	}

	return []byte(f.String()), nil
}

// UnmarshalText decodes a fault name.
func (f *Fault) UnmarshalText(text []byte) error {
	v, err := ParseFault(string(text))
	if err != nil {
		return err
	}

	*f = v

	return nil
}

// ParseFault returns the fault with the given name.
func ParseFault(name string) (Fault, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for f, s := range faultNames {
		if s == name {
			return f, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownFault, name)
}

// Status codes returned by Device.DeriveKey.
const (
	StatusOK                 = kdr.StatusOK
	statusBase        uint32 = 0x80000000
	StatusInvalidKeyType     = statusBase + 0x01
	StatusDataInSizeInvalid  = statusBase + 0x03
	StatusDataOutSizeInvalid = statusBase + 0x05
	StatusFatal              = statusBase + 0x06
	StatusKDRInvalid         = statusBase + 0x0A
	StatusLCSInvalid         = statusBase + 0x0B
	StatusKeyLocked          = statusBase + 0x0C
)

// StatusText returns a description of a status code.
func StatusText(code uint32) string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusInvalidKeyType:
		return "invalid key type"
	case StatusDataInSizeInvalid:
		return "invalid label or context size"
	case StatusDataOutSizeInvalid:
		return "invalid output size"
	case StatusFatal:
		return "fatal error"
	case StatusKDRInvalid:
		return "root key not set"
	case StatusLCSInvalid:
		return "lifecycle state not secure"
	case StatusKeyLocked:
		return "key locked until reset"
	default:
		return fmt.Sprintf("unknown status 0x%08x", code)
	}
}
