package kdr

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/codahale/gubbins/assert"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type recorder []string

func (r *recorder) Report(msg string) {
	*r = append(*r, msg)
}

func TestSequence(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	vector, _ := hex.DecodeString("c0ffeec0ffeec0ffeec0ffeec0ffee00")
	kdf := &stubKDF{vectors: map[string][]byte{
		DefaultLabel + "|" + string(testContext): vector,
	}}

	var (
		r    recorder
		seen []byte
		got  []byte
	)

	cfg := Config{RootKey: TestRootKey(), Label: []byte(DefaultLabel)}

	err := Sequence(cfg, bus, kdf, &r, func(key []byte) error {
		got = append(got, key...)
		seen = key

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "derived key", vector, got)
	assert.Equal(t, "buffer wiped", make([]byte, KeySize), seen)
	assert.Equal(t, "root key set", true, NewController(bus).IsRootKeySet())
	assert.Equal(t, "root key words", []uint32{0xBADEBA11}, bus.written[RegKDR3])
	assert.Equal(t, "reports", recorder{
		"root key provisioned, lifecycle state is Secure",
		"using device ID " + DeviceID{0x01020304, 0x05060708}.String() + " as derivation context",
		"successfully derived 16-byte key",
	}, r)
}

func TestSequence_ExplicitContext(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	kdf := &stubKDF{}

	var r recorder

	cfg := Config{
		RootKey: TestRootKey(),
		Label:   []byte("STORAGE KEY"),
		Context: []byte("serial-0001"),
		KeySize: 32,
	}

	err := Sequence(cfg, bus, kdf, &r, func(key []byte) error {
		assert.Equal(t, "size", 32, len(key))

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, a := range bus.accesses {
		if a == "R DEVICEID[0]" || a == "R DEVICEID[1]" {
			t.Fatalf("device ID read with an explicit context: %v", bus.accesses)
		}
	}

	assert.Equal(t, "reports", 2, len(r))
}

func TestSequence_ProvisioningFailed(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	bus.stick(RegKDR1, 0)

	kdf := &stubKDF{}

	var r recorder

	err := Sequence(Config{RootKey: TestRootKey(), Label: []byte(DefaultLabel)}, bus, kdf, &r, nil)

	assert.Equal(t, "error", ErrVerificationFailed, err, cmpopts.EquateErrors())
	assert.Equal(t, "kdf calls", 0, kdf.calls)
	assert.Equal(t, "reports", recorder{
		"root key provisioning failed: root key verification failed",
	}, r)
}

func TestSequence_KDFFailed(t *testing.T) {
	t.Parallel()

	kdf := &stubKDF{status: 0x80000006}

	var r recorder

	err := Sequence(Config{RootKey: TestRootKey(), Label: []byte(DefaultLabel)}, newFakeBus(), kdf, &r, nil)

	assert.Equal(t, "error", ErrKDFFailed, err, cmpopts.EquateErrors())
	assert.Equal(t, "buffer wiped", make([]byte, KeySize), kdf.out)
	assert.Equal(t, "last report",
		"error while deriving key: key derivation failed: status 0x80000006", r[len(r)-1])
}

func TestSequence_ConsumerFailed(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	var r recorder

	err := Sequence(Config{RootKey: TestRootKey(), Label: []byte(DefaultLabel)}, newFakeBus(), &stubKDF{}, &r,
		func([]byte) error { return errBoom })

	assert.Equal(t, "error", errBoom, err, cmpopts.EquateErrors())
	assert.Equal(t, "last report", "derived key consumer failed: boom", r[len(r)-1])
}

func TestSequence_LockKPRTL(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()

	var r recorder

	err := Sequence(Config{RootKey: TestRootKey(), Label: []byte(DefaultLabel), LockKPRTL: true},
		bus, &stubKDF{}, &r, nil)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "lock written", []uint32{KPRTLLocked}, bus.written[RegKPRTLLock])
	assert.Equal(t, "report", "KPRTL key locked until reset", r[1])
}

func TestSequence_InvalidLabel(t *testing.T) {
	t.Parallel()

	kdf := &stubKDF{}

	err := Sequence(Config{RootKey: TestRootKey()}, newFakeBus(), kdf, Discard, nil)

	assert.Equal(t, "error", ErrInvalidInput, err, cmpopts.EquateErrors())
	assert.Equal(t, "kdf calls", 0, kdf.calls)
}

func TestDeviceID(t *testing.T) {
	t.Parallel()

	id := ReadDeviceID(newFakeBus())

	assert.Equal(t, "words", DeviceID{0x01020304, 0x05060708}, id)
	assert.Equal(t, "bytes", []byte{0x04, 0x03, 0x02, 0x01, 0x08, 0x07, 0x06, 0x05}, id.Bytes())
}

func TestReporterFunc(t *testing.T) {
	t.Parallel()

	var got string

	ReporterFunc(func(msg string) { got = msg }).Report("hello")
	Discard.Report("dropped")

	assert.Equal(t, "message", "hello", got)
}
