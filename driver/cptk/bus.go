package cptk

import (
	"fmt"
	"time"

	"touchkey.dev/retry"
)

var (
	writePolicy = retry.Policy{Attempts: 2, Delay: 20 * time.Millisecond}
	readPolicy  = retry.Policy{Attempts: 10, Delay: 20 * time.Millisecond}
)

// settleDelay is the time the controller needs after a mode change
// (at least 14ms).
const settleDelay = 20 * time.Millisecond

// writeReg writes a register. d.mu must be held.
func (d *Device) writeReg(reg, val uint8) error {
	if !d.enabled {
		return fmt.Errorf("cptk: write %#02x: %w", reg, ErrDeviceDisabled)
	}
	d.busMu.Lock()
	defer d.busMu.Unlock()
	w := [2]byte{reg, val}
	err := writePolicy.Do(func() error {
		return d.bus.Tx(d.addr, w[:], nil)
	})
	if err != nil {
		return fmt.Errorf("cptk: write %#02x: %w: %w", reg, ErrBus, err)
	}
	return nil
}

// readReg reads len(buf) bytes starting at reg. buf is only modified
// on success. d.mu must be held.
func (d *Device) readReg(reg uint8, buf []byte) error {
	if !d.enabled {
		return fmt.Errorf("cptk: read %#02x: %w", reg, ErrDeviceDisabled)
	}
	d.busMu.Lock()
	defer d.busMu.Unlock()
	w := [1]byte{reg}
	r := make([]byte, len(buf))
	err := readPolicy.Do(func() error {
		return d.bus.Tx(d.addr, w[:], r)
	})
	if err != nil {
		return fmt.Errorf("cptk: read %#02x: %w: %w", reg, ErrBus, err)
	}
	copy(buf, r)
	return nil
}
