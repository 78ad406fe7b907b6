package cptk

import (
	"fmt"
	"sync"

	"touchkey.dev/retry"
)

type UpdateStatus int

const (
	UpdateIdle UpdateStatus = iota
	UpdateDownloading
	UpdatePass
	UpdateFail
)

func (s UpdateStatus) String() string {
	switch s {
	case UpdateIdle:
		return "IDLE"
	case UpdateDownloading:
		return "DOWNLOADING"
	case UpdatePass:
		return "PASS"
	case UpdateFail:
		return "FAIL"
	}
	return fmt.Sprintf("UpdateStatus(%d)", int(s))
}

const flashAttempts = 3

func (d *Device) UpdateStatus() UpdateStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.update
}

// RequestUpdate starts a firmware update. Unless force is set, the
// update is skipped and reported as passed when the controller already
// runs the configured firmware version or newer. The update completes
// asynchronously; its outcome is reported by UpdateStatus. Requests
// while an update is in flight, or after Close, fail without changing
// the status.
func (d *Device) RequestUpdate(force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("cptk: %w", ErrClosed)
	}
	if d.updating {
		return fmt.Errorf("cptk: %w", ErrUpdateInProgress)
	}
	if ic := d.version.IC; !force && ic >= d.cfg.FirmwareVersion && ic != versionUnknown {
		d.update = UpdatePass
		return nil
	}
	return d.requestUpdateLocked()
}

func (d *Device) requestUpdateLocked() error {
	if d.cfg.Firmware == nil || d.cfg.FirmwareName == "" {
		return fmt.Errorf("cptk: %w", ErrNotConfigured)
	}
	if d.updating {
		return fmt.Errorf("cptk: %w", ErrUpdateInProgress)
	}
	d.update = UpdateDownloading
	d.updating = true
	if err := d.cfg.Firmware.Request(d.cfg.FirmwareName, d.firmwareLoaded); err != nil {
		d.updating = false
		d.update = UpdateFail
		return fmt.Errorf("cptk: %s: %w", d.cfg.FirmwareName, err)
	}
	return nil
}

// firmwareLoaded completes an update request.
func (d *Device) firmwareLoaded(image []byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updating = false
	if d.closed {
		return
	}
	if err != nil {
		d.update = UpdateFail
		d.log.Printf("cptk: firmware %s: %v", d.cfg.FirmwareName, err)
		return
	}
	if err := d.flashLocked(image); err != nil {
		d.log.Printf("cptk: firmware update: %v", err)
		return
	}
	d.log.Printf("cptk: current firm ver = %#02x, latest firm ver = %#02x", d.version.IC, d.cfg.FirmwareVersion)
}

// flashLocked writes image to the controller with its interrupt
// disabled and the bus reserved.
func (d *Device) flashLocked(image []byte) error {
	if len(image) != FirmwareSize {
		d.update = UpdateFail
		return fmt.Errorf("cptk: %w: %d bytes, want %d", ErrInvalidSize, len(image), FirmwareSize)
	}
	if d.cfg.Flasher == nil {
		d.update = UpdateFail
		return fmt.Errorf("cptk: no flasher: %w", ErrNotConfigured)
	}
	irqWasEnabled := d.irqEnabled
	d.irq.Disable()
	d.irqEnabled = false
	d.busMu.Lock()
	// Keep other bus users off the lines during programming.
	adapter, shared := d.bus.(sync.Locker)
	if shared {
		adapter.Lock()
	}
	err := retry.Policy{Attempts: flashAttempts}.Do(func() error {
		return d.cfg.Flasher.Flash(image)
	})
	if shared {
		adapter.Unlock()
	}
	d.busMu.Unlock()
	if irqWasEnabled {
		d.irq.Enable()
		d.irqEnabled = true
	}
	if err != nil {
		d.update = UpdateFail
		return fmt.Errorf("cptk: %w: %w", ErrFlashFailed, err)
	}
	d.update = UpdatePass
	if d.enabled {
		if err := d.readVersionLocked(); err != nil {
			d.log.Printf("cptk: firmware version: %v", err)
		}
	}
	return nil
}
