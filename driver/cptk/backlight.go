package cptk

import (
	"fmt"
	"time"
)

// idleTimer is the single pending backlight timeout. Every arm cancels
// the previous timer, and a generation count discards fires of
// cancelled timers that already started running.
type idleTimer struct {
	afterFunc func(time.Duration, func()) Timer
	t         Timer
	gen       uint64
	pending   bool
}

func (t *idleTimer) arm(d time.Duration, fire func(gen uint64)) {
	t.cancel()
	gen := t.gen
	t.pending = true
	t.t = t.afterFunc(d, func() { fire(gen) })
}

func (t *idleTimer) cancel() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.pending = false
	t.gen++
}

// expire reports whether gen is the pending timer and clears it.
func (t *idleTimer) expire(gen uint64) bool {
	if !t.pending || gen != t.gen {
		return false
	}
	t.pending = false
	t.t = nil
	return true
}

func (d *Device) armIdle() {
	d.idle.arm(time.Duration(d.timeout)*time.Second, d.idleExpired)
}

func (d *Device) idleExpired(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.idle.expire(gen) {
		return
	}
	if d.notification || d.timeout == 0 || !d.enabled {
		return
	}
	if err := d.writeLEDLocked(cmdLED_OFF); err != nil {
		d.log.Printf("cptk: backlight timeout: %v", err)
	}
}

func (d *Device) backlightActive() bool {
	return d.cfg.Backlight && d.mode != ModeOff
}

func (d *Device) ledOn() bool {
	return d.ledCmd == cmdLED_ON
}

// writeLEDLocked issues an LED command and records it on success.
func (d *Device) writeLEDLocked(cmd byte) error {
	if err := d.writeReg(regKEYCODE, cmd); err != nil {
		return err
	}
	d.ledCmd = cmd
	return nil
}

// ledOnLocked powers the controller if needed and turns the LED on.
func (d *Device) ledOnLocked() error {
	d.powerOnLocked()
	return d.writeLEDLocked(cmdLED_ON)
}

// Enable turns the backlight on and starts the timeout, unless a
// notification holds the backlight.
func (d *Device) Enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.Backlight {
		return ErrNoBacklight
	}
	return d.enableLocked()
}

func (d *Device) enableLocked() error {
	if d.closed || d.mode == ModeOff || d.ledOn() {
		return nil
	}
	if err := d.ledOnLocked(); err != nil {
		return err
	}
	if !d.notification {
		d.armIdle()
	}
	return nil
}

// Disable turns the backlight off unless a notification holds it.
func (d *Device) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.Backlight {
		return ErrNoBacklight
	}
	return d.disableLocked()
}

func (d *Device) disableLocked() error {
	if d.closed || d.mode == ModeOff || d.notification {
		return nil
	}
	d.idle.cancel()
	if !d.enabled {
		return nil
	}
	return d.writeLEDLocked(cmdLED_OFF)
}

// SetEnabled is the operator switch for the controller. Enabling is
// Enable; disabling is Disable followed by powering the controller
// down. Both are ignored while a notification holds the backlight.
func (d *Device) SetEnabled(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.Backlight {
		return ErrNoBacklight
	}
	if on {
		return d.enableLocked()
	}
	if d.closed || d.mode == ModeOff || d.notification {
		return nil
	}
	err := d.disableLocked()
	d.powerOffLocked()
	d.ledCmd = cmdLED_OFF
	return err
}

func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// SetMode switches the LED mode. Switching to ModeOff releases any
// notification hold and turns the backlight off; other modes turn it
// on.
func (d *Device) SetMode(m Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.Backlight {
		return ErrNoBacklight
	}
	switch m {
	case ModeOff:
		// A hold is meaningless without a backlight policy.
		d.notification = false
		err := d.disableLocked()
		d.mode = ModeOff
		return err
	case ModeKey, ModeTouchscreen:
		d.mode = m
		return d.enableLocked()
	}
	return fmt.Errorf("cptk: invalid LED mode %d", int(m))
}

func (d *Device) Notification() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notification
}

// SetNotification sets or releases the notification hold, which keeps
// the backlight on regardless of the timeout. A hold is only taken
// when the LED mode is not ModeOff.
func (d *Device) SetNotification(active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.Backlight {
		return ErrNoBacklight
	}
	if active {
		if d.mode == ModeOff {
			return nil
		}
		d.notification = true
		d.idle.cancel()
		return d.enableLocked()
	}
	d.notification = false
	return d.disableLocked()
}

// Timeout returns the backlight timeout in seconds.
func (d *Device) Timeout() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeout
}

// SetTimeout sets the backlight timeout in seconds, effective from the
// next time the timer is armed. Zero keeps the backlight on.
func (d *Device) SetTimeout(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("cptk: invalid timeout %d", seconds)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.cfg.Backlight {
		return ErrNoBacklight
	}
	d.timeout = seconds
	return nil
}

// TouchscreenActivity reports touches on the display. It only has an
// effect in ModeTouchscreen: a touch turns the backlight on or
// refreshes its timeout, and a release restarts the timeout.
func (d *Device) TouchscreenActivity(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.cfg.Backlight || d.mode != ModeTouchscreen {
		return
	}
	if active {
		if !d.ledOn() {
			if err := d.enableLocked(); err != nil {
				d.log.Printf("cptk: touchscreen activity: %v", err)
			}
		} else if d.idle.pending {
			d.armIdle()
		}
		return
	}
	if d.notification {
		return
	}
	if d.idle.pending || d.ledOn() {
		d.armIdle()
	}
}

// SetLED issues a raw LED command. The value is shifted into the
// command nibble: 1 is on, 2 is off.
func (d *Device) SetLED(v int) error {
	if v < 0 || v > 0xf {
		return fmt.Errorf("cptk: invalid LED command %d", v)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer time.Sleep(settleDelay)
	return d.writeLEDLocked(byte(v << 4))
}

// EnableSensitivity switches the controller to sensitivity reporting,
// required before reading sensitivity diagnostics on some firmware.
func (d *Device) EnableSensitivity() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer time.Sleep(settleDelay)
	return d.writeReg(regKEYCODE, cmdSENS_EN)
}
