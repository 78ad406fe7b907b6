package cptk

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Suspend powers the controller down ahead of display blanking. It is
// skipped while a notification holds the backlight on. Failures are
// logged.
func (d *Device) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.notification {
		d.log.Printf("cptk: not suspending, notification is active")
		return
	}
	d.idle.cancel()
	if !d.enabled {
		d.state = Suspended
		return
	}
	d.resumeLED = d.ledOn()
	if err := d.writeLEDLocked(cmdLED_OFF); err != nil {
		d.log.Printf("cptk: suspend: %v", err)
	}
	d.powerOffLocked()
	// Without power the LED is off regardless of the last command.
	d.ledCmd = cmdLED_OFF
	d.calibrated = false
	d.state = Suspended
	// Release keys that may be held.
	for _, k := range d.keymap[1:] {
		d.sink.Report(k, false)
	}
	d.sink.Sync()
}

// Resume powers the controller up after the display is unblanked,
// restarts calibration and restores the backlight. Failures are
// logged.
func (d *Device) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.powerOnLocked()
	if err := d.calibrateLocked(); err != nil {
		d.log.Printf("cptk: resume: %v", err)
	}
	if (d.backlightActive() || d.resumeLED) && !d.ledOn() {
		if err := d.ledOnLocked(); err != nil {
			d.log.Printf("cptk: resume: %v", err)
		}
	}
	d.resumeLED = false
	if d.backlightActive() && !d.notification && d.ledOn() {
		d.armIdle()
	}
}

// calibrateLocked starts automatic recalibration of the touch
// thresholds and waits for the controller to settle.
func (d *Device) calibrateLocked() error {
	defer time.Sleep(settleDelay)
	if err := d.writeReg(regKEYCODE, cmdAUTO_CAL_MODE); err != nil {
		return err
	}
	if err := d.writeReg(regCMD, cmdAUTO_CAL_EN); err != nil {
		return err
	}
	d.calibrated = true
	return nil
}

func (d *Device) powerOnLocked() {
	if d.enabled {
		return
	}
	d.setPower(true)
	d.enabled = true
	d.irq.Enable()
	d.irqEnabled = true
	d.state = Enabled
}

func (d *Device) powerOffLocked() {
	d.irq.Disable()
	d.irqEnabled = false
	d.setPower(false)
	d.enabled = false
	if d.state == Enabled {
		d.state = Disabled
	}
}

func (d *Device) setPower(on bool) {
	if d.power == nil {
		return
	}
	l := gpio.Low
	if on {
		l = gpio.High
	}
	if err := d.power.Out(l); err != nil {
		d.log.Printf("cptk: power %v: %v", l, err)
	}
}
