package cptk

// HandleInterrupt runs the threaded interrupt handler: it reads the key
// event from the controller, reports it and drives the backlight. It
// does nothing unless the interrupt line is asserted.
func (d *Device) HandleInterrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.irq.Asserted() {
		return
	}
	var code [1]byte
	if err := d.readReg(regKEYCODE, code[:]); err != nil {
		d.log.Printf("cptk: key event dropped: %v", err)
		return
	}
	idx := int(code[0] & keycodeMask)
	if idx >= len(d.keymap) {
		d.log.Printf("cptk: key event dropped: unmapped key index %d", idx)
		return
	}
	key := d.keymap[idx]
	pressed := code[0]&updownEventBit == 0
	d.sink.Report(key, pressed)
	d.sink.Sync()

	if !d.backlightActive() {
		return
	}
	if pressed {
		d.idle.cancel()
		if !d.ledOn() {
			if err := d.ledOnLocked(); err != nil {
				d.log.Printf("cptk: key down: %v", err)
			}
		}
	} else if !d.notification {
		d.armIdle()
	}
}
