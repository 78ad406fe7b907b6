package cptk

import "encoding/binary"

// PhoneFirmwareVersion returns the version of the firmware image
// shipped for updates.
func (d *Device) PhoneFirmwareVersion() byte {
	return d.cfg.FirmwareVersion
}

// PanelFirmwareVersion reads the firmware version from the controller.
func (d *Device) PanelFirmwareVersion() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf [3]byte
	if err := d.readReg(regKEYCODE, buf[:]); err != nil {
		return 0, err
	}
	return buf[1], nil
}

// MenuSensitivity returns the capacitance difference of the menu key.
func (d *Device) MenuSensitivity() (int, error) {
	return d.read16(regDIFF_DATA)
}

// BackSensitivity returns the capacitance difference of the back key.
func (d *Device) BackSensitivity() (int, error) {
	return d.read16(regDIFF_DATA + 2)
}

// RawData returns the raw count of sensor channel 0 or 1.
func (d *Device) RawData(channel int) (int, error) {
	return d.read16(regRAW_DATA + 2*uint8(channel&1))
}

func (d *Device) Threshold() (int, error) {
	v, err := d.read8(regTHRESHOLD)
	return int(v), err
}

// AutocalEnabled reports whether automatic calibration is running.
func (d *Device) AutocalEnabled() (bool, error) {
	v, err := d.read8(regAUTOCAL)
	return v&autocalBit != 0, err
}

// IDAC returns the current-DAC calibration value of channel 0 or 1.
func (d *Device) IDAC(channel int) (int, error) {
	v, err := d.read8(regIDAC + uint8(channel&1))
	return int(v), err
}

func (d *Device) read8(reg uint8) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf [1]byte
	err := d.readReg(reg, buf[:])
	return buf[0], err
}

// read16 reads a big endian register pair.
func (d *Device) read16(reg uint8) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf [2]byte
	if err := d.readReg(reg, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(buf[:])), nil
}
