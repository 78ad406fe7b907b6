// Package cptk implements a driver for Cypress capacitive touchkey
// controllers with an LED backlight, as found below the display of
// many phones.
//
// A Device serializes every caller (interrupt handler, suspend and
// resume hooks, backlight timer and operator requests) on one state
// lock. Register transactions additionally take the bus lock, which is
// always acquired after the state lock.
package cptk

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"touchkey.dev/firmware"
	"touchkey.dev/input"
)

// DeviceName is the name registered with the input sink.
const DeviceName = "sec_touchkey"

// Bus is the I2C bus the controller is attached to. periph's i2c.Bus
// satisfies it. A Bus that also implements sync.Locker is locked for
// the duration of a firmware flash.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Interrupt is the controller's active-low, level-triggered interrupt
// line. *irq.Line implements it.
type Interrupt interface {
	// Request starts calling handler while the line is enabled and
	// asserted. The line is enabled on return.
	Request(handler func()) error
	Enable()
	Disable()
	Asserted() bool
	Close() error
}

// Flasher writes a firmware image to the controller through its
// programming interface. Flash must not use the Bus.
type Flasher interface {
	Flash(image []byte) error
}

// Timer is a pending backlight timeout. *time.Timer implements it.
type Timer interface {
	Stop() bool
}

type Config struct {
	// Addr is the I2C address. Zero selects DefaultAddr.
	Addr uint16
	// Keymap maps the 3-bit key index reported by the controller to
	// key codes. Empty selects DefaultKeymap.
	Keymap []input.Key
	IRQ    Interrupt
	// Power switches the controller supply. Nil if the supply is not
	// switchable.
	Power gpio.PinOut
	Input input.Sink

	// Firmware and FirmwareName locate update images. FirmwareVersion
	// and ModuleVersion describe the image: it targets controllers
	// reporting ModuleVersion and carries FirmwareVersion.
	Firmware        firmware.Provider
	FirmwareName    string
	FirmwareVersion byte
	ModuleVersion   byte
	Flasher         Flasher

	// Backlight enables the backlight timeout policy. Without it the
	// LED is only driven by raw commands.
	Backlight bool
	// Mode is the initial LED mode.
	Mode Mode
	// Timeout is the initial backlight timeout in seconds. Zero
	// selects DefaultTimeout.
	Timeout int

	// Logger receives best-effort failures. Nil selects log.Default.
	Logger *log.Logger
	// AfterFunc schedules backlight timeouts. Nil selects
	// time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

const (
	DefaultAddr    = 0x20
	DefaultTimeout = 1
	// FirmwareSize is the exact size of a firmware image.
	FirmwareSize = 8192
)

var DefaultKeymap = []input.Key{input.KeyReserved, input.KeyMenu, input.KeyBack}

var (
	ErrDeviceDisabled   = errors.New("device disabled")
	ErrBus              = errors.New("bus transfer failed")
	ErrInvalidSize      = errors.New("invalid firmware size")
	ErrNotConfigured    = errors.New("firmware update not configured")
	ErrFlashFailed      = errors.New("firmware flash failed")
	ErrUpdateInProgress = errors.New("firmware update in progress")
	ErrNoBacklight      = errors.New("backlight policy not available")
	ErrClosed           = errors.New("device closed")
)

// ProbeError is returned when the controller could not be attached.
type ProbeError struct {
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return "cptk: probe failed: " + e.Reason
	}
	return fmt.Sprintf("cptk: probe failed: %s: %v", e.Reason, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// State is the power state of the controller.
type State int

const (
	Disabled State = iota
	Enabled
	Suspended
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	case Suspended:
		return "suspended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode selects what turns the backlight on.
type Mode int

const (
	ModeOff Mode = iota
	// ModeKey lights the LED on key presses.
	ModeKey
	// ModeTouchscreen additionally follows touchscreen activity.
	ModeTouchscreen
)

// LEDStatus is the last LED command issued.
type LEDStatus int

const (
	LEDOff LEDStatus = iota
	LEDOn
)

// Version describes the firmware on the controller and the image
// available for update.
type Version struct {
	Module byte
	IC     byte
	Binary byte
}

// versionUnknown is reported by controllers with a corrupt firmware.
const versionUnknown = 0xff

type Device struct {
	bus    Bus
	addr   uint16
	keymap []input.Key
	irq    Interrupt
	power  gpio.PinOut
	sink   input.Sink
	cfg    Config
	log    *log.Logger

	// busMu serializes register transactions. It is acquired after mu.
	busMu sync.Mutex

	mu           sync.Mutex
	state        State
	enabled      bool
	irqEnabled   bool
	ledCmd       byte
	resumeLED    bool
	version      Version
	update       UpdateStatus
	updating     bool
	calibrated   bool
	notification bool
	mode         Mode
	timeout      int
	idle         idleTimer
	closed       bool
}

// Probe powers the controller, verifies it responds, registers its keys
// with the input sink, starts automatic calibration and enables its
// interrupt. Failures are reported as *ProbeError.
func Probe(bus Bus, cfg Config) (*Device, error) {
	switch {
	case bus == nil:
		return nil, &ProbeError{Reason: "no bus"}
	case cfg.IRQ == nil:
		return nil, &ProbeError{Reason: "no interrupt line"}
	case cfg.Input == nil:
		return nil, &ProbeError{Reason: "no input sink"}
	}
	d := &Device{
		bus:     bus,
		addr:    cfg.Addr,
		keymap:  cfg.Keymap,
		irq:     cfg.IRQ,
		power:   cfg.Power,
		sink:    cfg.Input,
		cfg:     cfg,
		log:     cfg.Logger,
		ledCmd:  cmdLED_OFF,
		timeout: cfg.Timeout,
	}
	if d.addr == 0 {
		d.addr = DefaultAddr
	}
	if len(d.keymap) == 0 {
		d.keymap = DefaultKeymap
	}
	if len(d.keymap) > keycodeMask+1 {
		return nil, &ProbeError{Reason: fmt.Sprintf("keymap has %d entries, max %d", len(d.keymap), keycodeMask+1)}
	}
	if d.log == nil {
		d.log = log.Default()
	}
	if d.timeout == 0 {
		d.timeout = DefaultTimeout
	}
	if cfg.Backlight {
		d.mode = cfg.Mode
	}
	d.idle.afterFunc = cfg.AfterFunc
	if d.idle.afterFunc == nil {
		d.idle.afterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// fail powers down the controller and marks the Device closed, so
	// a firmware request already issued never completes into it.
	fail := func(reason string, err error) (*Device, error) {
		d.setPower(false)
		d.enabled = false
		d.closed = true
		return nil, &ProbeError{Reason: reason, Err: err}
	}
	d.setPower(true)
	d.enabled = true
	if err := d.readVersionLocked(); err != nil {
		return fail("touchkey IC is not connected", fmt.Errorf("%w: %w", ErrDeviceDisabled, err))
	}
	v := d.version
	d.log.Printf("cptk: module ver = %#02x, IC firm ver = %#02x, binary firm ver = %#02x", v.Module, v.IC, v.Binary)
	if err := d.sink.Register(DeviceName, d.keymap); err != nil {
		return fail("input registration", err)
	}
	if cfg.FirmwareName != "" && v.Module == cfg.ModuleVersion && v.IC < cfg.FirmwareVersion {
		d.log.Printf("cptk: firmware %#02x is outdated, updating to %#02x", v.IC, cfg.FirmwareVersion)
		if err := d.requestUpdateLocked(); err != nil {
			return fail("firmware update", err)
		}
	}
	if err := d.calibrateLocked(); err != nil {
		d.log.Printf("cptk: probe: %v", err)
	}
	if err := d.irq.Request(d.HandleInterrupt); err != nil {
		return fail("interrupt request", err)
	}
	d.irqEnabled = true
	d.state = Enabled
	return d, nil
}

// Close cancels the backlight timer and powers the controller down.
// The Device must not be used afterwards.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	// The timer must not fire into a closed device.
	d.idle.cancel()
	d.powerOffLocked()
	d.state = Disabled
	d.mu.Unlock()
	return d.irq.Close()
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Enabled reports whether the controller is powered and its interrupt
// armed.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *Device) LED() LEDStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ledOn() {
		return LEDOn
	}
	return LEDOff
}

func (d *Device) Calibrated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calibrated
}

// FirmwareVersion returns the version read at probe or after the last
// update.
func (d *Device) FirmwareVersion() Version {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// readVersionLocked reads the module and IC firmware versions, which
// follow the keycode register.
func (d *Device) readVersionLocked() error {
	var buf [3]byte
	if err := d.readReg(regKEYCODE, buf[:]); err != nil {
		return err
	}
	d.version = Version{
		Module: buf[2],
		IC:     buf[1],
		Binary: d.cfg.FirmwareVersion,
	}
	return nil
}

const (
	regKEYCODE   = 0x00
	regCMD       = 0x03
	regTHRESHOLD = 0x04
	regAUTOCAL   = 0x05
	regIDAC      = 0x06
	regDIFF_DATA = 0x0A
	regRAW_DATA  = 0x0E

	// Commands for regKEYCODE.
	cmdAUTO_CAL_MODE = 0x50
	cmdLED_ON        = 0x10
	cmdLED_OFF       = 0x20
	cmdSENS_EN       = 0x40

	// Commands for regCMD.
	cmdAUTO_CAL_EN = 0x01

	updownEventBit = 0x08
	keycodeMask    = 0x07
	autocalBit     = 0x80
)
