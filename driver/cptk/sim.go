package cptk

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Simulator emulates a touchkey controller at the register level. It
// implements Bus and Flasher, and its IRQ method returns the
// controller's interrupt line. The firmware version of a flashed image
// is taken from its last byte.
type Simulator struct {
	// adapter is the bus adapter lock, held by every transfer.
	adapter sync.Mutex
	power   *gpiotest.Pin

	mu            sync.Mutex
	regs          [0x12]byte
	led           bool
	autocalMode   bool
	writes        []Write
	txFailures    int
	unpoweredTx   int
	flashFailures int
	flashes       int
	busHeld       bool
	irq           SimIRQ
}

// Write is a register write seen by the Simulator.
type Write struct {
	Reg, Val byte
}

var errNACK = errors.New("cptk: simulated NACK")

// NewSimulator returns a powered controller reporting the module and IC
// firmware versions.
func NewSimulator(module, ic byte) *Simulator {
	s := &Simulator{
		power: &gpiotest.Pin{N: "TOUCHKEY_EN", L: gpio.High},
	}
	s.irq.s = s
	s.regs[1] = ic
	s.regs[2] = module
	s.regs[regTHRESHOLD] = 0x28
	s.regs[regIDAC] = 0x11
	s.regs[regIDAC+1] = 0x13
	return s
}

// PowerPin returns the controller's supply switch.
func (s *Simulator) PowerPin() gpio.PinOut {
	return s.power
}

func (s *Simulator) Powered() bool {
	return s.power.Read() == gpio.High
}

// Lock reserves the bus adapter.
func (s *Simulator) Lock() {
	s.adapter.Lock()
}

func (s *Simulator) Unlock() {
	s.adapter.Unlock()
}

func (s *Simulator) Tx(addr uint16, w, r []byte) error {
	s.adapter.Lock()
	defer s.adapter.Unlock()
	powered := s.Powered()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !powered {
		s.unpoweredTx++
		return errNACK
	}
	if s.txFailures > 0 {
		s.txFailures--
		return errNACK
	}
	if len(w) == 0 {
		return errors.New("cptk: simulated transfer without register")
	}
	reg := int(w[0])
	if len(r) == 0 {
		for i, v := range w[1:] {
			s.write(reg+i, v)
		}
		return nil
	}
	if reg+len(r) > len(s.regs) {
		return fmt.Errorf("cptk: simulated read past register %#02x", reg)
	}
	copy(r, s.regs[reg:])
	if reg == regKEYCODE {
		s.irq.asserted = false
	}
	return nil
}

func (s *Simulator) write(reg int, v byte) {
	s.writes = append(s.writes, Write{byte(reg), v})
	switch reg {
	case regKEYCODE:
		switch v {
		case cmdLED_ON:
			s.led = true
		case cmdLED_OFF:
			s.led = false
		case cmdAUTO_CAL_MODE:
			s.autocalMode = true
		}
	case regCMD:
		if v == cmdAUTO_CAL_EN && s.autocalMode {
			s.regs[regAUTOCAL] |= autocalBit
		}
	default:
		if reg < len(s.regs) {
			s.regs[reg] = v
		}
	}
}

func (s *Simulator) Flash(image []byte) error {
	busHeld := s.adapter.TryLock()
	if busHeld {
		s.adapter.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes++
	s.busHeld = !busHeld
	if s.flashFailures > 0 {
		s.flashFailures--
		return errors.New("cptk: simulated flash failure")
	}
	if len(image) > 0 {
		s.regs[1] = image[len(image)-1]
	}
	return nil
}

// FailTx makes the next n transfers fail.
func (s *Simulator) FailTx(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txFailures = n
}

// FailFlash makes the next n flash attempts fail.
func (s *Simulator) FailFlash(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashFailures = n
}

// Flashes returns the number of flash attempts and whether the bus
// adapter was reserved during the last one.
func (s *Simulator) Flashes() (n int, busHeld bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flashes, s.busHeld
}

// UnpoweredTx returns the number of transfers attempted while the
// controller was unpowered.
func (s *Simulator) UnpoweredTx() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unpoweredTx
}

// Writes returns the register writes seen so far.
func (s *Simulator) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.writes)
}

// LED reports whether the backlight is lit.
func (s *Simulator) LED() bool {
	powered := s.Powered()
	s.mu.Lock()
	defer s.mu.Unlock()
	return powered && s.led
}

// SetDiff sets the sensitivity difference reported for a key channel.
func (s *Simulator) SetDiff(channel int, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := regDIFF_DATA + 2*(channel&1)
	s.regs[reg], s.regs[reg+1] = byte(v>>8), byte(v)
}

// SetRaw sets the raw count reported for a sensor channel.
func (s *Simulator) SetRaw(channel int, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := regRAW_DATA + 2*(channel&1)
	s.regs[reg], s.regs[reg+1] = byte(v>>8), byte(v)
}

// Press reports a key press at the key index and raises the interrupt.
func (s *Simulator) Press(idx int) {
	s.key(byte(idx) & keycodeMask)
}

// Release reports a key release at the key index and raises the
// interrupt.
func (s *Simulator) Release(idx int) {
	s.key(byte(idx)&keycodeMask | updownEventBit)
}

// key latches a key event and runs the interrupt handler, if enabled,
// on the calling goroutine.
func (s *Simulator) key(code byte) {
	powered := s.Powered()
	s.mu.Lock()
	s.regs[regKEYCODE] = code
	s.irq.asserted = true
	h := s.irq.handler
	run := h != nil && s.irq.enabled && powered
	s.mu.Unlock()
	if run {
		h()
	}
}

// IRQ returns the simulated interrupt line.
func (s *Simulator) IRQ() *SimIRQ {
	return &s.irq
}

// SimIRQ is the interrupt line of a Simulator.
type SimIRQ struct {
	s        *Simulator
	handler  func()
	enabled  bool
	asserted bool
}

func (i *SimIRQ) Request(handler func()) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	if i.handler != nil {
		return errors.New("cptk: simulated interrupt already requested")
	}
	i.handler = handler
	i.enabled = true
	return nil
}

func (i *SimIRQ) Enable() {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	i.enabled = true
}

func (i *SimIRQ) Disable() {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	i.enabled = false
}

// Enabled reports whether interrupts are delivered.
func (i *SimIRQ) Enabled() bool {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	return i.enabled
}

func (i *SimIRQ) Asserted() bool {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	return i.asserted
}

func (i *SimIRQ) Close() error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	i.handler = nil
	i.enabled = false
	return nil
}
