package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
	"touchkey.dev/driver/buspirate"
	"touchkey.dev/driver/cptk"
	"touchkey.dev/irq"
)

// hardware is the controller's bus and lines.
type hardware struct {
	bus     cptk.Bus
	irq     cptk.Interrupt
	power   gpio.PinOut
	flasher cptk.Flasher
	// sim is set when the controller is simulated.
	sim *cptk.Simulator

	closers []io.Closer
}

// Versions reported by the simulated controller.
const (
	simModule = 0x01
	simIC     = 0x01
)

// Default lines on a Raspberry Pi.
var (
	rpiIRQ   = bcm283x.GPIO17
	rpiPower = bcm283x.GPIO27
)

func openHardware(bus string, speedKHz int, irqName, powerName string) (*hardware, error) {
	if bus == "sim" {
		sim := cptk.NewSimulator(simModule, simIC)
		return &hardware{
			bus:     sim,
			irq:     sim.IRQ(),
			power:   sim.PowerPin(),
			flasher: sim,
			sim:     sim,
		}, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	hw := new(hardware)
	var b i2c.BusCloser
	var err error
	if dev, ok := strings.CutPrefix(bus, "buspirate:"); ok {
		b, err = buspirate.Open(dev)
	} else {
		// Use the i2creg registry to find the first available bus if
		// none is named.
		b, err = i2creg.Open(bus)
	}
	if err != nil {
		return nil, fmt.Errorf("i2c: %w", err)
	}
	hw.closers = append(hw.closers, b)
	if err := b.SetSpeed(physic.Frequency(speedKHz) * physic.KiloHertz); err != nil {
		hw.Close()
		return nil, fmt.Errorf("i2c: %w", err)
	}
	hw.bus = b

	irqPin, err := lookupPin(irqName, rpiIRQ)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("-irq: %w", err)
	}
	if irqPin == nil {
		hw.Close()
		return nil, errors.New("-irq: no interrupt line")
	}
	line := irq.New(irqPin)
	hw.closers = append(hw.closers, line)
	hw.irq = line

	powerPin, err := lookupPin(powerName, rpiPower)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("-power: %w", err)
	}
	if powerPin != nil {
		hw.power = powerPin
	}
	return hw, nil
}

// lookupPin returns the named pin, or the Raspberry Pi default if
// name is empty. It returns nil if there is neither.
func lookupPin(name string, rpiDefault gpio.PinIO) (gpio.PinIO, error) {
	if name == "" {
		if bcm283x.Present() {
			return rpiDefault, nil
		}
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return p, nil
}

func (hw *hardware) Close() error {
	var errs []error
	for i := len(hw.closers) - 1; i >= 0; i-- {
		errs = append(errs, hw.closers[i].Close())
	}
	return errors.Join(errs...)
}
