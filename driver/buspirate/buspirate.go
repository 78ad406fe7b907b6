// Package buspirate drives an I2C bus through a Bus Pirate in binary
// I2C mode, for attaching controllers to a development host.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/tarm/serial"
	"periph.io/x/conn/v3/physic"
)

// Bus is an I2C bus behind a Bus Pirate. It implements periph's
// i2c.BusCloser.
type Bus struct {
	mu    sync.Mutex
	port  io.ReadWriter
	speed physic.Frequency
}

// ErrNACK is returned when the addressed device did not acknowledge.
var ErrNACK = errors.New("buspirate: no acknowledge")

// Open opens the Bus Pirate at the serial device dev, or at the usual
// device names if dev is empty, and switches it to I2C mode.
func Open(dev string) (*Bus, error) {
	// Hardware parameters.
	const (
		baudRate    = 115200
		readTimeout = 100 * time.Millisecond
	)

	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyUSB0", "/dev/ttyUSB1")
		case "darwin":
			devices = append(devices, "/dev/tty.usbserial")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("buspirate: no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: baudRate, ReadTimeout: readTimeout}
		s, err := serial.OpenPort(c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		b, err := New(s)
		if err != nil {
			s.Close()
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("buspirate: %w", firstErr)
}

// New switches the Bus Pirate at port to I2C mode with power and
// pull-ups enabled and the bus at 100kHz.
func New(port io.ReadWriter) (*Bus, error) {
	b := &Bus{port: port}
	if err := b.enterBitbang(); err != nil {
		return nil, err
	}
	if err := b.command([]byte{cmdI2C}, "I2C1"); err != nil {
		return nil, fmt.Errorf("buspirate: enter I2C mode: %w", err)
	}
	if err := b.command([]byte{cmdPERIPHERALS | periphPOWER | periphPULLUPS}, "\x01"); err != nil {
		return nil, fmt.Errorf("buspirate: enable power: %w", err)
	}
	if err := b.SetSpeed(100 * physic.KiloHertz); err != nil {
		return nil, err
	}
	return b, nil
}

// enterBitbang resets the Bus Pirate into binary bitbang mode. The
// reset command is repeated until acknowledged, as the Bus Pirate may
// be in the middle of a terminal command.
func (b *Bus) enterBitbang() error {
	const attempts = 20
	for i := 0; i < attempts; i++ {
		if err := b.command([]byte{cmdRESET}, "BBIO1"); err == nil {
			return nil
		}
	}
	return errors.New("buspirate: no response to bitbang reset")
}

// command writes cmd and checks the reply.
func (b *Bus) command(cmd []byte, reply string) error {
	if _, err := b.port.Write(cmd); err != nil {
		return err
	}
	got := make([]byte, len(reply))
	if _, err := io.ReadFull(b.port, got); err != nil {
		return err
	}
	if !bytes.Equal(got, []byte(reply)) {
		return fmt.Errorf("unexpected reply %q", got)
	}
	return nil
}

func (b *Bus) String() string {
	return "buspirate"
}

// SetSpeed selects the closest supported bus speed not above f.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	speeds := []physic.Frequency{
		5 * physic.KiloHertz,
		50 * physic.KiloHertz,
		100 * physic.KiloHertz,
		400 * physic.KiloHertz,
	}
	if f < speeds[0] {
		return fmt.Errorf("buspirate: speed %s not supported", f)
	}
	sel := 0
	for i, s := range speeds {
		if s <= f {
			sel = i
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.command([]byte{cmdSPEED | byte(sel)}, "\x01"); err != nil {
		return fmt.Errorf("buspirate: set speed: %w", err)
	}
	b.speed = speeds[sel]
	return nil
}

// Tx writes w to the device at addr and reads len(r) bytes after a
// repeated start.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("buspirate: invalid address %#x", addr)
	}
	wlen := len(w) + 1
	if wlen > maxTransfer || len(r) > maxTransfer {
		return errors.New("buspirate: transfer too long")
	}
	cmd := make([]byte, 0, 5+wlen)
	cmd = append(cmd, cmdWRITE_READ, byte(wlen>>8), byte(wlen), byte(len(r)>>8), byte(len(r)))
	cmd = append(cmd, byte(addr<<1))
	cmd = append(cmd, w...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.port.Write(cmd); err != nil {
		return fmt.Errorf("buspirate: %w", err)
	}
	var status [1]byte
	if _, err := io.ReadFull(b.port, status[:]); err != nil {
		return fmt.Errorf("buspirate: %w", err)
	}
	if status[0] != 0x01 {
		return fmt.Errorf("%w: %#02x", ErrNACK, addr)
	}
	if _, err := io.ReadFull(b.port, r); err != nil {
		return fmt.Errorf("buspirate: %w", err)
	}
	return nil
}

// Close returns the Bus Pirate to terminal mode and closes its port.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.port.Write([]byte{cmdRESET, cmdUSER_TERMINAL})
	if c, ok := b.port.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("buspirate: %w", err)
	}
	return nil
}

const (
	maxTransfer = 4096

	cmdRESET         = 0x00
	cmdI2C           = 0x02
	cmdWRITE_READ    = 0x08
	cmdUSER_TERMINAL = 0x0f
	cmdPERIPHERALS   = 0x40
	cmdSPEED         = 0x60

	periphPOWER   = 0x08
	periphPULLUPS = 0x04
)
