//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Uinput is a Sink backed by a virtual input device created through
// /dev/uinput.
type Uinput struct {
	f *os.File

	mu  sync.Mutex
	err error
}

const (
	evSYN     = 0x00
	evKEY     = 0x01
	synREPORT = 0x00

	busHOST = 0x19

	uinputMaxNameSize = 80
	absCnt            = 64
)

// ioctl request encoding (Linux _IOC macro).
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

var (
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiSetEvBit   = ioc(iocWrite, 'U', 100, unsafe.Sizeof(int32(0)))
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, unsafe.Sizeof(int32(0)))
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [uinputMaxNameSize]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [absCnt]int32
	Absmin       [absCnt]int32
	Absfuzz      [absCnt]int32
	Absflat      [absCnt]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// OpenUinput opens the uinput control device. The virtual device is
// created by Register.
func OpenUinput() (*Uinput, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return &Uinput{f: f}, nil
}

func (u *Uinput) Register(name string, keys []Key) error {
	fd := u.f.Fd()
	if err := ioctl(fd, uiSetEvBit, evSYN); err != nil {
		return fmt.Errorf("input: UI_SET_EVBIT: %w", err)
	}
	if err := ioctl(fd, uiSetEvBit, evKEY); err != nil {
		return fmt.Errorf("input: UI_SET_EVBIT: %w", err)
	}
	for _, k := range keys {
		if k == KeyReserved {
			continue
		}
		if err := ioctl(fd, uiSetKeyBit, uintptr(k)); err != nil {
			return fmt.Errorf("input: UI_SET_KEYBIT %v: %w", k, err)
		}
	}
	dev := uinputUserDev{
		ID: inputID{Bustype: busHOST, Version: 1},
	}
	copy(dev.Name[:uinputMaxNameSize-1], name)
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.NativeEndian, &dev); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if _, err := u.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("input: UI_DEV_CREATE: %w", err)
	}
	return nil
}

func (u *Uinput) Report(k Key, pressed bool) {
	v := int32(0)
	if pressed {
		v = 1
	}
	u.emit(evKEY, uint16(k), v)
}

func (u *Uinput) Sync() {
	u.emit(evSYN, synREPORT, 0)
}

func (u *Uinput) emit(typ, code uint16, value int32) {
	var now unix.Timeval
	unix.Gettimeofday(&now)
	ev := inputEvent{Time: now, Type: typ, Code: code, Value: value}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.NativeEndian, &ev)
	_, err := u.f.Write(buf.Bytes())
	u.mu.Lock()
	if u.err == nil {
		u.err = err
	}
	u.mu.Unlock()
}

// Err returns the first error encountered while writing events.
func (u *Uinput) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Close destroys the virtual device.
func (u *Uinput) Close() error {
	ioctl(u.f.Fd(), uiDevDestroy, 0)
	return u.f.Close()
}

func ioctl(fd, req, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
