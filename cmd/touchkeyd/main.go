// Command touchkeyd runs a capacitive touchkey controller: it reports
// key presses to the input subsystem, drives the key backlight and
// serves the controller's attributes on a control socket.
//
// SIGUSR1 and SIGUSR2 suspend and resume the controller, for display
// managers without access to the control socket.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"touchkey.dev/ctl"
	"touchkey.dev/driver/cptk"
	"touchkey.dev/firmware"
	"touchkey.dev/input"
	"touchkey.dev/settings"
)

var (
	busName      = flag.String("bus", "", "I2C bus name, buspirate:<serial device>, or sim")
	busSpeed     = flag.Int("speed", 400, "I2C bus speed in kHz")
	addr         = flag.Uint("addr", cptk.DefaultAddr, "controller I2C address")
	irqPin       = flag.String("irq", "", "interrupt GPIO name")
	powerPin     = flag.String("power", "", "supply switch GPIO name")
	keymap       = flag.String("keymap", "reserved,menu,back", "key for each controller key index")
	useUinput    = flag.Bool("uinput", true, "report keys through /dev/uinput")
	backlight    = flag.Bool("backlight", true, "enable the backlight timeout policy")
	fwDir        = flag.String("firmware-dir", "", "firmware search directory (default: system firmware paths)")
	fwName       = flag.String("firmware", "", "firmware image name")
	fwVersion    = flag.Uint("firmware-version", 0, "firmware version of the image")
	moduleVer    = flag.Uint("module-version", 0, "module version the image targets")
	socketPath   = flag.String("socket", "/run/touchkeyd.sock", "control socket path")
	settingsPath = flag.String("settings", "", "operator settings file")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "touchkeyd: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	keys, err := parseKeymap(*keymap)
	if err != nil {
		return err
	}
	if *addr > 0x7f || *fwVersion > 0xff || *moduleVer > 0xff {
		return errors.New("-addr, -firmware-version and -module-version must fit their registers")
	}
	hw, err := openHardware(*busName, *busSpeed, *irqPin, *powerPin)
	if err != nil {
		return err
	}
	defer hw.Close()

	var sink input.Sink = &input.Log{Logger: log.Default()}
	if *useUinput && hw.sim == nil {
		u, err := input.OpenUinput()
		if err != nil {
			return err
		}
		defer u.Close()
		sink = u
	}
	var fw firmware.Dir
	if *fwDir != "" {
		fw.Paths = []string{*fwDir}
	}
	dev, err := cptk.Probe(hw.bus, cptk.Config{
		Addr:            uint16(*addr),
		Keymap:          keys,
		IRQ:             hw.irq,
		Power:           hw.power,
		Input:           sink,
		Firmware:        fw,
		FirmwareName:    *fwName,
		FirmwareVersion: byte(*fwVersion),
		ModuleVersion:   byte(*moduleVer),
		Flasher:         hw.flasher,
		Backlight:       *backlight,
		Mode:            cptk.ModeKey,
	})
	if err != nil {
		return err
	}
	defer dev.Close()

	h := ctl.NewHandler(dev, nil)
	if hw.sim != nil {
		addSimCommands(h, hw.sim)
	}
	if *settingsPath != "" && *backlight {
		s, err := settings.Load(*settingsPath)
		if err != nil {
			return err
		}
		if err := restore(dev, s); err != nil {
			return err
		}
		h.OnStore(func(name string) {
			if !persisted[name] {
				return
			}
			if err := settings.Save(*settingsPath, snapshot(dev)); err != nil {
				log.Printf("touchkeyd: %v", err)
			}
		})
	}

	os.Remove(*socketPath)
	l, err := net.Listen("unix", *socketPath)
	if err != nil {
		return err
	}
	defer os.Remove(*socketPath)
	go func() {
		if err := h.Serve(l); err != nil {
			log.Printf("touchkeyd: %v", err)
		}
	}()
	defer l.Close()
	log.Printf("touchkeyd: serving %s", *socketPath)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			dev.Suspend()
		case syscall.SIGUSR2:
			dev.Resume()
		default:
			log.Printf("touchkeyd: %v, shutting down", sig)
			return nil
		}
	}
	return nil
}
