package main

import (
	"strconv"

	"touchkey.dev/ctl"
	"touchkey.dev/driver/cptk"
	"touchkey.dev/settings"
)

// persisted lists the attributes saved in the settings file.
var persisted = map[string]bool{
	"enable_disable": true,
	"led_mode":       true,
	"timeout":        true,
}

// restore applies saved settings to a freshly probed controller.
func restore(d *cptk.Device, s settings.Settings) error {
	if err := d.SetTimeout(s.Timeout); err != nil {
		return err
	}
	if err := d.SetMode(cptk.Mode(s.Mode)); err != nil {
		return err
	}
	if s.Disabled {
		return d.SetEnabled(false)
	}
	return nil
}

func snapshot(d *cptk.Device) settings.Settings {
	return settings.Settings{
		Mode:     int(d.Mode()),
		Timeout:  d.Timeout(),
		Disabled: d.State() == cptk.Disabled,
	}
}

// addSimCommands adds commands for pressing the keys of a simulated
// controller.
func addSimCommands(h *ctl.Handler, sim *cptk.Simulator) {
	key := func(press bool) ctl.Command {
		return func(arg string) (string, error) {
			idx, err := strconv.Atoi(arg)
			if err != nil {
				return "", err
			}
			if press {
				sim.Press(idx)
			} else {
				sim.Release(idx)
			}
			return "", nil
		}
	}
	h.Handle("press", key(true))
	h.Handle("release", key(false))
	h.Handle("led", func(string) (string, error) {
		if sim.LED() {
			return "on", nil
		}
		return "off", nil
	})
}
