// Package ctl implements the operator surface of a touchkey controller:
// named attributes that can be shown and stored, lifecycle commands,
// and a line protocol serving both.
package ctl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"touchkey.dev/driver/cptk"
)

// Attr is a named controller attribute. Show is nil for write-only
// attributes and Store is nil for read-only attributes.
type Attr struct {
	Name  string
	Show  func(d *cptk.Device) string
	Store func(d *cptk.Device, val string) error
}

var ErrReadOnly = errors.New("read-only attribute")
var ErrWriteOnly = errors.New("write-only attribute")

// Attrs lists the attributes in the order they are reported.
var Attrs = []Attr{
	{
		Name: "enable_disable",
		Show: func(d *cptk.Device) string {
			if d.Enabled() {
				return "1"
			}
			return "0"
		},
		Store: storeInt(func(d *cptk.Device, v int) error {
			return d.SetEnabled(v > 0)
		}),
	},
	{
		Name: "led_mode",
		Show: func(d *cptk.Device) string {
			return strconv.Itoa(int(d.Mode()))
		},
		Store: storeInt(func(d *cptk.Device, v int) error {
			return d.SetMode(cptk.Mode(v))
		}),
	},
	{
		Name: "notification",
		Store: storeInt(func(d *cptk.Device, v int) error {
			return d.SetNotification(v > 0)
		}),
	},
	{
		Name: "timeout",
		Show: func(d *cptk.Device) string {
			return strconv.Itoa(d.Timeout())
		},
		Store: storeInt((*cptk.Device).SetTimeout),
	},
	{
		Name:  "brightness",
		Store: storeInt((*cptk.Device).SetLED),
	},
	{
		Name: "touch_sensitivity",
		Store: func(d *cptk.Device, _ string) error {
			return d.EnableSensitivity()
		},
	},
	{
		Name: "touchkey_firm_update",
		Store: func(d *cptk.Device, val string) error {
			switch strings.TrimSpace(val) {
			case "S":
				return d.RequestUpdate(false)
			case "F":
				return d.RequestUpdate(true)
			}
			return fmt.Errorf("ctl: invalid update request %q, want S or F", val)
		},
	},
	{
		Name: "touchkey_firm_update_status",
		Show: func(d *cptk.Device) string {
			return d.UpdateStatus().String()
		},
	},
	{
		Name: "touchkey_firm_version_phone",
		Show: func(d *cptk.Device) string {
			return fmt.Sprintf("0x%02X", d.PhoneFirmwareVersion())
		},
	},
	{
		Name: "touchkey_firm_version_panel",
		Show: func(d *cptk.Device) string {
			v, err := d.PanelFirmwareVersion()
			if err != nil {
				return failed
			}
			return fmt.Sprintf("0x%02X", v)
		},
	},
	{Name: "touchkey_menu", Show: showInt((*cptk.Device).MenuSensitivity)},
	{Name: "touchkey_back", Show: showInt((*cptk.Device).BackSensitivity)},
	{Name: "touchkey_raw_data0", Show: showChannel((*cptk.Device).RawData, 0)},
	{Name: "touchkey_raw_data1", Show: showChannel((*cptk.Device).RawData, 1)},
	{Name: "touchkey_threshold", Show: showInt((*cptk.Device).Threshold)},
	{
		Name: "autocal_stat",
		Show: func(d *cptk.Device) string {
			on, err := d.AutocalEnabled()
			switch {
			case err != nil:
				return failed
			case on:
				return "Enabled"
			default:
				return "Disabled"
			}
		},
	},
	{Name: "touchkey_idac0", Show: showChannel((*cptk.Device).IDAC, 0)},
	{Name: "touchkey_idac1", Show: showChannel((*cptk.Device).IDAC, 1)},
}

// failed is shown in place of a value that could not be read.
const failed = "-1"

func showInt(read func(d *cptk.Device) (int, error)) func(d *cptk.Device) string {
	return func(d *cptk.Device) string {
		v, err := read(d)
		if err != nil {
			return failed
		}
		return strconv.Itoa(v)
	}
}

func showChannel(read func(d *cptk.Device, ch int) (int, error), ch int) func(d *cptk.Device) string {
	return showInt(func(d *cptk.Device) (int, error) {
		return read(d, ch)
	})
}

func storeInt(store func(d *cptk.Device, v int) error) func(d *cptk.Device, val string) error {
	return func(d *cptk.Device, val string) error {
		v, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("ctl: invalid value %q", val)
		}
		return store(d, v)
	}
}

func lookup(name string) (Attr, bool) {
	for _, a := range Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Show returns the value of the named attribute.
func Show(d *cptk.Device, name string) (string, error) {
	a, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("ctl: unknown attribute %q", name)
	}
	if a.Show == nil {
		return "", fmt.Errorf("ctl: %s: %w", name, ErrWriteOnly)
	}
	return a.Show(d), nil
}

// Store sets the named attribute.
func Store(d *cptk.Device, name, val string) error {
	a, ok := lookup(name)
	if !ok {
		return fmt.Errorf("ctl: unknown attribute %q", name)
	}
	if a.Store == nil {
		return fmt.Errorf("ctl: %s: %w", name, ErrReadOnly)
	}
	return a.Store(d, val)
}
