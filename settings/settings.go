// Package settings persists the operator's backlight settings across
// restarts.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// Settings are the operator controlled backlight settings.
type Settings struct {
	// Mode is the LED mode, as understood by cptk.Mode.
	Mode int `cbor:"1,keyasint"`
	// Timeout is the backlight timeout in seconds.
	Timeout int `cbor:"2,keyasint"`
	// Disabled records that the operator switched the controller off.
	Disabled bool `cbor:"3,keyasint,omitempty"`
}

// Default are the settings in effect before the first Save.
var Default = Settings{
	Mode:    1,
	Timeout: 1,
}

// Load reads the settings at path. A missing file yields Default.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	mode, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return Settings{}, fmt.Errorf("settings: failed to initialize decoder: %w", err)
	}
	s := Default
	if err := mode.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: %s: %w", path, err)
	}
	if s.Timeout < 0 {
		return Settings{}, fmt.Errorf("settings: %s: invalid timeout %d", path, s.Timeout)
	}
	return s, nil
}

// Save writes the settings to path, replacing the previous file
// atomically.
func Save(path string, s Settings) error {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return fmt.Errorf("settings: failed to initialize encoder: %w", err)
	}
	data, err := enc.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}
