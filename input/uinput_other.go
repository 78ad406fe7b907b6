//go:build !linux

package input

import "errors"

// Uinput is only available on Linux.
type Uinput struct{}

func OpenUinput() (*Uinput, error) {
	return nil, errors.New("input: uinput requires linux")
}

func (u *Uinput) Register(name string, keys []Key) error { return errors.New("input: uinput requires linux") }
func (u *Uinput) Report(k Key, pressed bool)             {}
func (u *Uinput) Sync()                                  {}
func (u *Uinput) Err() error                             { return nil }
func (u *Uinput) Close() error                           { return nil }
