// Package input defines the sinks key events are delivered to.
package input

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Key is a Linux input key code.
type Key uint16

// Key codes used by capacitive touchkey panels.
const (
	KeyReserved Key = 0
	KeyHome     Key = 102
	KeyMenu     Key = 139
	KeyBack     Key = 158
	KeySearch   Key = 217
)

// Sink receives key state changes. A Sync marks the end of a group
// of related reports.
type Sink interface {
	// Register announces the device name and the keys it may report.
	Register(name string, keys []Key) error
	Report(k Key, pressed bool)
	Sync()
}

type Event struct {
	Key     Key
	Pressed bool
	// Sync is set for the marker closing a group of reports; Key and
	// Pressed are unused.
	Sync bool
}

// Chan is a Sink that sends every report and sync marker as an Event.
// The channel must be drained; reports block otherwise.
type Chan chan Event

func (c Chan) Register(name string, keys []Key) error {
	return nil
}

func (c Chan) Report(k Key, pressed bool) {
	c <- Event{Key: k, Pressed: pressed}
}

func (c Chan) Sync() {
	c <- Event{Sync: true}
}

// Log is a Sink that logs reports, for running without an input
// subsystem.
type Log struct {
	Logger *log.Logger
	name   string
}

func (l *Log) Register(name string, keys []Key) error {
	l.name = name
	l.Logger.Printf("input: %s: keys %v", name, keys)
	return nil
}

func (l *Log) Report(k Key, pressed bool) {
	state := "up"
	if pressed {
		state = "down"
	}
	l.Logger.Printf("input: %s: %v %s", l.name, k, state)
}

func (l *Log) Sync() {}

func (k Key) String() string {
	switch k {
	case KeyReserved:
		return "RESERVED"
	case KeyHome:
		return "HOME"
	case KeyMenu:
		return "MENU"
	case KeyBack:
		return "BACK"
	case KeySearch:
		return "SEARCH"
	}
	return "KEY_" + strconv.Itoa(int(k))
}

// ParseKey parses a key name as returned by Key.String, or a decimal
// key code.
func ParseKey(s string) (Key, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, k := range []Key{KeyReserved, KeyHome, KeyMenu, KeyBack, KeySearch} {
		if s == k.String() {
			return k, nil
		}
	}
	code, err := strconv.ParseUint(strings.TrimPrefix(s, "KEY_"), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("input: unknown key %q", s)
	}
	return Key(code), nil
}
