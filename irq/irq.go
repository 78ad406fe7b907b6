// Package irq delivers a level-triggered, active-low GPIO interrupt to a
// handler running on its own goroutine.
package irq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Line is an interrupt line backed by a GPIO input. The handler runs
// whenever the line is enabled and reads low, and again at most every
// pollInterval while it stays low.
type Line struct {
	pin gpio.PinIn

	mu      sync.Mutex
	enabled bool
	handler func()
	quit    chan struct{}
	done    chan struct{}
}

const pollInterval = 50 * time.Millisecond

func New(pin gpio.PinIn) *Line {
	return &Line{pin: pin}
}

// Request configures the pin and starts delivering interrupts to
// handler. The line starts out enabled.
func (l *Line) Request(handler func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handler != nil {
		return errors.New("irq: line already requested")
	}
	if err := l.pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("irq: %s: %w", l.pin, err)
	}
	l.handler = handler
	l.enabled = true
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(handler, l.quit, l.done)
	return nil
}

func (l *Line) run(handler func(), quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		default:
		}
		// Wake up on the falling edge, or after the poll interval to
		// serve a line that stayed asserted.
		l.pin.WaitForEdge(pollInterval)
		if !l.isEnabled() || !l.Asserted() {
			continue
		}
		handler()
	}
}

func (l *Line) isEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *Line) Enable() {
	l.mu.Lock()
	l.enabled = true
	l.mu.Unlock()
}

// Disable stops handler invocations. A handler already running is not
// interrupted.
func (l *Line) Disable() {
	l.mu.Lock()
	l.enabled = false
	l.mu.Unlock()
}

// Asserted reports whether the line is active (low).
func (l *Line) Asserted() bool {
	return l.pin.Read() == gpio.Low
}

// Close stops delivery and waits for the handler goroutine to exit.
func (l *Line) Close() error {
	l.mu.Lock()
	quit, done := l.quit, l.done
	l.enabled = false
	l.handler = nil
	l.quit, l.done = nil, nil
	l.mu.Unlock()
	if quit == nil {
		return nil
	}
	close(quit)
	<-done
	return nil
}
