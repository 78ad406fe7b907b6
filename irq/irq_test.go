package irq

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestDelivery(t *testing.T) {
	pin := &gpiotest.Pin{N: "IRQ", EdgesChan: make(chan gpio.Level)}
	l := New(pin)
	fired := make(chan struct{}, 10)
	err := l.Request(func() {
		// Acknowledge; the controller releases the line once read.
		pin.Out(gpio.High)
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if l.Asserted() {
		t.Fatal("line asserted after pull-up")
	}
	pin.EdgesChan <- gpio.Low
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	select {
	case <-fired:
		t.Fatal("handler called for acknowledged line")
	case <-time.After(3 * pollInterval):
	}
}

func TestDisable(t *testing.T) {
	pin := &gpiotest.Pin{N: "IRQ", EdgesChan: make(chan gpio.Level)}
	l := New(pin)
	fired := make(chan struct{}, 10)
	if err := l.Request(func() {
		pin.Out(gpio.High)
		fired <- struct{}{}
	}); err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	l.Disable()
	pin.EdgesChan <- gpio.Low
	select {
	case <-fired:
		t.Fatal("handler called while disabled")
	case <-time.After(3 * pollInterval):
	}
	// The line is still asserted; enabling delivers it.
	l.Enable()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("pending interrupt not delivered after enable")
	}
}

func TestRequestTwice(t *testing.T) {
	pin := &gpiotest.Pin{N: "IRQ", EdgesChan: make(chan gpio.Level)}
	l := New(pin)
	if err := l.Request(func() {}); err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if err := l.Request(func() {}); err == nil {
		t.Error("second Request succeeded")
	}
}
