package cptk

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestBacklightTimeout(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey, Timeout: 3})
	f.sim.Press(1)
	if !f.sim.LED() {
		t.Fatal("LED off after key press")
	}
	if n := len(f.clock.active()); n != 0 {
		t.Errorf("%d timers pending while key is held", n)
	}
	f.sim.Release(1)
	timers := f.clock.active()
	if len(timers) != 1 {
		t.Fatalf("%d timers pending after release, want 1", len(timers))
	}
	if timers[0].d != 3*time.Second {
		t.Errorf("timeout %v, want 3s", timers[0].d)
	}
	f.clock.fire()
	if f.sim.LED() || f.dev.LED() != LEDOff {
		t.Error("LED on after timeout")
	}
	if !f.dev.Enabled() {
		t.Error("timeout powered the controller down")
	}
}

func TestRearmReplacesTimer(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	f.sim.Press(1)
	for i := 0; i < 3; i++ {
		f.sim.Release(1)
	}
	timers := f.clock.active()
	if len(timers) != 1 {
		t.Fatalf("%d timers pending, want 1", len(timers))
	}
	if last := f.clock.timers[len(f.clock.timers)-1]; timers[0] != last {
		t.Error("pending timer is not the most recent one")
	}
	// A cancelled timer that already started running is ignored.
	f.clock.timers[0].f()
	if !f.sim.LED() {
		t.Error("stale timer turned the LED off")
	}
	f.clock.fire()
	if f.sim.LED() {
		t.Error("LED on after timeout")
	}
}

func TestTimeoutZero(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	if err := f.dev.SetTimeout(0); err != nil {
		t.Fatal(err)
	}
	f.sim.Press(1)
	f.sim.Release(1)
	f.clock.fire()
	if !f.sim.LED() {
		t.Error("LED turned off with timeout 0")
	}
	if err := f.dev.SetTimeout(-1); err == nil {
		t.Error("negative timeout accepted")
	}
}

func TestNotificationHold(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	d := f.dev
	f.sim.Press(1)
	f.sim.Release(1)
	if err := d.SetNotification(true); err != nil {
		t.Fatal(err)
	}
	if !f.sim.LED() {
		t.Fatal("LED off with notification")
	}
	if n := len(f.clock.active()); n != 0 {
		t.Errorf("%d timers pending with notification", n)
	}
	if err := d.Disable(); err != nil {
		t.Fatal(err)
	}
	if err := d.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	f.sim.Press(2)
	f.sim.Release(2)
	if n := f.clock.fire(); n != 0 {
		t.Errorf("%d timers armed with notification", n)
	}
	d.Suspend()
	if d.State() != Enabled || !f.sim.IRQ().Enabled() {
		t.Error("suspended with notification")
	}
	if !f.sim.LED() {
		t.Error("LED turned off with notification")
	}

	if err := d.SetNotification(false); err != nil {
		t.Fatal(err)
	}
	if f.sim.LED() {
		t.Error("LED on after notification ended")
	}
	if !d.Enabled() {
		t.Error("controller powered down by notification end")
	}
}

func TestSetMode(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	d := f.dev
	f.sim.Press(1)
	if err := d.SetMode(ModeOff); err != nil {
		t.Fatal(err)
	}
	if f.sim.LED() || d.Mode() != ModeOff {
		t.Errorf("mode %v, LED %v after switching off", d.Mode(), f.sim.LED())
	}
	f.sim.Release(1)
	f.sim.Press(1)
	if f.sim.LED() || len(f.clock.active()) != 0 {
		t.Error("backlight driven in ModeOff")
	}
	if err := d.Enable(); err != nil || f.sim.LED() {
		t.Errorf("Enable in ModeOff: LED %v, err %v", f.sim.LED(), err)
	}
	if err := d.SetNotification(true); err != nil || d.Notification() {
		t.Errorf("notification taken in ModeOff: %v", err)
	}

	if err := d.SetMode(ModeTouchscreen); err != nil {
		t.Fatal(err)
	}
	if !f.sim.LED() || d.Mode() != ModeTouchscreen {
		t.Errorf("mode %v, LED %v after switching on", d.Mode(), f.sim.LED())
	}
	if err := d.SetMode(Mode(7)); err == nil {
		t.Error("invalid mode accepted")
	}
	if d.Mode() != ModeTouchscreen {
		t.Error("invalid mode changed the mode")
	}
}

func TestSetModeOffReleasesHold(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	d := f.dev
	if err := d.SetNotification(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetMode(ModeOff); err != nil {
		t.Fatal(err)
	}
	if d.Notification() || f.sim.LED() {
		t.Error("backlight held after switching off")
	}
	d.Suspend()
	if d.State() != Suspended {
		t.Error("suspend vetoed after switching off")
	}
}

func TestTouchscreenActivity(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	d := f.dev
	d.TouchscreenActivity(true)
	if f.sim.LED() {
		t.Fatal("touchscreen activity followed in ModeKey")
	}
	if err := d.SetMode(ModeTouchscreen); err != nil {
		t.Fatal(err)
	}
	f.clock.fire()
	if f.sim.LED() {
		t.Fatal("LED on after timeout")
	}
	d.TouchscreenActivity(true)
	if !f.sim.LED() {
		t.Fatal("LED off after touch")
	}
	d.TouchscreenActivity(true)
	d.TouchscreenActivity(false)
	if n := len(f.clock.active()); n != 1 {
		t.Errorf("%d timers pending after touch, want 1", n)
	}
	f.clock.fire()
	if f.sim.LED() {
		t.Error("LED on after timeout")
	}
}

func TestSetEnabled(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	d := f.dev
	if err := d.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	if d.State() != Disabled || d.Enabled() || f.sim.Powered() {
		t.Errorf("state %v, powered %v after disabling", d.State(), f.sim.Powered())
	}
	if d.LED() != LEDOff {
		t.Error("LED status on while disabled")
	}
	if err := d.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if d.State() != Enabled || !f.sim.Powered() || !f.sim.LED() {
		t.Errorf("state %v, LED %v after enabling", d.State(), f.sim.LED())
	}
	if n := len(f.clock.active()); n != 1 {
		t.Errorf("%d timers pending after enabling, want 1", n)
	}
}

func TestNoBacklight(t *testing.T) {
	f := newFixture(t, Config{Mode: ModeKey})
	d := f.dev
	if d.Mode() != ModeOff {
		t.Errorf("mode %v without backlight", d.Mode())
	}
	for name, err := range map[string]error{
		"Enable":          d.Enable(),
		"Disable":         d.Disable(),
		"SetEnabled":      d.SetEnabled(true),
		"SetMode":         d.SetMode(ModeKey),
		"SetNotification": d.SetNotification(true),
		"SetTimeout":      d.SetTimeout(2),
	} {
		if !errors.Is(err, ErrNoBacklight) {
			t.Errorf("%s: got %v, want %v", name, err, ErrNoBacklight)
		}
	}
}

func TestLEDOnlyWhileEnabled(t *testing.T) {
	f := newFixture(t, Config{Backlight: true, Mode: ModeKey})
	d := f.dev
	ops := []func(r *rand.Rand){
		func(r *rand.Rand) { f.sim.Press(1 + r.Intn(2)) },
		func(r *rand.Rand) { f.sim.Release(1 + r.Intn(2)) },
		func(r *rand.Rand) { d.Suspend() },
		func(r *rand.Rand) { d.Resume() },
		func(r *rand.Rand) { d.SetEnabled(r.Intn(2) == 0) },
		func(r *rand.Rand) { d.Enable() },
		func(r *rand.Rand) { d.Disable() },
		func(r *rand.Rand) { d.SetNotification(r.Intn(2) == 0) },
		func(r *rand.Rand) { d.SetMode(Mode(r.Intn(3))) },
		func(r *rand.Rand) { d.SetTimeout(r.Intn(2)) },
		func(r *rand.Rand) { d.TouchscreenActivity(r.Intn(2) == 0) },
		func(r *rand.Rand) { f.clock.fire() },
	}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		op := r.Intn(len(ops))
		ops[op](r)
		if d.LED() == LEDOn && !d.Enabled() {
			t.Fatalf("step %d (op %d): LED on while disabled", i, op)
		}
		if d.Notification() && d.Mode() == ModeOff {
			t.Fatalf("step %d (op %d): notification held in ModeOff", i, op)
		}
		if n := len(f.clock.active()); n > 1 {
			t.Fatalf("step %d (op %d): %d timers pending", i, op, n)
		}
	}
	if n := f.sim.UnpoweredTx(); n > 0 {
		t.Errorf("%d transfers to unpowered controller", n)
	}
}
