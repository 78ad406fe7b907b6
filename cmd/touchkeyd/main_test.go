package main

import (
	"io"
	"log"
	"path/filepath"
	"slices"
	"testing"

	"touchkey.dev/ctl"
	"touchkey.dev/driver/cptk"
	"touchkey.dev/input"
	"touchkey.dev/settings"
)

func TestParseKeymap(t *testing.T) {
	keys, err := parseKeymap("reserved,menu,back,search")
	if err != nil {
		t.Fatal(err)
	}
	want := []input.Key{input.KeyReserved, input.KeyMenu, input.KeyBack, input.KeySearch}
	if !slices.Equal(keys, want) {
		t.Errorf("got %v, want %v", keys, want)
	}
	if _, err := parseKeymap("menu,,back"); err == nil {
		t.Error("empty key accepted")
	}
}

func probeSim(t *testing.T) (*cptk.Device, *hardware) {
	t.Helper()
	hw, err := openHardware("sim", 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	dev, err := cptk.Probe(hw.bus, cptk.Config{
		IRQ:       hw.irq,
		Power:     hw.power,
		Input:     make(input.Chan, 64),
		Flasher:   hw.flasher,
		Backlight: true,
		Mode:      cptk.ModeKey,
		Logger:    log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		dev.Close()
		hw.Close()
	})
	return dev, hw
}

func TestSettingsRoundTrip(t *testing.T) {
	dev, _ := probeSim(t)
	path := filepath.Join(t.TempDir(), "settings.cbor")
	s, err := settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := restore(dev, s); err != nil {
		t.Fatal(err)
	}
	if got := snapshot(dev); got != settings.Default {
		t.Errorf("snapshot %+v after restoring defaults", got)
	}

	want := settings.Settings{Mode: int(cptk.ModeTouchscreen), Timeout: 4, Disabled: true}
	if err := settings.Save(path, want); err != nil {
		t.Fatal(err)
	}
	dev2, hw2 := probeSim(t)
	s, err = settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := restore(dev2, s); err != nil {
		t.Fatal(err)
	}
	if got := snapshot(dev2); got != want {
		t.Errorf("snapshot %+v, want %+v", got, want)
	}
	if hw2.sim.Powered() {
		t.Error("restored disabled controller is powered")
	}
}

func TestSimCommands(t *testing.T) {
	dev, hw := probeSim(t)
	h := ctl.NewHandler(dev, log.New(io.Discard, "", 0))
	addSimCommands(h, hw.sim)
	tests := []struct {
		line, reply string
	}{
		{"led", "ok off"},
		{"press 1", "ok"},
		{"led", "ok on"},
		{"release 1", "ok"},
	}
	for _, test := range tests {
		if got := ctl.Reply(h.Exec(test.line)); got != test.reply {
			t.Errorf("%q: got %q, want %q", test.line, got, test.reply)
		}
	}
	if _, err := h.Exec("press x"); err == nil {
		t.Error("invalid key index accepted")
	}
}
