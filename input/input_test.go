package input

import (
	"bytes"
	"log"
	"testing"
)

func TestChan(t *testing.T) {
	c := make(Chan, 4)
	var s Sink = c
	if err := s.Register("test", []Key{KeyMenu, KeyBack}); err != nil {
		t.Fatal(err)
	}
	s.Report(KeyMenu, true)
	s.Sync()
	s.Report(KeyMenu, false)
	s.Sync()
	want := []Event{
		{Key: KeyMenu, Pressed: true},
		{Sync: true},
		{Key: KeyMenu},
		{Sync: true},
	}
	for i, w := range want {
		if got := <-c; got != w {
			t.Errorf("event %d: got %+v, want %+v", i, got, w)
		}
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		k    Key
		want string
	}{
		{KeyMenu, "MENU"},
		{KeyBack, "BACK"},
		{Key(30), "KEY_30"},
		{Key(212), "KEY_212"},
	}
	for _, test := range tests {
		if got := test.k.String(); got != test.want {
			t.Errorf("Key(%d).String() = %q, want %q", test.k, got, test.want)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		s    string
		want Key
	}{
		{"menu", KeyMenu},
		{" BACK ", KeyBack},
		{"reserved", KeyReserved},
		{"KEY_30", Key(30)},
		{"212", Key(212)},
	}
	for _, test := range tests {
		got, err := ParseKey(test.s)
		if err != nil {
			t.Errorf("ParseKey(%q): %v", test.s, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseKey(%q) = %v, want %v", test.s, got, test.want)
		}
	}
	for _, s := range []string{"", "volume", "70000"} {
		if k, err := ParseKey(s); err == nil {
			t.Errorf("ParseKey(%q) = %v, want error", s, k)
		}
	}
}

func TestLog(t *testing.T) {
	buf := new(bytes.Buffer)
	var s Sink = &Log{Logger: log.New(buf, "", 0)}
	s.Register("keys", []Key{KeyMenu})
	s.Report(KeyMenu, true)
	s.Report(KeyMenu, false)
	s.Sync()
	want := "input: keys: keys [MENU]\ninput: keys: MENU down\ninput: keys: MENU up\n"
	if got := buf.String(); got != want {
		t.Errorf("logged\n%s\nwant\n%s", got, want)
	}
}
