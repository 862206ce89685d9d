package max7219

import (
	"errors"
	"testing"
)

type fakeBus struct {
	words []uint16
	err   error
}

func (f *fakeBus) TransferWord(w uint16) (uint16, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.words = append(f.words, w)
	return 0, nil
}

func TestConfigureSequence(t *testing.T) {
	bus := &fakeBus{}
	d := New(bus)
	if err := d.Configure(); err != nil {
		t.Fatal(err)
	}
	want := []uint16{0x0900, 0x0A05, 0x0B07, 0x0C01, 0x0F00}
	if len(bus.words) != len(want) {
		t.Fatalf("words=%04x", bus.words)
	}
	for i, w := range want {
		if bus.words[i] != w {
			t.Fatalf("word %d=%#04x want %#04x", i, bus.words[i], w)
		}
	}
}

func TestDrawCheckerboard(t *testing.T) {
	bus := &fakeBus{}
	d := New(bus)
	if err := d.Draw(Checkerboard(false)); err != nil {
		t.Fatal(err)
	}
	if bus.words[0] != 0x01AA || bus.words[1] != 0x0255 || bus.words[7] != 0x0855 {
		t.Fatalf("words=%04x", bus.words)
	}
	if inv := Checkerboard(true); inv[0] != 0x55 {
		t.Fatalf("inverted row0=%#x", inv[0])
	}
}

func TestRangeAndBusErrors(t *testing.T) {
	bus := &fakeBus{}
	d := New(bus)
	if err := d.SetRow(8, 1); !errors.Is(err, ErrRange) {
		t.Fatalf("row 8 err=%v", err)
	}
	if err := d.SetIntensity(16); !errors.Is(err, ErrRange) {
		t.Fatalf("intensity err=%v", err)
	}
	if err := d.Configure(Config{Intensity: 3, ScanLimit: 9}); !errors.Is(err, ErrRange) {
		t.Fatalf("scan limit err=%v", err)
	}
	boom := errors.New("boom")
	bus.err = boom
	if err := d.Clear(); !errors.Is(err, boom) {
		t.Fatalf("bus err=%v", err)
	}
}
