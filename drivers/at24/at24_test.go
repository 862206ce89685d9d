package at24

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakeEEPROM models a 256-byte part with 8-byte pages: a write never
// crosses a page, it wraps inside it like the real device.
type fakeEEPROM struct {
	mem    [256]byte
	ptr    byte
	writes []int // payload length per write transaction
	nack   bool
}

var errNack = errors.New("nack")

func (f *fakeEEPROM) Tx(addr uint16, w, r []byte) error {
	if f.nack || addr != Address {
		return errNack
	}
	if len(w) > 0 {
		f.ptr = w[0]
		if len(w) > 1 {
			f.writes = append(f.writes, len(w)-1)
		}
		page := f.ptr &^ 7
		for i, v := range w[1:] {
			f.mem[page|(f.ptr+byte(i))&7] = v
		}
	}
	for i := range r {
		r[i] = f.mem[f.ptr]
		f.ptr++
	}
	return nil
}

func newDev(f *fakeEEPROM) Device {
	d := New(f)
	d.Configure(Config{WriteCycle: time.Microsecond})
	return d
}

func TestWriteSplitsAtPageBoundaries(t *testing.T) {
	f := &fakeEEPROM{}
	d := newDev(f)
	data := []byte("hello, eeprom!")
	n, err := d.WriteAt(data, 5)
	if err != nil || n != len(data) {
		t.Fatalf("WriteAt n=%d err=%v", n, err)
	}
	// 5..7, 8..15, 16..18
	if len(f.writes) != 3 || f.writes[0] != 3 || f.writes[1] != 8 || f.writes[2] != 3 {
		t.Fatalf("page writes=%v", f.writes)
	}
	got := make([]byte, len(data))
	if _, err := d.ReadAt(got, 5); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read back %q", got)
	}
}

func TestByteAccessAndBounds(t *testing.T) {
	f := &fakeEEPROM{}
	d := newDev(f)
	if err := d.SetByte(0, 0x02); err != nil {
		t.Fatal(err)
	}
	if v, err := d.Byte(0); err != nil || v != 0x02 {
		t.Fatalf("Byte=%#x err=%v", v, err)
	}
	if _, err := d.ReadAt(make([]byte, 2), 255); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("past end err=%v", err)
	}
	if err := d.SetByte(-1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("negative err=%v", err)
	}
	if d.Pages() != 32 {
		t.Fatalf("pages=%d", d.Pages())
	}
	f.nack = true
	if _, err := d.Byte(1); !errors.Is(err, errNack) {
		t.Fatalf("nack err=%v", err)
	}
}

func TestSizeCappedToOneAddressByte(t *testing.T) {
	d := New(&fakeEEPROM{})
	d.Configure(Config{Size: 512, PageSize: 16}) // a 24C04 would need a second bus address
	if d.Size() != 256 || d.Pages() != 16 {
		t.Fatalf("size=%d pages=%d", d.Size(), d.Pages())
	}
	if _, err := d.ReadAt(make([]byte, 1), 256); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("offset 256 err=%v", err)
	}
}
