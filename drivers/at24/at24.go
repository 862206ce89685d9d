// Package at24 drives 24C01 and 24C02 I²C EEPROMs: one address byte and at
// most 256 bytes behind a single bus address. Larger single-byte parts
// (24C04/08/16) page through extra bus addresses and are not handled.
//
// Writes are split at page boundaries and each page write is followed by the
// part's write-cycle delay. Reads use a single pointer write followed by a
// repeated-start read.
package at24

import (
	"errors"
	"time"

	"boardio-go/x/mathx"

	"tinygo.org/x/drivers"
)

// Default I2C address.
const Address = 0x50

var ErrOutOfRange = errors.New("at24: offset out of range")

type Config struct {
	// Address defaults to 0x50.
	Address uint16
	// Size in bytes. Default 256 (24C02).
	Size int
	// PageSize in bytes. Default 8.
	PageSize int
	// WriteCycle is waited after each page write. Default 5 ms.
	WriteCycle time.Duration
}

type Device struct {
	bus     drivers.I2C
	Address uint16
	cfg     Config
}

func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, cfg: Config{Size: 256, PageSize: 8, WriteCycle: 5 * time.Millisecond}}
}

// Configure applies cfg; zero fields keep their defaults.
func (d *Device) Configure(cfg Config) {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	if cfg.Size > 0 {
		d.cfg.Size = mathx.Min(cfg.Size, 256)
	}
	if cfg.PageSize > 0 {
		d.cfg.PageSize = cfg.PageSize
	}
	if cfg.WriteCycle > 0 {
		d.cfg.WriteCycle = cfg.WriteCycle
	}
}

func (d *Device) Size() int { return d.cfg.Size }

// Pages is the number of write pages.
func (d *Device) Pages() int { return mathx.CeilDiv(d.cfg.Size, d.cfg.PageSize) }

// Byte reads one byte at off.
func (d *Device) Byte(off int) (byte, error) {
	var b [1]byte
	if _, err := d.ReadAt(b[:], int64(off)); err != nil {
		return 0, err
	}
	return b[0], nil
}

// SetByte writes one byte at off.
func (d *Device) SetByte(off int, v byte) error {
	_, err := d.WriteAt([]byte{v}, int64(off))
	return err
}

// ReadAt implements io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(d.cfg.Size) {
		return 0, ErrOutOfRange
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.bus.Tx(d.Address, []byte{byte(off)}, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAt implements io.WriterAt, one transaction per page.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(d.cfg.Size) {
		return 0, ErrOutOfRange
	}
	n := 0
	buf := make([]byte, 1+d.cfg.PageSize)
	for n < len(p) {
		at := int(off) + n
		chunk := mathx.Min(d.cfg.PageSize-at%d.cfg.PageSize, len(p)-n)
		buf[0] = byte(at)
		copy(buf[1:], p[n:n+chunk])
		if err := d.bus.Tx(d.Address, buf[:1+chunk], nil); err != nil {
			return n, err
		}
		n += chunk
		time.Sleep(d.cfg.WriteCycle)
	}
	return n, nil
}
