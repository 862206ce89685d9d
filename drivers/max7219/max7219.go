// Package max7219 drives a MAX7219 8-digit LED display / 8x8 matrix
// controller over SPI. Every command is one 16-bit word, register in the
// high byte and data in the low byte, shifted out MSB first.
package max7219

import (
	"errors"
)

// Registers.
const (
	RegNoop        = 0x00
	RegDigit0      = 0x01 // RegDigit0..RegDigit0+7 hold rows 0..7
	RegDecodeMode  = 0x09
	RegIntensity   = 0x0A
	RegScanLimit   = 0x0B
	RegShutdown    = 0x0C
	RegDisplayTest = 0x0F
)

const Rows = 8

var ErrRange = errors.New("max7219: value out of range")

// WordBus is a SPI session configured for 16-bit words.
type WordBus interface {
	TransferWord(out uint16) (uint16, error)
}

type Config struct {
	// Intensity 0..15. Default 5.
	Intensity uint8
	// ScanLimit is the last row displayed, 0..7. Default 7 (all rows).
	ScanLimit uint8
}

type Device struct {
	bus WordBus
	cfg Config
}

// New only wraps bus; it does not touch the device.
func New(bus WordBus) Device {
	return Device{bus: bus, cfg: Config{Intensity: 5, ScanLimit: 7}}
}

// Configure brings the chip into matrix mode: no BCD decode, the configured
// intensity and scan limit, display on, test mode off.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		d.cfg = cfgs[0]
	}
	if d.cfg.Intensity > 15 || d.cfg.ScanLimit > 7 {
		return ErrRange
	}
	for _, w := range [][2]byte{
		{RegDecodeMode, 0x00},
		{RegIntensity, d.cfg.Intensity},
		{RegScanLimit, d.cfg.ScanLimit},
		{RegShutdown, 0x01},
		{RegDisplayTest, 0x00},
	} {
		if err := d.Write(w[0], w[1]); err != nil {
			return err
		}
	}
	return nil
}

// Write sends one register/data word.
func (d *Device) Write(reg, data byte) error {
	_, err := d.bus.TransferWord(uint16(reg)<<8 | uint16(data))
	return err
}

// SetRow lights the bits of pattern on row 0..7.
func (d *Device) SetRow(row int, pattern byte) error {
	if row < 0 || row >= Rows {
		return ErrRange
	}
	return d.Write(byte(RegDigit0+row), pattern)
}

// Draw writes all rows.
func (d *Device) Draw(rows [Rows]byte) error {
	for i, p := range rows {
		if err := d.SetRow(i, p); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) Clear() error { return d.Draw([Rows]byte{}) }

func (d *Device) SetIntensity(v uint8) error {
	if v > 15 {
		return ErrRange
	}
	d.cfg.Intensity = v
	return d.Write(RegIntensity, v)
}

// Shutdown blanks the display without losing row data.
func (d *Device) Shutdown(off bool) error {
	var v byte = 1
	if off {
		v = 0
	}
	return d.Write(RegShutdown, v)
}

// Checkerboard returns the alternating pattern, inverted when inv is set.
func Checkerboard(inv bool) [Rows]byte {
	var rows [Rows]byte
	for i := range rows {
		a, b := byte(0xAA), byte(0x55)
		if inv {
			a, b = b, a
		}
		if i%2 == 0 {
			rows[i] = a
		} else {
			rows[i] = b
		}
	}
	return rows
}
