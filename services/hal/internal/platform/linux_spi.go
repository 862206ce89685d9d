//go:build linux

package platform

import (
	"fmt"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3/sysfs"
)

// spidev clock bounds enforced by periph's sysfs port.
const (
	minSPIFrequency = 100 * physic.Hertz
	maxSPIFrequency = physic.GigaHertz
)

// devSPI is an open /dev/spidevB.C node driven with 8-bit words.
//
// A periph port connects once, fixing its mode; the clock stays adjustable
// through LimitSpeed. A mode change therefore reopens the node.
type devSPI struct {
	bus, cs int
	max     physic.Frequency

	mu   sync.Mutex
	port *sysfs.SPI
	conn spi.Conn // nil until the first Configure
	mode spi.Mode
}

func (lx *Linux) OpenSPI(bus, cs int) (core.SPIDevice, error) {
	const op = "spi.open"
	if err := lx.devAccess(fmt.Sprintf("spidev%d.%d", bus, cs)); err != nil {
		return nil, errcode.Wrap(op, err)
	}
	p, err := sysfs.NewSPI(bus, cs)
	if err != nil {
		return nil, errcode.Wrap(op, err)
	}
	return &devSPI{bus: bus, cs: cs, max: lx.SPIMax, port: p}, nil
}

// Configure accepts spi.Mode0..Mode3, optionally with spi.LSBFirst.
func (d *devSPI) Configure(mode spi.Mode, speed physic.Frequency) error {
	const op = "spi.configure"
	if speed < minSPIFrequency || speed > maxSPIFrequency {
		return errcode.New(op, errcode.UnsupportedFrequency, speed.String())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil && mode == d.mode {
		return errcode.Wrap(op, d.port.LimitSpeed(speed))
	}
	port := d.port
	if d.conn != nil {
		p, err := sysfs.NewSPI(d.bus, d.cs)
		if err != nil {
			return errcode.Wrap(op, err)
		}
		port = p
	}
	// The transfer clock is the lower of the Connect and LimitSpeed values,
	// so Connect sets the ceiling and LimitSpeed the working clock.
	c, err := port.Connect(maxSPIFrequency, mode, 8)
	if err == nil {
		err = port.LimitSpeed(speed)
	}
	if err != nil {
		if port != d.port {
			_ = port.Close()
		}
		return errcode.Wrap(op, err)
	}
	if port != d.port {
		_ = d.port.Close()
		d.port = port
	}
	d.conn, d.mode = c, mode
	return nil
}

func (d *devSPI) MaxFrequency() physic.Frequency { return d.max }

// Tx is a full-duplex transfer; r may be nil or shorter than w.
func (d *devSPI) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	if n == 0 {
		return nil
	}
	tx := make([]byte, n)
	rx := make([]byte, n)
	copy(tx, w)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return errcode.New("spi.tx", errcode.InvalidState, "not configured")
	}
	if err := d.conn.Tx(tx, rx); err != nil {
		return err
	}
	copy(r, rx)
	return nil
}

func (d *devSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := d.Tx([]byte{b}, r[:])
	return r[0], err
}

func (d *devSPI) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}
