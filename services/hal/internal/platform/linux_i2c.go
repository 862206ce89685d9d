//go:build linux

package platform

import (
	"strconv"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"

	"golang.org/x/sys/unix"
	"periph.io/x/host/v3/sysfs"
)

// maxI2CMsg is the largest i2c_msg the kernel accepts (a 16-bit length).
const maxI2CMsg = 1<<16 - 1

// devI2C is an open /dev/i2c-N adapter. periph's sysfs bus issues I2C_RDWR,
// so a write+read pair goes out as one transaction with a repeated start.
type devI2C struct {
	bus *sysfs.I2C
}

func (lx *Linux) OpenI2C(bus int) (core.I2CBus, error) {
	const op = "i2c.open"
	if err := lx.devAccess("i2c-" + strconv.Itoa(bus)); err != nil {
		return nil, errcode.Wrap(op, err)
	}
	b, err := sysfs.NewI2C(bus)
	if err != nil {
		return nil, errcode.Wrap(op, err)
	}
	return &devI2C{bus: b}, nil
}

// Tx rejects buffers the kernel would silently truncate.
func (d *devI2C) Tx(addr uint16, w, r []byte) error {
	if len(w) > maxI2CMsg || len(r) > maxI2CMsg {
		return errcode.New("i2c.tx", errcode.OutOfRange, "message longer than 65535 bytes")
	}
	if d.bus == nil {
		return errcode.New("i2c.tx", errcode.InvalidState, "bus closed")
	}
	return d.bus.Tx(addr, w, r)
}

func (d *devI2C) Close() error { return d.bus.Close() }

// devAccess checks a /dev node under Root before periph opens the live one.
func (lx *Linux) devAccess(name string) error {
	return unix.Access(lx.path("dev", name), unix.R_OK|unix.W_OK)
}
