package hal

import (
	"io"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"
)

// I2C is a session with one target address on a bus. It implements
// tinygo.org/x/drivers.I2C for the session's address.
type I2C struct {
	h    *core.Handle
	host *Host
	idx  int
	bus  core.I2CBus

	mu   sync.Mutex
	addr uint8
}

// OpenI2C opens board bus index bus and claims cfg.Address on it.
func (h *Host) OpenI2C(bus int, cfg types.I2CConfig) (*I2C, error) {
	const op = "i2c.open"
	if cfg.Address > 0x7f {
		return nil, errcode.New(op, errcode.OutOfRange, "7-bit address")
	}
	ref, err := h.board.I2CBus(bus)
	if err != nil {
		return nil, err
	}
	var s *I2C
	err = h.open(op, types.KindI2C, core.I2CID(bus, cfg.Address), func(hd *core.Handle) (io.Closer, error) {
		n := ref.Bus
		if ref.Adapter != "" {
			found, err := h.backend.FindI2CBus(ref.Adapter)
			if err != nil {
				return nil, err
			}
			n = found
		}
		b, err := h.backend.OpenI2C(n)
		if err != nil {
			return nil, err
		}
		s = &I2C{h: hd, host: h, idx: bus, bus: b, addr: cfg.Address}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *I2C) Address() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// SetAddress moves the session to another target. The new address must be
// free on this bus.
func (s *I2C) SetAddress(addr uint8) error {
	const op = "i2c.set_address"
	if addr > 0x7f {
		return errcode.New(op, errcode.OutOfRange, "7-bit address")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.Rebind(core.I2CID(s.idx, addr)); err != nil {
		return errcode.Wrap(op, err)
	}
	s.addr = addr
	return nil
}

func (s *I2C) WriteRegister(reg, value byte) error {
	return s.xfer("i2c.write_register", []byte{reg, value}, nil)
}

func (s *I2C) ReadRegister(reg byte) (byte, error) {
	var r [1]byte
	if err := s.xfer("i2c.read_register", []byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteRegisters writes data starting at reg in one transaction.
func (s *I2C) WriteRegisters(reg byte, data []byte) error {
	w := make([]byte, 1+len(data))
	w[0] = reg
	copy(w[1:], data)
	return s.xfer("i2c.write_registers", w, nil)
}

// ReadRegisters fills buf starting at reg (write pointer, repeated start, read).
func (s *I2C) ReadRegisters(reg byte, buf []byte) error {
	return s.xfer("i2c.read_registers", []byte{reg}, buf)
}

// Tx satisfies drivers.I2C. addr must be the session's address.
func (s *I2C) Tx(addr uint16, w, r []byte) error {
	const op = "i2c.tx"
	if addr != uint16(s.Address()) {
		return errcode.New(op, errcode.InvalidState, "address not owned by this session")
	}
	return s.xfer(op, w, r)
}

func (s *I2C) xfer(op string, w, r []byte) error {
	if err := s.h.Live(op); err != nil {
		return err
	}
	return errcode.Wrap(op, s.bus.Tx(uint16(s.Address()), w, r))
}

func (s *I2C) Close() error {
	err := s.h.Close(func() error { return errcode.Wrap("i2c.close", s.bus.Close()) })
	s.host.forget(s)
	return err
}
