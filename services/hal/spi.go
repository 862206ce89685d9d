package hal

import (
	"io"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"
	"boardio-go/x/mathx"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// DefaultSPIFrequency is used when an open does not name a clock.
const DefaultSPIFrequency = physic.MegaHertz

// SPI is a session on one chip select. It implements
// tinygo.org/x/drivers.SPI for raw byte transfers.
type SPI struct {
	h    *core.Handle
	host *Host
	dev  core.SPIDevice
	max  physic.Frequency

	mu   sync.Mutex
	freq physic.Frequency
	bits int // 0 until SetWordSize
	mode spi.Mode
}

// OpenSPI opens board SPI index bus. cfg.ChipSelect picks the device on
// generic boards.
func (h *Host) OpenSPI(bus int, cfg types.SPIConfig) (*SPI, error) {
	const op = "spi.open"
	if cfg.WordBits != 0 && cfg.WordBits != 8 && cfg.WordBits != 16 {
		return nil, errcode.New(op, errcode.OutOfRange, "word size must be 8 or 16")
	}
	if !validMode(cfg.Mode) {
		return nil, errcode.New(op, errcode.OutOfRange, "mode must be 0..3, optionally LSB first")
	}
	ref, err := h.board.SPIBus(bus, cfg.ChipSelect)
	if err != nil {
		return nil, err
	}
	var s *SPI
	err = h.open(op, types.KindSPI, core.SPIID(ref.Bus, ref.CS), func(hd *core.Handle) (io.Closer, error) {
		dev, err := h.backend.OpenSPI(ref.Bus, ref.CS)
		if err != nil {
			return nil, err
		}
		limit := dev.MaxFrequency()
		if h.board.SPIMaxHz > 0 {
			limit = mathx.Min(limit, physic.Frequency(h.board.SPIMaxHz)*physic.Hertz)
		}
		freq := mathx.Min(DefaultSPIFrequency, limit)
		if cfg.FrequencyHz != 0 {
			freq = physic.Frequency(cfg.FrequencyHz) * physic.Hertz
			if cfg.FrequencyHz < 0 || freq > limit {
				_ = dev.Close()
				return nil, errcode.New(op, errcode.UnsupportedFrequency, freq.String())
			}
		}
		if err := dev.Configure(cfg.Mode, freq); err != nil {
			_ = dev.Close()
			return nil, err
		}
		s = &SPI{h: hd, host: h, dev: dev, max: limit, freq: freq, bits: cfg.WordBits, mode: cfg.Mode}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// validMode accepts spi.Mode0..Mode3, optionally ORed with spi.LSBFirst.
func validMode(m spi.Mode) bool { return m&^(spi.Mode3|spi.LSBFirst) == 0 }

// SetFrequency sets the clock in Hz. Zero, negative and above-maximum
// values fail with UnsupportedFrequency.
func (s *SPI) SetFrequency(hz int) error {
	const op = "spi.set_frequency"
	if err := s.h.Live(op); err != nil {
		return err
	}
	f := physic.Frequency(hz) * physic.Hertz
	if hz <= 0 || f > s.max {
		return errcode.New(op, errcode.UnsupportedFrequency, f.String())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dev.Configure(s.mode, f); err != nil {
		return errcode.Wrap(op, err)
	}
	s.freq = f
	return nil
}

// Frequency returns the configured clock in Hz.
func (s *SPI) Frequency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(mathx.RoundDiv(int64(s.freq), int64(physic.Hertz)))
}

// MaxFrequency is the highest clock SetFrequency accepts, in Hz.
func (s *SPI) MaxFrequency() int { return int(mathx.RoundDiv(int64(s.max), int64(physic.Hertz))) }

// SetWordSize selects 8- or 16-bit words for TransferWord.
func (s *SPI) SetWordSize(bits int) error {
	const op = "spi.set_word_size"
	if bits != 8 && bits != 16 {
		return errcode.New(op, errcode.OutOfRange, "word size must be 8 or 16")
	}
	if err := s.h.Live(op); err != nil {
		return err
	}
	s.mu.Lock()
	s.bits = bits
	s.mu.Unlock()
	return nil
}

func (s *SPI) WordSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bits
}

// SetMode selects clock polarity and phase (spi.Mode0..Mode3). OR in
// spi.LSBFirst to shift bytes least significant bit first.
func (s *SPI) SetMode(m spi.Mode) error {
	const op = "spi.set_mode"
	if !validMode(m) {
		return errcode.New(op, errcode.OutOfRange, "mode must be 0..3, optionally LSB first")
	}
	if err := s.h.Live(op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dev.Configure(m, s.freq); err != nil {
		return errcode.Wrap(op, err)
	}
	s.mode = m
	return nil
}

func (s *SPI) Mode() spi.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// TransferWord shifts out one word and returns the word clocked in.
// 16-bit words go MSB first.
func (s *SPI) TransferWord(out uint16) (uint16, error) {
	const op = "spi.transfer_word"
	if err := s.h.Live(op); err != nil {
		return 0, err
	}
	switch s.WordSize() {
	case 8:
		if out > 0xff {
			return 0, errcode.New(op, errcode.InvalidState, "word wider than 8 bits")
		}
		var r [1]byte
		if err := s.dev.Tx([]byte{byte(out)}, r[:]); err != nil {
			return 0, errcode.Wrap(op, err)
		}
		return uint16(r[0]), nil
	case 16:
		var r [2]byte
		if err := s.dev.Tx([]byte{byte(out >> 8), byte(out)}, r[:]); err != nil {
			return 0, errcode.Wrap(op, err)
		}
		return uint16(r[0])<<8 | uint16(r[1]), nil
	}
	return 0, errcode.New(op, errcode.InvalidState, "word size not set")
}

// Tx satisfies drivers.SPI.
func (s *SPI) Tx(w, r []byte) error {
	const op = "spi.tx"
	if err := s.h.Live(op); err != nil {
		return err
	}
	return errcode.Wrap(op, s.dev.Tx(w, r))
}

// Transfer satisfies drivers.SPI.
func (s *SPI) Transfer(b byte) (byte, error) {
	const op = "spi.transfer"
	if err := s.h.Live(op); err != nil {
		return 0, err
	}
	v, err := s.dev.Transfer(b)
	return v, errcode.Wrap(op, err)
}

func (s *SPI) Close() error {
	err := s.h.Close(func() error { return errcode.Wrap("spi.close", s.dev.Close()) })
	s.host.forget(s)
	return err
}
