package hal

import (
	"errors"
	"math"
	"testing"

	"boardio-go/errcode"
	"boardio-go/services/hal/config"
	"boardio-go/services/hal/internal/core"
	"boardio-go/services/hal/internal/platform/boards"
	"boardio-go/types"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

var (
	_ drivers.I2C = (*I2C)(nil)
	_ drivers.SPI = (*SPI)(nil)
)

func TestI2CRegisterWriteThenRead(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	eeprom := sim.AddI2CTarget(1, 0x50)
	s, err := h.OpenI2C(1, types.I2CConfig{Address: 0x50})
	if err != nil {
		t.Fatalf("OpenI2C: %v", err)
	}
	if err := s.WriteRegister(0x00, 0x02); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	v, err := s.ReadRegister(0x00)
	if err != nil || v != 0x02 {
		t.Fatalf("ReadRegister=%#x err=%v", v, err)
	}
	if err := s.WriteRegisters(0x10, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 3)
	if err := s.ReadRegisters(0x10, buf); err != nil || buf[2] != 3 || eeprom.Reg(0x11) != 2 {
		t.Fatalf("ReadRegisters=% x err=%v", buf, err)
	}
}

func TestI2CNackAndBusErrorAreDistinct(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	tgt := sim.AddI2CTarget(1, 0x50)
	s, _ := h.OpenI2C(1, types.I2CConfig{Address: 0x50})

	tgt.Fail(errcode.BusError)
	err := s.WriteRegister(0, 1)
	if !errors.Is(err, errcode.BusError) || errors.Is(err, errcode.Nack) {
		t.Fatalf("bus error err=%v", err)
	}
	if err := s.SetAddress(0x51); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadRegister(0); !errors.Is(err, errcode.Nack) {
		t.Fatalf("absent target err=%v", err)
	}
	// No retry: the next call reaches the target normally.
	if err := s.SetAddress(0x50); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteRegister(0, 1); err != nil {
		t.Fatalf("after failure: %v", err)
	}
}

func TestI2CAddressOwnership(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	sim.AddI2CTarget(1, 0x50)
	a, _ := h.OpenI2C(1, types.I2CConfig{Address: 0x50})
	b, err := h.OpenI2C(1, types.I2CConfig{Address: 0x51})
	if err != nil {
		t.Fatalf("second address: %v", err)
	}
	if _, err := h.OpenI2C(1, types.I2CConfig{Address: 0x50}); !errors.Is(err, errcode.ResourceBusy) {
		t.Fatalf("same address err=%v", err)
	}
	if err := a.SetAddress(0x51); !errors.Is(err, errcode.ResourceBusy) {
		t.Fatalf("SetAddress onto owned err=%v", err)
	}
	if a.Address() != 0x50 {
		t.Fatalf("address changed on failure: %#x", a.Address())
	}
	if err := a.SetAddress(0x80); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("8-bit address err=%v", err)
	}
	if err := a.Tx(0x51, []byte{0}, nil); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("Tx to foreign address err=%v", err)
	}
	_ = b.Close()
	if err := a.SetAddress(0x51); err != nil {
		t.Fatalf("SetAddress after release: %v", err)
	}
	if _, err := h.OpenI2C(7, types.I2CConfig{Address: 0x50}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing bus err=%v", err)
	}
}

func TestI2CAdapterLookup(t *testing.T) {
	h, sim := newTestHost(t, boards.RCXG70())
	sim.NameI2CBus("31b0000.i2c", 3)
	sim.AddI2CTarget(3, 0x50)
	s, err := h.OpenI2C(0, types.I2CConfig{Address: 0x50})
	if err != nil {
		t.Fatalf("OpenI2C: %v", err)
	}
	if err := s.WriteRegister(1, 9); err != nil {
		t.Fatal(err)
	}
}

func TestSPITransferWord16(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	dev := sim.SPIDevice(0, 0)
	s, err := h.OpenSPI(0, types.SPIConfig{FrequencyHz: 100_000})
	if err != nil {
		t.Fatalf("OpenSPI: %v", err)
	}
	if _, err := s.TransferWord(0x0009); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("word size unset err=%v", err)
	}
	if err := s.SetWordSize(16); err != nil {
		t.Fatal(err)
	}
	in, err := s.TransferWord(0x0009)
	if err != nil {
		t.Fatalf("TransferWord: %v", err)
	}
	if in != 0x0009 {
		t.Fatalf("loopback word=%#04x", in)
	}
	if got := dev.Sent(); len(got) != 2 || got[0] != 0x00 || got[1] != 0x09 {
		t.Fatalf("MOSI=% x, want MSB first", got)
	}
	if dev.Speed() != 100*physic.KiloHertz || s.Frequency() != 100_000 {
		t.Fatalf("speed=%v", dev.Speed())
	}
}

func TestSPIParameterErrors(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	sim.SPIDevice(0, 1)
	s, err := h.OpenSPI(0, types.SPIConfig{ChipSelect: 1, WordBits: 8})
	if err != nil {
		t.Fatal(err)
	}
	if s.Frequency() != 1_000_000 || s.MaxFrequency() != 50_000_000 {
		t.Fatalf("freq=%d max=%d", s.Frequency(), s.MaxFrequency())
	}
	for _, hz := range []int{0, -1, 50_000_001} {
		if err := s.SetFrequency(hz); !errors.Is(err, errcode.UnsupportedFrequency) {
			t.Fatalf("SetFrequency(%d) err=%v", hz, err)
		}
	}
	if err := s.SetWordSize(12); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("12-bit err=%v", err)
	}
	if _, err := s.TransferWord(0x100); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("wide word err=%v", err)
	}
	if err := s.SetMode(spi.Mode(7)); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("mode err=%v", err)
	}
	if err := s.SetMode(spi.Mode3); err != nil || s.Mode() != spi.Mode3 {
		t.Fatalf("SetMode: %v", err)
	}
	if err := s.SetMode(spi.Mode0 | spi.LSBFirst); err != nil {
		t.Fatalf("SetMode LSB first: %v", err)
	}
	if got := sim.SPIDevice(0, 1).Mode(); got != spi.Mode0|spi.LSBFirst {
		t.Fatalf("device mode=%v", got)
	}
	if err := s.SetMode(spi.Mode1 | spi.HalfDuplex); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("half duplex err=%v", err)
	}
	sim.SPIDevice(0, 1).Fail(errcode.BusError)
	if _, err := s.TransferWord(0x42); !errors.Is(err, errcode.BusError) {
		t.Fatalf("bus failure err=%v", err)
	}
	if v, err := s.Transfer(0xA5); err != nil || v != 0xA5 {
		t.Fatalf("Transfer=%#x err=%v", v, err)
	}
	if _, err := h.OpenSPI(0, types.SPIConfig{ChipSelect: 1}); !errors.Is(err, errcode.ResourceBusy) {
		t.Fatalf("double open err=%v", err)
	}
	if _, err := h.OpenSPI(0, types.SPIConfig{FrequencyHz: 1}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing device err=%v", err)
	}
}

func TestPWMDutyAndPeriod(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	ch := sim.PWMChannel(core.PWMRef{Chip: 0, Channel: 22})
	p, err := h.OpenPWM(22, types.PWMConfig{PeriodUS: 200})
	if err != nil {
		t.Fatalf("OpenPWM: %v", err)
	}
	if period, duty, on := ch.State(); period != 200_000 || duty != 0 || on {
		t.Fatalf("initial state period=%d duty=%d on=%v", period, duty, on)
	}
	for _, bad := range []float64{1.01, math.Nextafter(1, 2), -0.1, math.NaN(), math.Inf(1)} {
		if err := p.SetDuty(bad); !errors.Is(err, errcode.OutOfRange) {
			t.Fatalf("SetDuty(%v) err=%v", bad, err)
		}
	}
	if err := p.SetDuty(0.5); err != nil {
		t.Fatal(err)
	}
	if _, duty, _ := ch.State(); duty != 0 {
		t.Fatalf("duty written while disabled: %d", duty)
	}
	if err := p.Enable(true); err != nil {
		t.Fatal(err)
	}
	if _, duty, on := ch.State(); duty != 100_000 || !on {
		t.Fatalf("after enable duty=%d on=%v", duty, on)
	}
	if err := p.SetPeriod(100); err != nil {
		t.Fatalf("shrink period: %v", err)
	}
	if period, duty, _ := ch.State(); period != 100_000 || duty != 50_000 {
		t.Fatalf("rescaled period=%d duty=%d", period, duty)
	}
	if err := p.SetPeriod(400); err != nil {
		t.Fatalf("grow period: %v", err)
	}
	if err := p.SetDuty(1.0); err != nil {
		t.Fatalf("full duty: %v", err)
	}
	if period, duty, _ := ch.State(); duty != period {
		t.Fatalf("full duty=%d period=%d", duty, period)
	}
	if err := p.SetPeriod(0); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("zero period err=%v", err)
	}
	if err := p.SetPeriod(660066007); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("period above max err=%v", err)
	}
	if p.Period().Microseconds() != 400 || p.Duty() != 1.0 || !p.Enabled() {
		t.Fatalf("accessors period=%v duty=%v", p.Period(), p.Duty())
	}
	_ = p.Close()
	if _, _, on := ch.State(); on {
		t.Fatal("output still enabled after Close")
	}
}

func TestPWMDefaultPeriodAndMissingChannel(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	ch := sim.PWMChannel(core.PWMRef{Chip: 0, Channel: 1})
	if _, err := h.OpenPWM(1, types.PWMConfig{}); err != nil {
		t.Fatal(err)
	}
	if period, _, _ := ch.State(); period != 5_000_000 {
		t.Fatalf("default period=%d", period)
	}
	if _, err := h.OpenPWM(2, types.PWMConfig{}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing channel err=%v", err)
	}
	if held := h.Held(); len(held) != 1 {
		t.Fatalf("failed open kept its claim: %v", held)
	}
}

func TestUARTWrite(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	port := sim.SerialPort("/dev/ttyS0")
	u, err := h.OpenUART(0, types.UARTConfig{})
	if err != nil {
		t.Fatalf("OpenUART: %v", err)
	}
	if u.Baud() != 115200 || port.Baud != 115200 {
		t.Fatalf("baud=%d port=%d", u.Baud(), port.Baud)
	}
	if n, err := u.Write([]byte("Hello boardio!")); err != nil || n != 14 {
		t.Fatalf("Write n=%d err=%v", n, err)
	}
	if string(port.Written()) != "Hello boardio!" {
		t.Fatalf("written=%q", port.Written())
	}
	port.MaxWrite = 4
	n, err := u.Write([]byte("truncated"))
	if !errors.Is(err, errcode.IoError) || n != 4 {
		t.Fatalf("short write n=%d err=%v", n, err)
	}
	if err := u.SetBaud(9600); err != nil || u.Baud() != 9600 {
		t.Fatalf("SetBaud: %v", err)
	}
	if err := u.SetBaud(0); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("SetBaud(0) err=%v", err)
	}
	if err := u.Flush(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.OpenUART(5, types.UARTConfig{}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing port err=%v", err)
	}
}

func TestLEDBrightnessAndTrigger(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	dev := sim.AddLED("led0", 255)
	l, err := h.OpenLED(0)
	if err != nil {
		t.Fatalf("OpenLED: %v", err)
	}
	if l.MaxBrightness() != 255 || l.Name() != "led0" {
		t.Fatalf("max=%d name=%q", l.MaxBrightness(), l.Name())
	}
	for _, v := range []int{-1, 256} {
		if err := l.SetBrightness(v); !errors.Is(err, errcode.OutOfRange) {
			t.Fatalf("SetBrightness(%d) err=%v", v, err)
		}
	}
	if err := l.SetBrightness(128); err != nil {
		t.Fatal(err)
	}
	if err := l.SetTrigger("heartbeat"); err != nil {
		t.Fatal(err)
	}
	if err := l.SetTrigger("disco"); !errors.Is(err, errcode.UnsupportedTrigger) {
		t.Fatalf("unknown trigger err=%v", err)
	}
	if b, trig := dev.State(); b != 128 || trig != "heartbeat" {
		t.Fatalf("state brightness=%d trigger=%q", b, trig)
	}
	if trig, _ := l.Trigger(); trig != "heartbeat" {
		t.Fatalf("Trigger=%q", trig)
	}
	if _, err := h.OpenLED(1); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing led err=%v", err)
	}
}

func TestLEDWithoutBrightnessControl(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	sim.AddLED("led0", 0)
	l, _ := h.OpenLED(0)
	if l.MaxBrightness() != 0 {
		t.Fatalf("max=%d", l.MaxBrightness())
	}
	if err := l.SetBrightness(1); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("nonzero on max 0 err=%v", err)
	}
	if err := l.SetBrightness(0); err != nil {
		t.Fatalf("zero on max 0: %v", err)
	}
}

func TestHostCloseReleasesEverything(t *testing.T) {
	h, sim := newTestHost(t, boards.Generic())
	sim.AddLED("led0", 1)
	sim.SerialPort("/dev/ttyS0")
	g, _ := h.OpenGPIO(1, types.GPIOConfig{Direction: types.DirOut, Initial: 1})
	l, _ := h.OpenLED(0)
	u, _ := h.OpenUART(0, types.UARTConfig{Baud: 9600})
	if len(h.Held()) != 3 {
		t.Fatalf("held=%v", h.Held())
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if len(h.Held()) != 0 {
		t.Fatalf("held after Close=%v", h.Held())
	}
	if err := g.Write(0); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("gpio after host Close err=%v", err)
	}
	if err := l.SetBrightness(1); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("led after host Close err=%v", err)
	}
	if _, err := u.Write([]byte("x")); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("uart after host Close err=%v", err)
	}
	if _, err := h.OpenGPIO(2, types.GPIOConfig{}); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("open after host Close err=%v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewSimulatedBoard(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendSim
	cfg.Board = "rcx-g70"
	cfg.SimWires = map[int]int{7: 5}
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	out, err := h.OpenGPIO(7, types.GPIOConfig{Direction: types.DirOut})
	if err != nil {
		t.Fatal(err)
	}
	in, err := h.OpenGPIO(5, types.GPIOConfig{Direction: types.DirIn})
	if err != nil {
		t.Fatal(err)
	}
	_ = out.Write(1)
	if v, _ := in.Read(); v != 1 {
		t.Fatalf("wired input=%d", v)
	}
	l, err := h.OpenLED(2)
	if err != nil || l.Name() != "LED3" {
		t.Fatalf("LED(2) err=%v", err)
	}
	u, err := h.OpenUART(1, types.UARTConfig{})
	if err != nil || u.Path() != "/dev/ttyTHS1" {
		t.Fatalf("uart1 err=%v", err)
	}
	s, err := h.OpenI2C(0, types.I2CConfig{Address: EEPROMAddr})
	if err != nil {
		t.Fatalf("i2c0: %v", err)
	}
	if err := s.WriteRegister(0, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := h.OpenGPIO(12, types.GPIOConfig{}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("SPI pin as gpio err=%v", err)
	}
}
