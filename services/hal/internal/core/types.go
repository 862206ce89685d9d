package core

import (
	"fmt"
	"io"

	"boardio-go/types"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// ---- Device addressing ----

// LineRef names one GPIO line: by chip and offset, by chip label and
// offset, or by its legacy global (sysfs) number. The first non-empty form
// wins in that order.
type LineRef struct {
	Chip   string
	Label  string
	Offset int
	Global int
}

func (r LineRef) String() string {
	switch {
	case r.Chip != "":
		return fmt.Sprintf("%s:%d", r.Chip, r.Offset)
	case r.Label != "":
		return fmt.Sprintf("label=%s:%d", r.Label, r.Offset)
	}
	return fmt.Sprintf("gpio%d", r.Global)
}

// PWMRef names one channel of a PWM controller (pwmchipN/pwmM).
type PWMRef struct {
	Chip    int
	Channel int
}

func (r PWMRef) String() string { return fmt.Sprintf("pwmchip%d/pwm%d", r.Chip, r.Channel) }

// ---- Backend ----

// Backend opens OS resources. Implementations do not track ownership; the
// claim registry in front of them does.
type Backend interface {
	OpenLine(ref LineRef, dir types.Direction, initial int) (Line, error)
	OpenI2C(bus int) (I2CBus, error)
	OpenSPI(bus, cs int) (SPIDevice, error)
	OpenPWM(ref PWMRef) (PWMChannel, error)
	OpenSerial(path string, baud int) (SerialPort, error)
	OpenLED(name string) (LEDDevice, error)

	// FindI2CBus resolves an adapter name (e.g. "31b0000.i2c") to a bus number.
	FindI2CBus(adapter string) (int, error)
	// LEDs lists LED class devices in a stable order.
	LEDs() ([]string, error)
}

// ---- GPIO ----

// EdgeFunc receives the level observed at an edge and which edge it was.
// Called from a backend-owned goroutine; it must not call back into the Line.
type EdgeFunc func(level int, edge types.Edge)

type Line interface {
	Configure(dir types.Direction, initial int) error
	Get() (int, error)
	Set(v int) error
	// SetIRQ enables kernel edge detection; ErrNoIRQ-style failures are
	// reported as errcode.UnsupportedEdgeMode.
	SetIRQ(edge types.Edge, fn EdgeFunc) error
	ClearIRQ() error
	Close() error
}

// ---- Buses ----

// I2CBus is an open adapter. Tx MUST perform a write followed by a
// repeated-start read when both w and r are provided.
type I2CBus interface {
	drivers.I2C
	Close() error
}

// SPIDevice is an open chip-select on a controller. Transfers are 8-bit,
// MSB first; wider words are composed by the caller.
type SPIDevice interface {
	drivers.SPI
	Configure(mode spi.Mode, speed physic.Frequency) error
	MaxFrequency() physic.Frequency
	Close() error
}

// ---- PWM ----

type PWMChannel interface {
	SetPeriod(ns int64) error
	SetDutyCycle(ns int64) error
	SetEnabled(on bool) error
	Close() error
}

// ---- UART ----

type SerialPort interface {
	io.Writer
	Flush() error
	Close() error
}

// ---- LED ----

type LEDDevice interface {
	MaxBrightness() (int, error)
	Brightness() (int, error)
	SetBrightness(v int) error
	// Triggers returns the supported trigger names and the active one.
	Triggers() (names []string, active string, err error)
	SetTrigger(name string) error
	Close() error
}
