package boards

import (
	"fmt"
	"strings"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"

	"gopkg.in/yaml.v3"
)

// Board describes what a carrier board exposes: which header pin drives
// which GPIO line or PWM channel, the UART device paths, I²C adapters,
// SPI chip selects and LED class devices. It carries no wiring choices.
type Board struct {
	Name string `yaml:"name"`

	// Models are the /proc/device-tree/model strings that identify the
	// board for Detect.
	Models []string `yaml:"models,omitempty"`

	// Generic boards map any pin not in Pins straight onto GPIOChip, PWM
	// pin n onto pwmchip0/pwm<n>, UART n onto /dev/ttyS<n>, I²C n onto
	// /dev/i2c-<n> and SPI n onto /dev/spidev<n>.<cs>.
	Generic  bool   `yaml:"generic,omitempty"`
	GPIOChip string `yaml:"gpio_chip,omitempty"`

	Pins []Pin     `yaml:"pins,omitempty"`
	I2C  []I2CBus  `yaml:"i2c,omitempty"`
	SPI  []SPIBus  `yaml:"spi,omitempty"`
	UART []UART    `yaml:"uart,omitempty"`
	LEDs []string  `yaml:"leds,omitempty"`
	PWM  PWMLimits `yaml:"pwm"`

	SPIMaxHz int `yaml:"spi_max_hz,omitempty"`
}

// Pin is one header position. A GPIO-capable pin names its line by
// character device (Chip, Line), by chip label (ChipLabel, Line) for
// expanders whose chip number depends on enumeration order, or by legacy global
// number (Global > 0).
type Pin struct {
	Number    int     `yaml:"number"`
	Name      string  `yaml:"name"`
	Caps      Caps    `yaml:"caps"`
	Chip      string  `yaml:"chip,omitempty"`
	ChipLabel string  `yaml:"chip_label,omitempty"`
	Line      int     `yaml:"line,omitempty"`
	Global    int     `yaml:"global,omitempty"`
	PWM       *PWMOut `yaml:"pwm,omitempty"`
}

type PWMOut struct {
	Chip    int `yaml:"chip"`
	Channel int `yaml:"channel"`
}

// I2CBus maps a board bus index to an adapter. Adapter, when set, is
// resolved at open time (bus numbers are not stable across boots).
type I2CBus struct {
	Index   int    `yaml:"index"`
	Bus     int    `yaml:"bus,omitempty"`
	Adapter string `yaml:"adapter,omitempty"`
}

type SPIBus struct {
	Index int `yaml:"index"`
	Bus   int `yaml:"bus"`
	CS    int `yaml:"cs"`
}

type UART struct {
	Name string `yaml:"name,omitempty"`
	Path string `yaml:"path"`
}

// PWMLimits are in microseconds.
type PWMLimits struct {
	DefaultPeriodUS int `yaml:"default_period_us"`
	MinPeriodUS     int `yaml:"min_period_us"`
	MaxPeriodUS     int `yaml:"max_period_us"`
}

// ---- Capabilities ----

type Caps uint8

const (
	CapGPIO Caps = 1 << iota
	CapPWM
	CapSPI
	CapI2C
	CapUART
	CapFastGPIO
)

var capNames = []struct {
	c    Caps
	name string
}{
	{CapGPIO, "gpio"},
	{CapPWM, "pwm"},
	{CapSPI, "spi"},
	{CapI2C, "i2c"},
	{CapUART, "uart"},
	{CapFastGPIO, "fast_gpio"},
}

func (c Caps) Has(x Caps) bool { return c&x == x }

func (c Caps) String() string {
	var parts []string
	for _, n := range capNames {
		if c.Has(n.c) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Caps are written in YAML as a list of names: [gpio, pwm].
func (c Caps) MarshalYAML() (any, error) {
	var out []string
	for _, n := range capNames {
		if c.Has(n.c) {
			out = append(out, n.name)
		}
	}
	return out, nil
}

func (c *Caps) UnmarshalYAML(n *yaml.Node) error {
	var names []string
	if err := n.Decode(&names); err != nil {
		return err
	}
	*c = 0
next:
	for _, s := range names {
		for _, cn := range capNames {
			if cn.name == s {
				*c |= cn.c
				continue next
			}
		}
		return fmt.Errorf("line %d: unknown capability %q", n.Line, s)
	}
	return nil
}

// ---- Lookups ----

func (b *Board) pin(n int) (Pin, bool) {
	for _, p := range b.Pins {
		if p.Number == n {
			return p, true
		}
	}
	return Pin{}, false
}

func (b *Board) gpioChip() string {
	if b.GPIOChip == "" {
		return "gpiochip0"
	}
	return b.GPIOChip
}

// GPIO resolves a header pin to a line.
func (b *Board) GPIO(n int) (core.LineRef, error) {
	const op = "board.gpio"
	p, ok := b.pin(n)
	if !ok {
		if b.Generic && n >= 0 {
			return core.LineRef{Chip: b.gpioChip(), Offset: n}, nil
		}
		return core.LineRef{}, errcode.New(op, errcode.NotFound, fmt.Sprintf("%s: no pin %d", b.Name, n))
	}
	if !p.Caps.Has(CapGPIO) {
		return core.LineRef{}, errcode.New(op, errcode.NotFound, fmt.Sprintf("%s: pin %d (%s) is not a gpio", b.Name, n, p.Name))
	}
	switch {
	case p.Chip != "":
		return core.LineRef{Chip: p.Chip, Offset: p.Line}, nil
	case p.ChipLabel != "":
		return core.LineRef{Label: p.ChipLabel, Offset: p.Line}, nil
	case p.Global > 0:
		return core.LineRef{Global: p.Global}, nil
	}
	return core.LineRef{}, errcode.New(op, errcode.NotFound, fmt.Sprintf("%s: pin %d (%s) has no line", b.Name, n, p.Name))
}

// PWMChannel resolves a header pin to a PWM channel.
func (b *Board) PWMChannel(n int) (core.PWMRef, error) {
	p, ok := b.pin(n)
	if ok && p.Caps.Has(CapPWM) && p.PWM != nil {
		return core.PWMRef{Chip: p.PWM.Chip, Channel: p.PWM.Channel}, nil
	}
	if !ok && b.Generic && n >= 0 {
		return core.PWMRef{Chip: 0, Channel: n}, nil
	}
	return core.PWMRef{}, errcode.New("board.pwm", errcode.NotFound, fmt.Sprintf("%s: pin %d has no pwm", b.Name, n))
}

// UARTPath returns the tty for UART index i.
func (b *Board) UARTPath(i int) (string, error) {
	if i >= 0 && i < len(b.UART) {
		return b.UART[i].Path, nil
	}
	if len(b.UART) == 0 && b.Generic && i >= 0 {
		return fmt.Sprintf("/dev/ttyS%d", i), nil
	}
	return "", errcode.New("board.uart", errcode.NotFound, fmt.Sprintf("%s: no uart %d", b.Name, i))
}

// I2CBus returns the adapter behind board bus index i: either a fixed bus
// number or an adapter name to resolve.
func (b *Board) I2CBus(i int) (I2CBus, error) {
	for _, x := range b.I2C {
		if x.Index == i {
			return x, nil
		}
	}
	if b.Generic && i >= 0 {
		return I2CBus{Index: i, Bus: i}, nil
	}
	return I2CBus{}, errcode.New("board.i2c", errcode.NotFound, fmt.Sprintf("%s: no i2c bus %d", b.Name, i))
}

// SPIBus returns the spidev bus and chip select for board SPI index i.
// Generic boards take the chip select from the caller.
func (b *Board) SPIBus(i, cs int) (SPIBus, error) {
	for _, x := range b.SPI {
		if x.Index == i {
			return x, nil
		}
	}
	if b.Generic && i >= 0 {
		return SPIBus{Index: i, Bus: i, CS: cs}, nil
	}
	return SPIBus{}, errcode.New("board.spi", errcode.NotFound, fmt.Sprintf("%s: no spi %d", b.Name, i))
}

// LED returns the LED class device for index i. ok is false when the board
// has no fixed list and the caller should enumerate /sys/class/leds.
func (b *Board) LED(i int) (name string, ok bool, err error) {
	if len(b.LEDs) == 0 {
		return "", false, nil
	}
	if i < 0 || i >= len(b.LEDs) {
		return "", true, errcode.New("board.led", errcode.NotFound, fmt.Sprintf("%s: no led %d", b.Name, i))
	}
	return b.LEDs[i], true, nil
}
