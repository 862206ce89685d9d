package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/platform/boards"

	"gopkg.in/yaml.v3"
)

// DefaultFilename is looked up by the demo next to the working directory.
const DefaultFilename = "boardio.yml"

const (
	BackendLinux = "linux"
	BackendSim   = "sim"
)

// HostConfig selects a board and the backend serving it.
type HostConfig struct {
	// Board names a descriptor. "auto" (or empty) matches the device-tree
	// model under Root on the linux backend and falls back to generic.
	Board    string `yaml:"board"`
	Backend  string `yaml:"backend"`
	Root     string `yaml:"root,omitempty"`     // prefix for /sys and /dev, for fixtures
	Consumer string `yaml:"consumer,omitempty"` // GPIO consumer label

	// Overrides applied on top of the selected board.
	GPIOChip string `yaml:"gpio_chip,omitempty"`
	SPIMaxHz int    `yaml:"spi_max_hz,omitempty"`

	UARTBaud int `yaml:"uart_baud,omitempty"` // used when an open passes 0
	IRQQueue int `yaml:"irq_queue,omitempty"` // initial edge queue capacity; the queue grows

	// Boards adds descriptors, or replaces built-ins of the same name.
	Boards []boards.Board `yaml:"boards,omitempty"`

	// SimWires connects header pins on the simulated backend: each key is an
	// output pin whose level is driven onto the value pin.
	SimWires map[int]int `yaml:"sim_wires,omitempty"`
}

func Default() HostConfig {
	return HostConfig{
		Board:    boards.Auto,
		Backend:  BackendLinux,
		Root:     "/",
		Consumer: "boardio",
		SPIMaxHz: 50_000_000,
		UARTBaud: 115200,
		IRQQueue: 64,
	}
}

// Load reads a YAML file over Default. A missing file yields the defaults.
func Load(path string) (HostConfig, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return HostConfig{}, errcode.Wrap("config.load", err)
	}
	return Parse(b)
}

// Parse decodes YAML over Default; unknown keys are rejected.
func Parse(data []byte) (HostConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return HostConfig{}, errcode.WrapAs("config.parse", errcode.OutOfRange, err)
	}
	if err := cfg.Validate(); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

func (c HostConfig) Validate() error {
	const op = "config.validate"
	switch c.Backend {
	case BackendLinux, BackendSim:
	default:
		return errcode.New(op, errcode.OutOfRange, fmt.Sprintf("backend %q", c.Backend))
	}
	if c.SPIMaxHz < 0 || c.UARTBaud < 0 || c.IRQQueue < 0 {
		return errcode.New(op, errcode.OutOfRange, "negative limit")
	}
	for _, b := range c.Boards {
		if b.Name == "" {
			return errcode.New(op, errcode.OutOfRange, "board without name")
		}
		if b.PWM.MinPeriodUS > b.PWM.MaxPeriodUS && b.PWM.MaxPeriodUS != 0 {
			return errcode.New(op, errcode.OutOfRange, b.Name+": pwm min period above max")
		}
	}
	return nil
}

// ResolveBoard returns the selected board with the host overrides applied.
func (c HostConfig) ResolveBoard() (boards.Board, error) {
	var (
		b     boards.Board
		found bool
	)
	if c.Board == "" || c.Board == boards.Auto {
		if c.Backend == BackendLinux {
			b, found = boards.Detect(c.Root, c.Boards)
		}
		if !found {
			b, found = boards.Generic(), true
		}
	}
	for _, x := range c.Boards {
		if found {
			break
		}
		if x.Name == c.Board {
			b, found = x, true
		}
	}
	if !found {
		var err error
		if b, err = boards.Lookup(c.Board); err != nil {
			return boards.Board{}, err
		}
	}
	gen := boards.Generic()
	if b.PWM.DefaultPeriodUS == 0 {
		b.PWM.DefaultPeriodUS = gen.PWM.DefaultPeriodUS
	}
	if b.PWM.MinPeriodUS == 0 {
		b.PWM.MinPeriodUS = gen.PWM.MinPeriodUS
	}
	if b.PWM.MaxPeriodUS == 0 {
		b.PWM.MaxPeriodUS = gen.PWM.MaxPeriodUS
	}
	if c.GPIOChip != "" {
		b.GPIOChip = c.GPIOChip
	}
	if b.SPIMaxHz == 0 {
		b.SPIMaxHz = c.SPIMaxHz
	}
	return b, nil
}
