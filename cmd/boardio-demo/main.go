// cmd/boardio-demo/main.go
//
// boardio-demo exercises one peripheral kind per run:
//
//	boardio-demo [flags] gpio|isr|i2c|spi|pwm|uart|led
//
// With -sim the simulated bench stands in for the board, so every demo runs
// without hardware.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"boardio-go/drivers/at24"
	"boardio-go/drivers/max7219"
	"boardio-go/services/hal"
	"boardio-go/services/hal/config"
	"boardio-go/types"
)

// ---------- Defaults ----------

const (
	stepDelay = time.Second

	gpioOutPin = 7
	gpioInPin  = 8

	isrPin   = 5
	isrDrive = 6 // wired to isrPin on the simulated bench

	i2cBus  = 0
	i2cAddr = at24.Address

	spiBus  = 0
	spiFreq = 100_000

	pwmPin      = 22
	pwmPeriodUS = 200
	pwmStep     = 0.01

	uartPort = 0
	uartMsg  = "Hello boardio!\r\n"

	ledIndex = 0
)

type opts struct {
	count int
	edge  types.Edge
	pin   int
	dump  bool
}

func main() {
	var (
		cfgPath = flag.String("config", config.DefaultFilename, "host config file")
		board   = flag.String("board", "", "board name (overrides config)")
		sim     = flag.Bool("sim", false, "use the simulated bench")
		count   = flag.Int("count", 10, "iterations, 0 = until interrupted")
		edge    = flag.String("edge", "both", "isr: rising|falling|both")
		pin     = flag.Int("pin", -1, "override the demo's default pin/bus/port/index")
		dump    = flag.Bool("dump", false, "i2c: dump the EEPROM after the register loop")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] gpio|isr|i2c|spi|pwm|uart|led\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	e, ok := types.ParseEdge(*edge)
	if !ok || e == types.EdgeNone {
		slog.Error("bad edge", "edge", *edge)
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config", "path", *cfgPath, "err", err)
		os.Exit(1)
	}
	if *board != "" {
		cfg.Board = *board
	}
	if *sim {
		cfg.Backend = config.BackendSim
		if len(cfg.SimWires) == 0 {
			cfg.SimWires = map[int]int{gpioOutPin: gpioInPin, isrDrive: isrPin}
		}
	}

	h, err := hal.New(cfg)
	if err != nil {
		slog.Error("host", "board", cfg.Board, "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	slog.Info("host ready", "board", h.Board(), "backend", cfg.Backend)
	code := demo(h, opts{count: *count, edge: e, pin: *pin, dump: *dump})
	_ = h.Close()
	os.Exit(code)
}

func demo(h *hal.Host, o opts) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	demos := map[string]func(context.Context, *hal.Host, opts) error{
		"gpio": runGPIO,
		"isr":  runISR,
		"i2c":  runI2C,
		"spi":  runSPI,
		"pwm":  runPWM,
		"uart": runUART,
		"led":  runLED,
	}
	run, ok := demos[flag.Arg(0)]
	if !ok {
		flag.Usage()
		return 2
	}
	err := run(ctx, h, o)
	if d := h.IRQDrops(); d > 0 {
		slog.Warn("edge events dropped", "n", d)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error(flag.Arg(0), "err", err)
		return 1
	}
	return 0
}

// ---------- Helpers ----------

func pick(o opts, def int) int {
	if o.pin >= 0 {
		return o.pin
	}
	return def
}

// tick calls fn once per stepDelay until count iterations or ctx ends.
func tick(ctx context.Context, o opts, fn func(i int) error) error {
	t := time.NewTicker(stepDelay)
	defer t.Stop()
	for i := 0; o.count == 0 || i < o.count; i++ {
		if err := fn(i); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// ---------- Demos ----------

// runGPIO alternates a level on the output pin and reads it back on the
// input pin; connect the two with a jumper on real hardware.
func runGPIO(ctx context.Context, h *hal.Host, o opts) error {
	out, err := h.OpenGPIO(pick(o, gpioOutPin), types.GPIOConfig{Direction: types.DirOut})
	if err != nil {
		return err
	}
	defer out.Close()
	in, err := h.OpenGPIO(gpioInPin, types.GPIOConfig{Direction: types.DirIn})
	if err != nil {
		return err
	}
	defer in.Close()

	return tick(ctx, o, func(i int) error {
		v := i & 1
		if err := out.Write(v); err != nil {
			return err
		}
		got, err := in.Read()
		if err != nil {
			return err
		}
		slog.Info("gpio", "out", out.Pin(), "wrote", v, "in", in.Pin(), "read", got)
		return nil
	})
}

// runISR logs every edge on the input pin. The drive pin is toggled so the
// simulated bench produces edges; on hardware it is harmless if unconnected.
func runISR(ctx context.Context, h *hal.Host, o opts) error {
	in, err := h.OpenGPIO(pick(o, isrPin), types.GPIOConfig{Direction: types.DirIn})
	if err != nil {
		return err
	}
	defer in.Close()

	var n atomic.Uint32
	err = in.RegisterEdgeCallback(o.edge, hal.EdgeHandlerFunc(func(g *hal.GPIO, v int) {
		slog.Info("edge", "pin", g.Pin(), "value", v, "count", n.Add(1))
	}))
	if err != nil {
		return err
	}
	defer in.UnregisterEdgeCallback()

	drive, err := h.OpenGPIO(isrDrive, types.GPIOConfig{Direction: types.DirOut})
	if err != nil {
		slog.Debug("no drive pin, waiting for external edges", "err", err)
		drive = nil
	} else {
		defer drive.Close()
	}
	return tick(ctx, o, func(i int) error {
		if drive != nil {
			return drive.Write((i + 1) & 1)
		}
		return nil
	})
}

// runI2C writes a register, reads it back, then bumps value and register.
func runI2C(ctx context.Context, h *hal.Host, o opts) error {
	s, err := h.OpenI2C(pick(o, i2cBus), types.I2CConfig{Address: i2cAddr})
	if err != nil {
		return err
	}
	defer s.Close()

	var reg, msg byte = 0x00, 0x02
	err = tick(ctx, o, func(int) error {
		if err := s.WriteRegister(reg, msg); err != nil {
			return err
		}
		got, err := s.ReadRegister(reg)
		if err != nil {
			return err
		}
		slog.Info("i2c", "addr", fmt.Sprintf("%#02x", s.Address()), "reg", reg, "wrote", msg, "read", got)
		msg += 3
		reg++
		return nil
	})
	if err != nil || !o.dump {
		return err
	}

	ee := at24.New(s)
	ee.Configure(at24.Config{Address: uint16(s.Address())})
	buf := make([]byte, 16)
	for off := 0; off < 64; off += len(buf) {
		if _, err := ee.ReadAt(buf, int64(off)); err != nil {
			return err
		}
		slog.Info("eeprom", "off", fmt.Sprintf("%#04x", off), "data", fmt.Sprintf("% x", buf))
	}
	return nil
}

// runSPI drives an 8x8 MAX7219 matrix with alternating checkerboards.
func runSPI(ctx context.Context, h *hal.Host, o opts) error {
	s, err := h.OpenSPI(pick(o, spiBus), types.SPIConfig{FrequencyHz: spiFreq, WordBits: 16})
	if err != nil {
		return err
	}
	defer s.Close()
	slog.Debug("spi", "freq", s.Frequency(), "max", s.MaxFrequency(), "mode", s.Mode())

	m := max7219.New(s)
	if err := m.Configure(); err != nil {
		return err
	}
	defer m.Clear()
	return tick(ctx, o, func(i int) error {
		slog.Info("spi", "frame", i)
		return m.Draw(max7219.Checkerboard(i&1 == 1))
	})
}

// runPWM ramps the duty cycle, wrapping to zero before it reaches 1.0.
func runPWM(ctx context.Context, h *hal.Host, o opts) error {
	p, err := h.OpenPWM(pick(o, pwmPin), types.PWMConfig{PeriodUS: pwmPeriodUS})
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.Enable(true); err != nil {
		return err
	}

	duty := 0.0
	return tick(ctx, o, func(int) error {
		if err := p.SetDuty(duty); err != nil {
			return err
		}
		slog.Info("pwm", "pin", p.Pin(), "period", p.Period(), "duty", p.Duty())
		duty += pwmStep
		if duty >= 1.0 {
			duty = 0
		}
		return nil
	})
}

func runUART(ctx context.Context, h *hal.Host, o opts) error {
	u, err := h.OpenUART(pick(o, uartPort), types.UARTConfig{})
	if err != nil {
		return err
	}
	defer u.Close()

	return tick(ctx, o, func(int) error {
		n, err := u.Write([]byte(uartMsg))
		if err != nil {
			return err
		}
		slog.Info("uart", "path", u.Path(), "baud", u.Baud(), "bytes", n)
		return u.Flush()
	})
}

// runLED sets full brightness, then hands the LED to the heartbeat trigger
// when the kernel offers it.
func runLED(_ context.Context, h *hal.Host, o opts) error {
	l, err := h.OpenLED(pick(o, ledIndex))
	if err != nil {
		return err
	}
	defer l.Close()

	slog.Info("led", "name", l.Name(), "max", l.MaxBrightness())
	if err := l.SetBrightness(l.MaxBrightness()); err != nil {
		return err
	}
	if b, err := l.Brightness(); err == nil {
		slog.Info("led", "brightness", b)
	}
	if err := l.SetTrigger("heartbeat"); err != nil {
		return err
	}
	cur, err := l.Trigger()
	slog.Info("led", "trigger", cur)
	return err
}
