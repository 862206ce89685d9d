// services/hal/internal/platform/sim.go
package platform

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Sim is an in-memory backend. GPIO outputs read back what was written and
// can be wired to inputs; I²C targets echo register writes; SPI loops MOSI
// back to MISO; PWM, UART and LED keep sysfs-like state for inspection.
type Sim struct {
	mu      sync.Mutex
	lines   map[string]*SimLine
	wires   map[string][]string // output line -> inputs it drives
	noIRQ   map[string]bool
	i2c     map[int]*SimI2C
	adapter map[string]int
	spi     map[string]*SimSPI
	pwm     map[core.PWMRef]*SimPWM
	serial  map[string]*SimSerial
	leds    map[string]*SimLED
}

func NewSim() *Sim {
	return &Sim{
		lines:   make(map[string]*SimLine),
		wires:   make(map[string][]string),
		noIRQ:   make(map[string]bool),
		i2c:     make(map[int]*SimI2C),
		adapter: make(map[string]int),
		spi:     make(map[string]*SimSPI),
		pwm:     make(map[core.PWMRef]*SimPWM),
		serial:  make(map[string]*SimSerial),
		leds:    make(map[string]*SimLED),
	}
}

// ----------------------------- GPIO ------------------------------------------

// SimLine emulates one GPIO line with kernel-style edge detection on inputs.
type SimLine struct {
	sim *Sim
	key string

	mu      sync.Mutex
	dir     types.Direction
	level   int
	irqEdge types.Edge
	irqFunc core.EdgeFunc
	noIRQ   bool
}

// Line returns the line for ref, creating it on first use.
func (s *Sim) Line(ref core.LineRef) *SimLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineLocked(ref.String())
}

func (s *Sim) lineLocked(key string) *SimLine {
	l, ok := s.lines[key]
	if !ok {
		l = &SimLine{sim: s, key: key, noIRQ: s.noIRQ[key]}
		s.lines[key] = l
	}
	return l
}

// Wire connects an output line to an input line: every level the output
// drives is applied to the input as an external stimulus.
func (s *Sim) Wire(out, in core.LineRef) {
	s.mu.Lock()
	s.wires[out.String()] = append(s.wires[out.String()], in.String())
	s.mu.Unlock()
}

// WithoutIRQ marks a line as lacking interrupt capability.
func (s *Sim) WithoutIRQ(ref core.LineRef) {
	s.mu.Lock()
	s.noIRQ[ref.String()] = true
	if l, ok := s.lines[ref.String()]; ok {
		l.mu.Lock()
		l.noIRQ = true
		l.mu.Unlock()
	}
	s.mu.Unlock()
}

func (s *Sim) OpenLine(ref core.LineRef, dir types.Direction, initial int) (core.Line, error) {
	l := s.Line(ref)
	if err := l.Configure(dir, initial); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SimLine) Configure(dir types.Direction, initial int) error {
	if !dir.Valid() {
		return errcode.UnsupportedDirection
	}
	l.mu.Lock()
	l.dir = dir
	l.mu.Unlock()
	if dir == types.DirOut {
		return l.Set(initial)
	}
	return nil
}

func (l *SimLine) Get() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level, nil
}

// Set drives an output line. Outputs do not raise edge events themselves;
// wired inputs see the new level.
func (l *SimLine) Set(v int) error {
	l.mu.Lock()
	if l.dir != types.DirOut {
		l.mu.Unlock()
		return errcode.WrongDirection
	}
	l.level = v
	l.mu.Unlock()

	l.sim.mu.Lock()
	var targets []*SimLine
	for _, k := range l.sim.wires[l.key] {
		targets = append(targets, l.sim.lineLocked(k))
	}
	l.sim.mu.Unlock()
	for _, t := range targets {
		t.Drive(v)
	}
	return nil
}

// Drive applies an external level to an input line and raises its edge
// callback when the transition is selected. Driving an output is a no-op.
func (l *SimLine) Drive(v int) {
	l.mu.Lock()
	if l.dir != types.DirIn {
		l.mu.Unlock()
		return
	}
	old := l.level
	l.level = v
	edge := types.EdgeFrom(old, v)
	irq := l.irqFunc
	want := l.irqEdge.Matches(edge)
	l.mu.Unlock()
	if want && irq != nil {
		irq(v, edge)
	}
}

func (l *SimLine) SetIRQ(edge types.Edge, fn core.EdgeFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.noIRQ {
		return errcode.UnsupportedEdgeMode
	}
	if l.dir != types.DirIn {
		return errcode.WrongDirection
	}
	l.irqEdge = edge
	l.irqFunc = fn
	return nil
}

func (l *SimLine) ClearIRQ() error {
	l.mu.Lock()
	l.irqEdge = types.EdgeNone
	l.irqFunc = nil
	l.mu.Unlock()
	return nil
}

func (l *SimLine) Close() error { return l.ClearIRQ() }

// Direction reports the configured direction, for assertions.
func (l *SimLine) Direction() types.Direction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dir
}

// ----------------------------- I²C -------------------------------------------

// SimI2C is one adapter with zero or more register-file targets.
type SimI2C struct {
	mu      sync.Mutex
	targets map[uint16]*I2CTarget
}

// I2CTarget is a 256-register device with an auto-incrementing pointer,
// the shape of a small EEPROM or a sensor register file.
type I2CTarget struct {
	mu   sync.Mutex
	regs [256]byte
	ptr  byte
	fail []error // injected failures, consumed one per Tx
}

// AddI2CTarget attaches a target at addr on bus and returns it.
func (s *Sim) AddI2CTarget(bus int, addr uint16) *I2CTarget {
	b := s.i2cBus(bus)
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &I2CTarget{}
	b.targets[addr] = t
	return t
}

// NameI2CBus registers an adapter name for FindI2CBus.
func (s *Sim) NameI2CBus(adapter string, bus int) {
	s.mu.Lock()
	s.adapter[adapter] = bus
	s.mu.Unlock()
	s.i2cBus(bus)
}

func (s *Sim) i2cBus(bus int) *SimI2C {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.i2c[bus]
	if !ok {
		b = &SimI2C{targets: make(map[uint16]*I2CTarget)}
		s.i2c[bus] = b
	}
	return b
}

func (s *Sim) OpenI2C(bus int) (core.I2CBus, error) {
	s.mu.Lock()
	b, ok := s.i2c[bus]
	s.mu.Unlock()
	if !ok {
		return nil, errcode.NotFound
	}
	return b, nil
}

func (s *Sim) FindI2CBus(adapter string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.adapter[adapter]; ok {
		return n, nil
	}
	return 0, errcode.NotFound
}

// Tx writes w (first byte is the register pointer) then reads len(r) bytes
// from the pointer. A missing target is a Nack.
func (b *SimI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	t, ok := b.targets[addr]
	b.mu.Unlock()
	if !ok {
		return errcode.Nack
	}
	return t.tx(w, r)
}

func (b *SimI2C) Close() error { return nil }

func (t *I2CTarget) tx(w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fail) > 0 {
		err := t.fail[0]
		t.fail = t.fail[1:]
		return err
	}
	if len(w) > 0 {
		t.ptr = w[0]
		for _, v := range w[1:] {
			t.regs[t.ptr] = v
			t.ptr++
		}
	}
	for i := range r {
		r[i] = t.regs[t.ptr]
		t.ptr++
	}
	return nil
}

// Fail makes the next Tx calls return errs in order.
func (t *I2CTarget) Fail(errs ...error) {
	t.mu.Lock()
	t.fail = append(t.fail, errs...)
	t.mu.Unlock()
}

// Reg returns the current content of register reg.
func (t *I2CTarget) Reg(reg byte) byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.regs[reg]
}

// ----------------------------- SPI -------------------------------------------

// SimSPI loops every transmitted byte back, after an optional transform.
type SimSPI struct {
	mu    sync.Mutex
	max   physic.Frequency
	mode  spi.Mode
	speed physic.Frequency
	sent  []byte
	// Respond, when set, computes MISO from MOSI for one Tx.
	Respond func(w []byte) []byte
	fail    error
}

// SPIDevice returns the device at bus.cs, creating it on first use.
func (s *Sim) SPIDevice(bus, cs int) *SimSPI {
	key := fmt.Sprintf("%d.%d", bus, cs)
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.spi[key]
	if !ok {
		d = &SimSPI{max: 50 * physic.MegaHertz}
		s.spi[key] = d
	}
	return d
}

func (s *Sim) OpenSPI(bus, cs int) (core.SPIDevice, error) {
	key := fmt.Sprintf("%d.%d", bus, cs)
	s.mu.Lock()
	d, ok := s.spi[key]
	s.mu.Unlock()
	if !ok {
		return nil, errcode.NotFound
	}
	return d, nil
}

func (d *SimSPI) Configure(mode spi.Mode, speed physic.Frequency) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	d.speed = speed
	return nil
}

func (d *SimSPI) MaxFrequency() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.max
}

// SetMaxFrequency changes the controller limit reported to the facade.
func (d *SimSPI) SetMaxFrequency(f physic.Frequency) {
	d.mu.Lock()
	d.max = f
	d.mu.Unlock()
}

func (d *SimSPI) Tx(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		err := d.fail
		d.fail = nil
		return err
	}
	d.sent = append(d.sent, w...)
	in := w
	if d.Respond != nil {
		in = d.Respond(w)
	}
	copy(r, in)
	return nil
}

func (d *SimSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := d.Tx([]byte{b}, r[:])
	return r[0], err
}

func (d *SimSPI) Close() error { return nil }

// Sent returns every byte written so far.
func (d *SimSPI) Sent() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.sent...)
}

// Mode is the mode last passed to Configure.
func (d *SimSPI) Mode() spi.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Speed returns the last configured clock.
func (d *SimSPI) Speed() physic.Frequency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

// Fail makes the next Tx return err.
func (d *SimSPI) Fail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

// ----------------------------- PWM -------------------------------------------

// SimPWM enforces the sysfs rule that duty_cycle never exceeds period.
type SimPWM struct {
	mu       sync.Mutex
	PeriodNS int64
	DutyNS   int64
	Enabled  bool
}

// PWMChannel returns the channel for ref, creating it on first use.
func (s *Sim) PWMChannel(ref core.PWMRef) *SimPWM {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pwm[ref]
	if !ok {
		p = &SimPWM{}
		s.pwm[ref] = p
	}
	return p
}

func (s *Sim) OpenPWM(ref core.PWMRef) (core.PWMChannel, error) {
	s.mu.Lock()
	p, ok := s.pwm[ref]
	s.mu.Unlock()
	if !ok {
		return nil, errcode.NotFound
	}
	return p, nil
}

func (p *SimPWM) SetPeriod(ns int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ns <= 0 || ns < p.DutyNS {
		return errcode.OutOfRange
	}
	p.PeriodNS = ns
	return nil
}

func (p *SimPWM) SetDutyCycle(ns int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ns < 0 || ns > p.PeriodNS {
		return errcode.OutOfRange
	}
	p.DutyNS = ns
	return nil
}

func (p *SimPWM) SetEnabled(on bool) error {
	p.mu.Lock()
	p.Enabled = on
	p.mu.Unlock()
	return nil
}

func (p *SimPWM) Close() error { return nil }

// State returns period, duty and enable as the kernel would report them.
func (p *SimPWM) State() (periodNS, dutyNS int64, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PeriodNS, p.DutyNS, p.Enabled
}

// ----------------------------- UART ------------------------------------------

// SimSerial collects written bytes. MaxWrite > 0 caps each Write to model
// short writes.
type SimSerial struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	Baud     int
	MaxWrite int
	fail     error
}

// SerialPort returns the port at path, creating it on first use.
func (s *Sim) SerialPort(path string) *SimSerial {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.serial[path]
	if !ok {
		p = &SimSerial{}
		s.serial[path] = p
	}
	return p
}

func (s *Sim) OpenSerial(path string, baud int) (core.SerialPort, error) {
	s.mu.Lock()
	p, ok := s.serial[path]
	s.mu.Unlock()
	if !ok {
		return nil, errcode.NotFound
	}
	p.mu.Lock()
	p.Baud = baud
	p.mu.Unlock()
	return p, nil
}

func (p *SimSerial) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		err := p.fail
		p.fail = nil
		return 0, err
	}
	n := len(b)
	if p.MaxWrite > 0 && n > p.MaxWrite {
		n = p.MaxWrite
	}
	p.buf.Write(b[:n])
	return n, nil
}

func (p *SimSerial) Flush() error { return nil }
func (p *SimSerial) Close() error { return nil }

// Written returns everything written so far.
func (p *SimSerial) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buf.Bytes()...)
}

// ----------------------------- LED -------------------------------------------

// SimLED models /sys/class/leds/<name>.
type SimLED struct {
	mu         sync.Mutex
	max        int
	brightness int
	triggers   []string
	active     string
}

// DefaultTriggers is the trigger list a simulated LED starts with.
var DefaultTriggers = []string{"none", "timer", "oneshot", "heartbeat", "default-on"}

// AddLED creates an LED class device.
func (s *Sim) AddLED(name string, maxBrightness int) *SimLED {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &SimLED{
		max:      maxBrightness,
		triggers: append([]string(nil), DefaultTriggers...),
		active:   "none",
	}
	s.leds[name] = l
	return l
}

func (s *Sim) LEDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.leds))
	for n := range s.leds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Sim) OpenLED(name string) (core.LEDDevice, error) {
	s.mu.Lock()
	l, ok := s.leds[name]
	s.mu.Unlock()
	if !ok {
		return nil, errcode.NotFound
	}
	return l, nil
}

func (l *SimLED) MaxBrightness() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max, nil
}

func (l *SimLED) Brightness() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.brightness, nil
}

func (l *SimLED) SetBrightness(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v < 0 || v > l.max {
		return errcode.OutOfRange
	}
	l.brightness = v
	// Writing 0 removes the trigger, as the kernel does.
	if v == 0 {
		l.active = "none"
	}
	return nil
}

func (l *SimLED) Triggers() ([]string, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.triggers...), l.active, nil
}

func (l *SimLED) SetTrigger(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.triggers {
		if t == name {
			l.active = name
			return nil
		}
	}
	return errcode.UnsupportedTrigger
}

func (l *SimLED) Close() error { return nil }

// State returns brightness and active trigger.
func (l *SimLED) State() (brightness int, trigger string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.brightness, l.active
}
