package hal

import (
	"fmt"

	"boardio-go/services/hal/internal/core"
	"boardio-go/services/hal/internal/platform"
	"boardio-go/services/hal/internal/platform/boards"

	"periph.io/x/conn/v3/physic"
)

// EEPROMAddr is where the simulated backend places a register-file target
// on every I²C bus.
const EEPROMAddr = 0x50

// newBench populates a simulated backend with the devices board describes,
// so that every example runs without hardware. wires maps output pins onto
// input pins.
func newBench(b boards.Board, wires map[int]int) *platform.Sim {
	s := platform.NewSim()

	buses := b.I2C
	if len(buses) == 0 {
		buses = []boards.I2CBus{{Index: 0, Bus: 0}, {Index: 1, Bus: 1}}
	}
	for _, x := range buses {
		n := x.Bus
		if x.Adapter != "" {
			n = x.Index
			s.NameI2CBus(x.Adapter, n)
		}
		s.AddI2CTarget(n, EEPROMAddr)
	}

	spis := b.SPI
	if len(spis) == 0 {
		spis = []boards.SPIBus{{Bus: 0, CS: 0}, {Bus: 0, CS: 1}}
	}
	for _, x := range spis {
		d := s.SPIDevice(x.Bus, x.CS)
		if b.SPIMaxHz > 0 {
			d.SetMaxFrequency(physic.Frequency(b.SPIMaxHz) * physic.Hertz)
		}
	}

	pwm := 0
	for _, p := range b.Pins {
		if ref, err := b.PWMChannel(p.Number); err == nil {
			s.PWMChannel(ref)
			pwm++
		}
	}
	if pwm == 0 && b.Generic {
		for ch := 0; ch < 32; ch++ {
			s.PWMChannel(core.PWMRef{Chip: 0, Channel: ch})
		}
	}

	if len(b.UART) > 0 {
		for _, u := range b.UART {
			s.SerialPort(u.Path)
		}
	} else {
		for i := 0; i < 4; i++ {
			s.SerialPort(fmt.Sprintf("/dev/ttyS%d", i))
		}
	}

	leds := b.LEDs
	if len(leds) == 0 {
		leds = []string{"led0", "led1"}
	}
	for _, name := range leds {
		s.AddLED(name, 255)
	}

	for out, in := range wires {
		o, oerr := b.GPIO(out)
		i, ierr := b.GPIO(in)
		if oerr == nil && ierr == nil {
			s.Wire(o, i)
		}
	}
	return s
}
