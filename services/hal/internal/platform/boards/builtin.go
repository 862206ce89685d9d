package boards

import (
	"sort"
	"strconv"

	"boardio-go/errcode"
)

const (
	defaultPWMPeriodUS = 5000
	minPWMPeriodUS     = 1
	maxPWMPeriodUS     = 660066006
)

var stdPWM = PWMLimits{
	DefaultPeriodUS: defaultPWMPeriodUS,
	MinPeriodUS:     minPWMPeriodUS,
	MaxPeriodUS:     maxPWMPeriodUS,
}

// Generic is any Linux board where header numbers are line offsets on
// gpiochip0.
func Generic() Board {
	return Board{
		Name:     "generic",
		Generic:  true,
		GPIOChip: "gpiochip0",
		PWM:      stdPWM,
	}
}

// ROSCubePicoNX is the ADLINK ROSCube Pico NX (Jetson Xavier NX) 40-pin
// header. The five GPIOn_PWM pins sit at a fixed sysfs base of 231.
func ROSCubePicoNX() Board {
	const base = 231
	gpioPWM := func(num, n int) Pin {
		return Pin{
			Number: num,
			Name:   "GPIO" + string(rune('0'+n)) + "_PWM",
			Caps:   CapGPIO | CapPWM,
			Global: base + n,
			PWM:    &PWMOut{Chip: 0, Channel: n},
		}
	}
	return Board{
		Name:   "roscube-pico-nx",
		Models: []string{"ADLINK ROScube-Pico NX Development Kit"},
		Pins: []Pin{
			{Number: 10, Name: "I2C0_SCL", Caps: CapI2C},
			{Number: 11, Name: "I2C0_SDA", Caps: CapI2C},
			{Number: 12, Name: "SPI0_CS1", Caps: CapSPI},
			{Number: 13, Name: "SPI0_CS0", Caps: CapSPI},
			{Number: 15, Name: "UART0_RX", Caps: CapUART},
			{Number: 16, Name: "UART0_TX", Caps: CapUART},
			gpioPWM(24, 7),
			gpioPWM(25, 6),
			gpioPWM(26, 5),
			gpioPWM(27, 4),
			gpioPWM(28, 3),
			{Number: 30, Name: "SPI_CLK", Caps: CapSPI},
			{Number: 31, Name: "MISO0", Caps: CapSPI},
			{Number: 32, Name: "MOSI0", Caps: CapSPI},
			{Number: 35, Name: "I2C1_SCL", Caps: CapI2C},
			{Number: 36, Name: "I2C1_SDA", Caps: CapI2C},
		},
		I2C: []I2CBus{
			{Index: 0, Adapter: "c240000.i2c"},
			{Index: 1, Adapter: "31e0000.i2c"},
		},
		SPI: []SPIBus{
			{Index: 0, Bus: 1, CS: 0},
			{Index: 1, Bus: 1, CS: 1},
		},
		UART: []UART{{Name: "COM1", Path: "/dev/ttyTHS1"}},
		PWM:  stdPWM,
	}
}

// RCXG70 is the ADLINK RCX-G70 rugged controller (Jetson AGX Orin).
func RCXG70() Board {
	gpio := func(num int, name string, global int, extra Caps) Pin {
		return Pin{Number: num, Name: name, Caps: CapGPIO | extra, Global: global}
	}
	return Board{
		Name: "rcx-g70",
		Pins: []Pin{
			gpio(5, "ISO_DI0", 432, 0),
			gpio(6, "ISO_DI1", 433, 0),
			gpio(7, "ISO_DO0", 351, 0),
			gpio(8, "ISO_DO1", 352, 0),
			gpio(9, "SYNC_PPS", 444, 0),
			gpio(10, "SYNC_OUT", 434, 0),
			gpio(11, "SYNC_IN", 353, 0),
			{Number: 12, Name: "SPI_CLK", Caps: CapSPI},
			{Number: 13, Name: "SPI_CS", Caps: CapSPI},
			{Number: 14, Name: "SPI_MISO", Caps: CapSPI},
			{Number: 15, Name: "SPI_MOSI", Caps: CapSPI},
			{Number: 16, Name: "RS485_TX", Caps: CapUART},
			{Number: 17, Name: "RS485_RX", Caps: CapUART},
			{Number: 20, Name: "RS232_TX", Caps: CapUART},
			{Number: 21, Name: "RS232_RX", Caps: CapUART},
			{Number: 24, Name: "I2C_CLK", Caps: CapI2C},
			{Number: 25, Name: "I2C_SDA", Caps: CapI2C},
			gpio(26, "FPGA_TDI", 420, CapFastGPIO),
			gpio(27, "FPGA_TDO", 423, CapFastGPIO),
			gpio(28, "FPGA_TMS", 412, CapFastGPIO),
			gpio(29, "FPGA_TCK", 417, CapFastGPIO),
		},
		I2C:  []I2CBus{{Index: 0, Adapter: "31b0000.i2c"}},
		SPI:  []SPIBus{{Index: 0, Bus: 1, CS: 0}},
		UART: []UART{{Name: "RS485", Path: "/dev/ttyTHS0"}, {Name: "RS232", Path: "/dev/ttyTHS1"}},
		LEDs: []string{"LED1", "LED2", "LED3", "LED4"},
		PWM:  stdPWM,
	}
}

// ROSCubeI is the ADLINK ROSCube-I (x86). Its header GPIOs hang off two
// I²C expanders, a pca9535 for GPIO0-15 and a pca9534 for GPIO16-19, whose
// gpiochip numbers follow enumeration order, so pins name the chip by label.
// The board has no device tree and is selected by name.
func ROSCubeI() Board {
	pins := make([]Pin, 0, 26)
	for n := 0; n < 20; n++ {
		p := Pin{Number: 7 + n, Name: "GPIO" + strconv.Itoa(n), Caps: CapGPIO, ChipLabel: "pca9535", Line: n}
		if n >= 16 {
			p.ChipLabel, p.Line = "pca9534", n-16
		}
		pins = append(pins, p)
	}
	pins = append(pins,
		Pin{Number: 28, Name: "SPI_0_SCLK", Caps: CapSPI},
		Pin{Number: 30, Name: "SPI_0_MISO", Caps: CapSPI},
		Pin{Number: 32, Name: "SPI_0_MOSI", Caps: CapSPI},
		Pin{Number: 34, Name: "SPI_0_CS", Caps: CapSPI},
		Pin{Number: 36, Name: "I2C0_SDA", Caps: CapI2C},
		Pin{Number: 38, Name: "I2C0_SCL", Caps: CapI2C},
	)
	return Board{
		Name: "roscube-i",
		Pins: pins,
		I2C: []I2CBus{
			{Index: 0, Adapter: "0000:00:16.1"},
			{Index: 1, Adapter: "0000:00:1f.1"},
		},
		SPI: []SPIBus{
			{Index: 0, Bus: 1, CS: 0},
			{Index: 1, Bus: 1, CS: 1},
		},
		UART: []UART{{Name: "COM1", Path: "/dev/ttyS4"}},
		PWM: PWMLimits{
			DefaultPeriodUS: defaultPWMPeriodUS,
			MinPeriodUS:     minPWMPeriodUS,
			MaxPeriodUS:     218453,
		},
	}
}

var builtin = map[string]func() Board{
	"generic":         Generic,
	"roscube-pico-nx": ROSCubePicoNX,
	"rcx-g70":         RCXG70,
	"roscube-i":       ROSCubeI,
}

// Lookup returns a built-in board by name.
func Lookup(name string) (Board, error) {
	if name == "" {
		name = "generic"
	}
	f, ok := builtin[name]
	if !ok {
		return Board{}, errcode.New("board.lookup", errcode.NotFound, name)
	}
	return f(), nil
}

// Names lists the built-in boards.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for n := range builtin {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
