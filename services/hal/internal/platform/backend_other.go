//go:build !linux

package platform

import (
	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"

	"periph.io/x/conn/v3/physic"
)

// Linux is only functional on linux; elsewhere every open reports Unsupported.
type Linux struct {
	Root     string
	Consumer string
	SPIMax   physic.Frequency
}

func NewLinux(root string) *Linux { return &Linux{Root: root, SPIMax: 50 * physic.MegaHertz} }

func (lx *Linux) OpenLine(core.LineRef, types.Direction, int) (core.Line, error) {
	return nil, errcode.Unsupported
}
func (lx *Linux) OpenI2C(int) (core.I2CBus, error) { return nil, errcode.Unsupported }
func (lx *Linux) OpenSPI(int, int) (core.SPIDevice, error) { return nil, errcode.Unsupported }
func (lx *Linux) OpenPWM(core.PWMRef) (core.PWMChannel, error) {
	return nil, errcode.Unsupported
}
func (lx *Linux) OpenSerial(string, int) (core.SerialPort, error) {
	return nil, errcode.Unsupported
}
func (lx *Linux) OpenLED(string) (core.LEDDevice, error) { return nil, errcode.Unsupported }
func (lx *Linux) FindI2CBus(string) (int, error) { return 0, errcode.Unsupported }
func (lx *Linux) LEDs() ([]string, error) { return nil, errcode.Unsupported }
