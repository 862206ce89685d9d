//go:build linux

package platform

import (
	"time"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"

	"github.com/tarm/serial"
)

// ttyPort wraps a tarm/serial port opened 8N1, raw.
type ttyPort struct {
	*serial.Port
}

func (lx *Linux) OpenSerial(path string, baud int) (core.SerialPort, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        lx.path(path),
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, errcode.Wrap("uart.open", err)
	}
	return ttyPort{p}, nil
}

// Flush is a no-op: writes on a blocking tty return once the bytes are
// queued to the driver.
func (t ttyPort) Flush() error { return nil }
