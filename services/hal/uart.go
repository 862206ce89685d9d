package hal

import (
	"fmt"
	"io"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"
)

// UART is a write-only serial port session, 8N1.
type UART struct {
	h    *core.Handle
	host *Host
	port int
	path string

	mu   sync.Mutex
	sp   core.SerialPort
	baud int
}

// OpenUART opens board UART index port at cfg.Baud (host default when zero).
func (h *Host) OpenUART(port int, cfg types.UARTConfig) (*UART, error) {
	const op = "uart.open"
	baud := cfg.Baud
	if baud == 0 {
		baud = h.uartBaud
	}
	if baud < 0 {
		return nil, errcode.New(op, errcode.OutOfRange, "baud")
	}
	path, err := h.board.UARTPath(port)
	if err != nil {
		return nil, err
	}
	var u *UART
	err = h.open(op, types.KindUART, core.UARTID(port), func(hd *core.Handle) (io.Closer, error) {
		sp, err := h.backend.OpenSerial(path, baud)
		if err != nil {
			return nil, err
		}
		u = &UART{h: hd, host: h, port: port, path: path, sp: sp, baud: baud}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (u *UART) Path() string { return u.path }

func (u *UART) Baud() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.baud
}

// Write sends p. A short write is reported as IoError with the count sent;
// nothing is retried.
func (u *UART) Write(p []byte) (int, error) {
	const op = "uart.write"
	if err := u.h.Live(op); err != nil {
		return 0, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	n, err := u.sp.Write(p)
	if err != nil {
		return n, errcode.WrapAs(op, errcode.IoError, err)
	}
	if n < len(p) {
		return n, errcode.New(op, errcode.IoError, fmt.Sprintf("short write %d/%d", n, len(p)))
	}
	return n, nil
}

// SetBaud reopens the port at a new rate. On failure the old port stays open.
func (u *UART) SetBaud(baud int) error {
	const op = "uart.set_baud"
	if baud <= 0 {
		return errcode.New(op, errcode.OutOfRange, "baud")
	}
	if err := u.h.Live(op); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if baud == u.baud {
		return nil
	}
	sp, err := u.host.backend.OpenSerial(u.path, baud)
	if err != nil {
		return errcode.Wrap(op, err)
	}
	_ = u.sp.Close()
	u.sp, u.baud = sp, baud
	return nil
}

func (u *UART) Flush() error {
	const op = "uart.flush"
	if err := u.h.Live(op); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return errcode.Wrap(op, u.sp.Flush())
}

func (u *UART) Close() error {
	err := u.h.Close(func() error {
		u.mu.Lock()
		defer u.mu.Unlock()
		return errcode.Wrap("uart.close", u.sp.Close())
	})
	u.host.forget(u)
	return err
}
