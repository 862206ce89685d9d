// Package hal is a peripheral access facade for Linux boards: GPIO lines
// with edge callbacks, I²C and SPI sessions, PWM channels, UART ports and
// LED class devices. Every peripheral is reached through a handle obtained
// from a Host; a Host enforces one live handle per OS resource.
package hal

import (
	"context"
	"io"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/config"
	"boardio-go/services/hal/internal/core"
	"boardio-go/services/hal/internal/gpioirq"
	"boardio-go/services/hal/internal/platform"
	"boardio-go/services/hal/internal/platform/boards"
	"boardio-go/types"

	"periph.io/x/conn/v3/physic"
)

// Host owns the claim registry, the edge dispatch goroutine and every handle
// opened through it.
type Host struct {
	backend core.Backend
	board   boards.Board
	claims  *core.Claims
	irq     *gpioirq.Worker
	cancel  context.CancelFunc

	uartBaud int

	mu     sync.Mutex
	live   map[io.Closer]struct{}
	closed bool
}

// New builds a Host for cfg.Board on the configured backend.
func New(cfg config.HostConfig) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := cfg.ResolveBoard()
	if err != nil {
		return nil, err
	}
	var be core.Backend
	switch cfg.Backend {
	case config.BackendSim:
		be = newBench(b, cfg.SimWires)
	default:
		lx := platform.NewLinux(cfg.Root)
		if cfg.Consumer != "" {
			lx.Consumer = cfg.Consumer
		}
		if b.SPIMaxHz > 0 {
			lx.SPIMax = physic.Frequency(b.SPIMaxHz) * physic.Hertz
		}
		be = lx
	}
	return newHost(be, b, cfg), nil
}

func newHost(be core.Backend, b boards.Board, cfg config.HostConfig) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		backend:  be,
		board:    b,
		claims:   core.NewClaims(),
		irq:      gpioirq.New(cfg.IRQQueue),
		cancel:   cancel,
		uartBaud: cfg.UARTBaud,
		live:     make(map[io.Closer]struct{}),
	}
	if h.uartBaud == 0 {
		h.uartBaud = config.Default().UARTBaud
	}
	h.irq.Start(ctx)
	return h
}

// Board is the name of the board descriptor in use.
func (h *Host) Board() string { return h.board.Name }

// Held lists the claimed resource identifiers, sorted.
func (h *Host) Held() []string {
	ids := h.claims.Held()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// IRQDrops counts edges that arrived after the dispatcher stopped.
func (h *Host) IRQDrops() uint32 { return h.irq.Drops() }

// Close closes every live handle and stops edge dispatch. It is idempotent;
// the first handle error is returned.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	open := make([]io.Closer, 0, len(h.live))
	for c := range h.live {
		open = append(open, c)
	}
	h.mu.Unlock()

	var first error
	for _, c := range open {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	h.cancel()
	h.irq.Stop()
	return first
}

// open claims id, runs fn to acquire the OS resource and registers the
// resulting handle. The claim is given back when fn fails.
func (h *Host) open(op string, kind types.Kind, id core.ResourceID, fn func(hd *core.Handle) (io.Closer, error)) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return errcode.New(op, errcode.InvalidState, "host closed")
	}
	hd, err := core.Bind(h.claims, kind, id)
	if err != nil {
		return errcode.Wrap(op, err)
	}
	c, err := fn(hd)
	if err != nil {
		_ = hd.Close(nil)
		return errcode.Wrap(op, err)
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = c.Close()
		return errcode.New(op, errcode.InvalidState, "host closed")
	}
	h.live[c] = struct{}{}
	h.mu.Unlock()
	return nil
}

func (h *Host) forget(c io.Closer) {
	h.mu.Lock()
	delete(h.live, c)
	h.mu.Unlock()
}
