package hal

import (
	"io"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/services/hal/internal/gpioirq"
	"boardio-go/types"
)

// EdgeHandler receives edge notifications for a line. value is the level
// the edge left the line at (1 after rising, 0 after falling).
//
// Handlers run on the Host's dispatch goroutine, one at a time per line.
// A handler may read or write lines but must not unregister or close its
// own line.
type EdgeHandler interface {
	HandleEdge(line *GPIO, value int)
}

// EdgeHandlerFunc adapts a function to EdgeHandler.
type EdgeHandlerFunc func(line *GPIO, value int)

func (f EdgeHandlerFunc) HandleEdge(line *GPIO, value int) { f(line, value) }

// GPIO is one digital line.
type GPIO struct {
	h    *core.Handle
	host *Host
	pin  int
	line core.Line

	mu   sync.Mutex
	dir  types.Direction
	edge types.Edge
	reg  *gpioirq.Registration
}

// OpenGPIO claims header pin and configures it per cfg.
func (h *Host) OpenGPIO(pin int, cfg types.GPIOConfig) (*GPIO, error) {
	const op = "gpio.open"
	if !cfg.Direction.Valid() {
		return nil, errcode.New(op, errcode.UnsupportedDirection, cfg.Direction.String())
	}
	if cfg.Initial != 0 && cfg.Initial != 1 {
		return nil, errcode.New(op, errcode.OutOfRange, "initial level must be 0 or 1")
	}
	ref, err := h.board.GPIO(pin)
	if err != nil {
		return nil, err
	}
	var g *GPIO
	err = h.open(op, types.KindGPIO, core.GPIOID(pin), func(hd *core.Handle) (io.Closer, error) {
		line, err := h.backend.OpenLine(ref, cfg.Direction, cfg.Initial)
		if err != nil {
			return nil, err
		}
		g = &GPIO{h: hd, host: h, pin: pin, line: line, dir: cfg.Direction}
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GPIO) Pin() int { return g.pin }

func (g *GPIO) Direction() types.Direction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dir
}

// Edge is the mode of the installed callback, EdgeNone when there is none.
func (g *GPIO) Edge() types.Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edge
}

// SetDirection reconfigures the line. Switching to output keeps the current
// level and removes any edge callback.
func (g *GPIO) SetDirection(d types.Direction) error {
	const op = "gpio.set_direction"
	if !d.Valid() {
		return errcode.New(op, errcode.UnsupportedDirection, d.String())
	}
	if err := g.h.Live(op); err != nil {
		return err
	}
	if d == types.DirOut {
		if err := g.UnregisterEdgeCallback(); err != nil {
			return err
		}
	}
	level, err := g.line.Get()
	if err != nil {
		return errcode.Wrap(op, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.line.Configure(d, level); err != nil {
		return errcode.Wrap(op, err)
	}
	g.dir = d
	return nil
}

// Write drives an output line to 0 or 1.
func (g *GPIO) Write(v int) error {
	const op = "gpio.write"
	if v != 0 && v != 1 {
		return errcode.New(op, errcode.OutOfRange, "level must be 0 or 1")
	}
	if err := g.h.Live(op); err != nil {
		return err
	}
	if g.Direction() != types.DirOut {
		return errcode.New(op, errcode.WrongDirection, "line is an input")
	}
	// The line lock is not held across Set: a wired input may raise an edge
	// whose handler reads this line.
	return errcode.Wrap(op, g.line.Set(v))
}

// Read returns the line level. On an output it is the driven level.
func (g *GPIO) Read() (int, error) {
	const op = "gpio.read"
	if err := g.h.Live(op); err != nil {
		return 0, err
	}
	v, err := g.line.Get()
	if err != nil {
		return 0, errcode.Wrap(op, err)
	}
	return v, nil
}

// RegisterEdgeCallback installs fn for edge, replacing any earlier handler.
// EdgeNone unregisters. Lines without interrupt support fail with
// UnsupportedEdgeMode; there is no polling fallback.
func (g *GPIO) RegisterEdgeCallback(edge types.Edge, fn EdgeHandler) error {
	const op = "gpio.register_edge"
	if edge == types.EdgeNone {
		return g.UnregisterEdgeCallback()
	}
	if edge > types.EdgeBoth {
		return errcode.New(op, errcode.UnsupportedEdgeMode, edge.String())
	}
	if fn == nil {
		return errcode.New(op, errcode.OutOfRange, "nil handler")
	}
	if err := g.h.Live(op); err != nil {
		return err
	}

	g.mu.Lock()
	if g.dir != types.DirIn {
		g.mu.Unlock()
		return errcode.New(op, errcode.WrongDirection, "line is an output")
	}
	reg := g.host.irq.Register(edge, func(level int, _ types.Edge) { fn.HandleEdge(g, level) })
	if err := g.line.SetIRQ(edge, reg.Post); err != nil {
		g.mu.Unlock()
		return errcode.Wrap(op, err)
	}
	old := g.reg
	g.reg, g.edge = reg, edge
	g.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	return nil
}

// UnregisterEdgeCallback removes the handler. Once it returns the handler
// is not running and will not be called again. It is a no-op when no
// handler is installed.
func (g *GPIO) UnregisterEdgeCallback() error {
	const op = "gpio.unregister_edge"
	if err := g.h.Live(op); err != nil {
		return err
	}
	return g.detach(op)
}

func (g *GPIO) detach(op string) error {
	g.mu.Lock()
	old := g.reg
	g.reg, g.edge = nil, types.EdgeNone
	var err error
	if old != nil {
		err = g.line.ClearIRQ()
	}
	g.mu.Unlock()

	// Cancel outside mu: a running handler may be reading this line.
	if old != nil {
		old.Cancel()
	}
	return errcode.Wrap(op, err)
}

// Close removes any handler and releases the line. Repeated calls return nil.
func (g *GPIO) Close() error {
	err := g.h.Close(func() error {
		derr := g.detach("gpio.close")
		if cerr := g.line.Close(); cerr != nil {
			return errcode.Wrap("gpio.close", cerr)
		}
		return derr
	})
	g.host.forget(g)
	return err
}
