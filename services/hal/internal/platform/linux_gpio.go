//go:build linux

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// cdevLine is one line requested through the GPIO character device (uAPI v2).
// The event handler is installed at request time and forwards to whatever
// EdgeFunc is current; edge detection itself is toggled by Reconfigure.
type cdevLine struct {
	l *gpiocdev.Line

	mu sync.Mutex
	fn core.EdgeFunc
}

func (lx *Linux) OpenLine(ref core.LineRef, dir types.Direction, initial int) (core.Line, error) {
	const op = "gpio.open"
	if ref.Chip == "" {
		var err error
		if ref.Label != "" {
			ref, err = lx.resolveLabel(ref.Label, ref.Offset)
		} else {
			ref, err = lx.resolveGlobal(ref.Global)
		}
		if err != nil {
			return nil, err
		}
	}
	cl := &cdevLine{}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(lx.Consumer),
		gpiocdev.WithEventHandler(cl.onEvent),
	}
	switch dir {
	case types.DirIn:
		opts = append(opts, gpiocdev.AsInput)
	case types.DirOut:
		opts = append(opts, gpiocdev.AsOutput(initial))
	default:
		return nil, errcode.New(op, errcode.UnsupportedDirection, dir.String())
	}
	l, err := gpiocdev.RequestLine(ref.Chip, ref.Offset, opts...)
	if err != nil {
		if errors.Is(err, gpiocdev.ErrInvalidOffset) {
			return nil, errcode.WrapAs(op, errcode.NotFound, err)
		}
		return nil, errcode.Wrap(op, err)
	}
	cl.l = l
	return cl, nil
}

func (x *cdevLine) onEvent(evt gpiocdev.LineEvent) {
	x.mu.Lock()
	fn := x.fn
	x.mu.Unlock()
	if fn == nil {
		return
	}
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		fn(1, types.EdgeRising)
	case gpiocdev.LineEventFallingEdge:
		fn(0, types.EdgeFalling)
	}
}

func (x *cdevLine) Configure(dir types.Direction, initial int) error {
	switch dir {
	case types.DirIn:
		return x.l.Reconfigure(gpiocdev.AsInput)
	case types.DirOut:
		return x.l.Reconfigure(gpiocdev.AsOutput(initial))
	}
	return errcode.UnsupportedDirection
}

func (x *cdevLine) Get() (int, error) { return x.l.Value() }

func (x *cdevLine) Set(v int) error {
	err := x.l.SetValue(v)
	if errors.Is(err, unix.EPERM) {
		return errcode.WrongDirection
	}
	return err
}

func (x *cdevLine) SetIRQ(edge types.Edge, fn core.EdgeFunc) error {
	var opt gpiocdev.LineConfigOption
	switch edge {
	case types.EdgeRising:
		opt = gpiocdev.WithRisingEdge
	case types.EdgeFalling:
		opt = gpiocdev.WithFallingEdge
	case types.EdgeBoth:
		opt = gpiocdev.WithBothEdges
	default:
		return errcode.UnsupportedEdgeMode
	}
	x.mu.Lock()
	x.fn = fn
	x.mu.Unlock()
	if err := x.l.Reconfigure(opt); err != nil {
		x.mu.Lock()
		x.fn = nil
		x.mu.Unlock()
		// The kernel answers ENXIO when the line has no IRQ behind it.
		if errors.Is(err, unix.ENXIO) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTSUP) {
			return errcode.WrapAs("gpio.set_irq", errcode.UnsupportedEdgeMode, err)
		}
		return err
	}
	return nil
}

func (x *cdevLine) ClearIRQ() error {
	x.mu.Lock()
	x.fn = nil
	x.mu.Unlock()
	return x.l.Reconfigure(gpiocdev.WithoutEdges)
}

func (x *cdevLine) Close() error { return x.l.Close() }

// resolveGlobal maps a legacy sysfs GPIO number onto a character device and
// offset using the gpiochip<base> entries under /sys/class/gpio.
func (lx *Linux) resolveGlobal(n int) (core.LineRef, error) {
	const op = "gpio.resolve"
	dir := lx.path("sys", "class", "gpio")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return core.LineRef{}, errcode.Wrap(op, err)
	}
	for _, e := range ents {
		if !strings.HasPrefix(e.Name(), "gpiochip") {
			continue
		}
		base, err := readIntAttr(filepath.Join(dir, e.Name(), "base"))
		if err != nil {
			continue
		}
		ngpio, err := readIntAttr(filepath.Join(dir, e.Name(), "ngpio"))
		if err != nil {
			continue
		}
		if int64(n) < base || int64(n) >= base+ngpio {
			continue
		}
		chip, err := chardevName(filepath.Join(dir, e.Name(), "device"))
		if err != nil {
			return core.LineRef{}, errcode.Wrap(op, err)
		}
		return core.LineRef{Chip: chip, Offset: n - int(base)}, nil
	}
	return core.LineRef{}, errcode.New(op, errcode.NotFound, "gpio"+strconv.Itoa(n))
}

// resolveLabel finds the chip whose label, or whose device's driver name,
// is label. I²C expanders such as pca9535 are matched this way.
func (lx *Linux) resolveLabel(label string, offset int) (core.LineRef, error) {
	const op = "gpio.resolve"
	dir := lx.path("sys", "class", "gpio")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return core.LineRef{}, errcode.Wrap(op, err)
	}
	for _, e := range ents {
		if !strings.HasPrefix(e.Name(), "gpiochip") {
			continue
		}
		chipDir := filepath.Join(dir, e.Name())
		l, _ := readAttr(filepath.Join(chipDir, "label"))
		n, _ := readAttr(filepath.Join(chipDir, "device", "name"))
		if l != label && n != label {
			continue
		}
		chip, err := chardevName(filepath.Join(chipDir, "device"))
		if err != nil {
			return core.LineRef{}, errcode.Wrap(op, err)
		}
		return core.LineRef{Chip: chip, Offset: offset}, nil
	}
	return core.LineRef{}, errcode.New(op, errcode.NotFound, "gpio chip "+label)
}

// chardevName finds the gpiochipN character device registered by a GPIO
// controller's device directory.
func chardevName(deviceDir string) (string, error) {
	ents, err := os.ReadDir(deviceDir)
	if err != nil {
		return "", err
	}
	for _, e := range ents {
		if n, ok := strings.CutPrefix(e.Name(), "gpiochip"); ok {
			if _, err := strconv.Atoi(n); err == nil {
				return e.Name(), nil
			}
		}
	}
	return "", os.ErrNotExist
}
