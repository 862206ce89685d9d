package hal

import (
	"fmt"
	"io"
	"slices"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/types"
	"boardio-go/x/mathx"
)

// LED is an LED class device.
type LED struct {
	h    *core.Handle
	host *Host
	name string
	dev  core.LEDDevice
	max  int
}

// OpenLED opens the LED at index in the board's list, or in the sorted
// /sys/class/leds listing when the board has none.
func (h *Host) OpenLED(index int) (*LED, error) {
	const op = "led.open"
	name, ok, err := h.board.LED(index)
	if err != nil {
		return nil, err
	}
	if !ok {
		names, err := h.backend.LEDs()
		if err != nil {
			return nil, errcode.Wrap(op, err)
		}
		if index < 0 || index >= len(names) {
			return nil, errcode.New(op, errcode.NotFound, fmt.Sprintf("no led %d", index))
		}
		name = names[index]
	}
	var l *LED
	err = h.open(op, types.KindLED, core.LEDID(index), func(hd *core.Handle) (io.Closer, error) {
		dev, err := h.backend.OpenLED(name)
		if err != nil {
			return nil, err
		}
		maxB, err := dev.MaxBrightness()
		if err != nil {
			_ = dev.Close()
			return nil, err
		}
		l = &LED{h: hd, host: h, name: name, dev: dev, max: maxB}
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LED) Name() string { return l.name }

// MaxBrightness as reported by the device. Zero means brightness control
// is not supported.
func (l *LED) MaxBrightness() int { return l.max }

func (l *LED) Brightness() (int, error) {
	const op = "led.brightness"
	if err := l.h.Live(op); err != nil {
		return 0, err
	}
	v, err := l.dev.Brightness()
	return v, errcode.Wrap(op, err)
}

// SetBrightness accepts [0, MaxBrightness].
func (l *LED) SetBrightness(v int) error {
	const op = "led.set_brightness"
	if !mathx.Between(v, 0, l.max) {
		return errcode.New(op, errcode.OutOfRange, fmt.Sprintf("%d not in [0, %d]", v, l.max))
	}
	if err := l.h.Live(op); err != nil {
		return err
	}
	return errcode.Wrap(op, l.dev.SetBrightness(v))
}

// Triggers lists the trigger names the device supports.
func (l *LED) Triggers() ([]string, error) {
	const op = "led.triggers"
	if err := l.h.Live(op); err != nil {
		return nil, err
	}
	names, _, err := l.dev.Triggers()
	return names, errcode.Wrap(op, err)
}

// Trigger returns the active trigger.
func (l *LED) Trigger() (string, error) {
	const op = "led.trigger"
	if err := l.h.Live(op); err != nil {
		return "", err
	}
	_, active, err := l.dev.Triggers()
	return active, errcode.Wrap(op, err)
}

// SetTrigger activates a trigger from the device's list. An unknown name
// fails with UnsupportedTrigger and nothing is written.
func (l *LED) SetTrigger(name string) error {
	const op = "led.set_trigger"
	if err := l.h.Live(op); err != nil {
		return err
	}
	names, _, err := l.dev.Triggers()
	if err != nil {
		return errcode.Wrap(op, err)
	}
	if !slices.Contains(names, name) {
		return errcode.New(op, errcode.UnsupportedTrigger, name)
	}
	return errcode.Wrap(op, l.dev.SetTrigger(name))
}

func (l *LED) Close() error {
	err := l.h.Close(func() error { return errcode.Wrap("led.close", l.dev.Close()) })
	l.host.forget(l)
	return err
}
