//go:build linux

package platform

import (
	"strconv"
	"strings"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
)

// sysLED is /sys/class/leds/<name>.
type sysLED struct {
	dir string
}

func (lx *Linux) OpenLED(name string) (core.LEDDevice, error) {
	dir := lx.path("sys", "class", "leds", name)
	if _, err := readAttr(dir + "/brightness"); err != nil {
		return nil, errcode.Wrap("led.open", err)
	}
	return &sysLED{dir: dir}, nil
}

func (l *sysLED) MaxBrightness() (int, error) {
	v, err := readIntAttr(l.dir + "/max_brightness")
	return int(v), err
}

func (l *sysLED) Brightness() (int, error) {
	v, err := readIntAttr(l.dir + "/brightness")
	return int(v), err
}

func (l *sysLED) SetBrightness(v int) error {
	return writeAttr(l.dir+"/brightness", strconv.Itoa(v))
}

// Triggers parses "none [timer] heartbeat", where the bracketed entry is active.
func (l *sysLED) Triggers() ([]string, string, error) {
	s, err := readAttr(l.dir + "/trigger")
	if err != nil {
		return nil, "", err
	}
	names, active := parseTriggers(s)
	return names, active, nil
}

func parseTriggers(s string) (names []string, active string) {
	for _, f := range strings.Fields(s) {
		if t, ok := strings.CutPrefix(f, "["); ok {
			t = strings.TrimSuffix(t, "]")
			active = t
			f = t
		}
		names = append(names, f)
	}
	return names, active
}

func (l *sysLED) SetTrigger(name string) error {
	names, _, err := l.Triggers()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return writeAttr(l.dir+"/trigger", name)
		}
	}
	return errcode.UnsupportedTrigger
}

func (l *sysLED) Close() error { return nil }
