//go:build linux

package platform

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"boardio-go/errcode"

	"periph.io/x/conn/v3/physic"
)

// Linux opens real device nodes. Root prefixes every /sys and /dev path so
// the sysfs-driven parts can run against a fixture tree.
type Linux struct {
	Root     string
	Consumer string           // GPIO consumer label shown by gpioinfo
	SPIMax   physic.Frequency // controller ceiling reported for spidev nodes
}

func NewLinux(root string) *Linux {
	if root == "" {
		root = "/"
	}
	return &Linux{
		Root:     root,
		Consumer: "boardio",
		SPIMax:   50 * physic.MegaHertz,
	}
}

func (lx *Linux) path(elem ...string) string {
	return filepath.Join(append([]string{lx.Root}, elem...)...)
}

// FindI2CBus resolves an adapter name by scanning /sys/class/i2c-dev.
// Both the adapter's name attribute and the platform device it hangs off
// (e.g. "31b0000.i2c") are accepted.
func (lx *Linux) FindI2CBus(adapter string) (int, error) {
	const op = "i2c.find_bus"
	dir := lx.path("sys", "class", "i2c-dev")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0, errcode.Wrap(op, err)
	}
	for _, e := range ents {
		n, ok := strings.CutPrefix(e.Name(), "i2c-")
		if !ok {
			continue
		}
		bus, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		if name, err := readAttr(filepath.Join(dir, e.Name(), "name")); err == nil && name == adapter {
			return bus, nil
		}
		if target, err := filepath.EvalSymlinks(filepath.Join(dir, e.Name(), "device")); err == nil {
			if strings.Contains(target+"/", "/"+adapter+"/") {
				return bus, nil
			}
		}
	}
	return 0, errcode.New(op, errcode.NotFound, adapter)
}

// LEDs lists /sys/class/leds in name order.
func (lx *Linux) LEDs() ([]string, error) {
	ents, err := os.ReadDir(lx.path("sys", "class", "leds"))
	if err != nil {
		return nil, errcode.Wrap("led.list", err)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ---- sysfs attribute helpers ----

func readAttr(p string) (string, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readIntAttr(p string) (int64, error) {
	s, err := readAttr(p)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func writeAttr(p, v string) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
