//go:build linux

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}

func TestResolveGlobal(t *testing.T) {
	root := t.TempDir()
	sys := filepath.Join(root, "sys", "class", "gpio")
	writeFile(t, filepath.Join(sys, "gpiochip316", "base"), "316\n")
	writeFile(t, filepath.Join(sys, "gpiochip316", "ngpio"), "24\n")
	writeFile(t, filepath.Join(sys, "gpiochip316", "device", "gpiochip1", "dev"), "254:1\n")
	writeFile(t, filepath.Join(sys, "gpiochip348", "base"), "348\n")
	writeFile(t, filepath.Join(sys, "gpiochip348", "ngpio"), "164\n")
	writeFile(t, filepath.Join(sys, "gpiochip348", "device", "gpiochip0", "dev"), "254:0\n")

	lx := NewLinux(root)
	ref, err := lx.resolveGlobal(432)
	if err != nil {
		t.Fatalf("resolveGlobal: %v", err)
	}
	if ref != (core.LineRef{Chip: "gpiochip0", Offset: 84}) {
		t.Fatalf("ref=%+v", ref)
	}
	ref, err = lx.resolveGlobal(320)
	if err != nil || ref.Chip != "gpiochip1" || ref.Offset != 4 {
		t.Fatalf("ref=%+v err=%v", ref, err)
	}
	if _, err := lx.resolveGlobal(10); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("unmapped err=%v", err)
	}
}

func TestResolveExpanderLabel(t *testing.T) {
	root := t.TempDir()
	sys := filepath.Join(root, "sys", "class", "gpio")
	// pca9535 reports its label; pca9534 only through the i2c client name.
	writeFile(t, filepath.Join(sys, "gpiochip496", "label"), "pca9535\n")
	writeFile(t, filepath.Join(sys, "gpiochip496", "device", "gpiochip3", "dev"), "254:3\n")
	writeFile(t, filepath.Join(sys, "gpiochip488", "label"), "5-0021\n")
	writeFile(t, filepath.Join(sys, "gpiochip488", "device", "name"), "pca9534\n")
	writeFile(t, filepath.Join(sys, "gpiochip488", "device", "gpiochip4", "dev"), "254:4\n")

	lx := NewLinux(root)
	ref, err := lx.resolveLabel("pca9535", 12)
	if err != nil || ref != (core.LineRef{Chip: "gpiochip3", Offset: 12}) {
		t.Fatalf("pca9535: ref=%+v err=%v", ref, err)
	}
	ref, err = lx.resolveLabel("pca9534", 2)
	if err != nil || ref != (core.LineRef{Chip: "gpiochip4", Offset: 2}) {
		t.Fatalf("pca9534: ref=%+v err=%v", ref, err)
	}
	if _, err := lx.resolveLabel("sx1509", 0); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("unknown label err=%v", err)
	}
}

func TestFindI2CBus(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sys", "class", "i2c-dev")
	writeFile(t, filepath.Join(dir, "i2c-0", "name"), "3160000.i2c\n")
	writeFile(t, filepath.Join(dir, "i2c-7", "name"), "Tegra I2C adapter\n")
	dev := filepath.Join(root, "sys", "devices", "platform", "31b0000.i2c", "i2c-7")
	if err := os.MkdirAll(dev, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(dev, filepath.Join(dir, "i2c-7", "device")); err != nil {
		t.Fatal(err)
	}

	lx := NewLinux(root)
	if bus, err := lx.FindI2CBus("3160000.i2c"); err != nil || bus != 0 {
		t.Fatalf("by name: bus=%d err=%v", bus, err)
	}
	if bus, err := lx.FindI2CBus("31b0000.i2c"); err != nil || bus != 7 {
		t.Fatalf("by device: bus=%d err=%v", bus, err)
	}
	if _, err := lx.FindI2CBus("c240000.i2c"); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing err=%v", err)
	}
}

func TestSysfsLED(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sys", "class", "leds")
	writeFile(t, filepath.Join(dir, "LED2", "brightness"), "0\n")
	writeFile(t, filepath.Join(dir, "LED1", "brightness"), "0\n")
	writeFile(t, filepath.Join(dir, "LED1", "max_brightness"), "255\n")
	writeFile(t, filepath.Join(dir, "LED1", "trigger"), "none [timer] heartbeat\n")

	lx := NewLinux(root)
	names, err := lx.LEDs()
	if err != nil || len(names) != 2 || names[0] != "LED1" {
		t.Fatalf("LEDs=%v err=%v", names, err)
	}
	led, err := lx.OpenLED("LED1")
	if err != nil {
		t.Fatalf("OpenLED: %v", err)
	}
	if m, _ := led.MaxBrightness(); m != 255 {
		t.Fatalf("max=%d", m)
	}
	trig, active, err := led.Triggers()
	if err != nil || active != "timer" || len(trig) != 3 || trig[1] != "timer" {
		t.Fatalf("triggers=%v active=%q err=%v", trig, active, err)
	}
	if err := led.SetTrigger("heartbeat"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "LED1", "trigger")); got != "heartbeat" {
		t.Fatalf("trigger file=%q", got)
	}
	if err := led.SetTrigger("disco"); !errors.Is(err, errcode.UnsupportedTrigger) {
		t.Fatalf("unknown trigger err=%v", err)
	}
	if err := led.SetBrightness(128); err != nil {
		t.Fatal(err)
	}
	if b, _ := led.Brightness(); b != 128 {
		t.Fatalf("brightness=%d", b)
	}
	if _, err := lx.OpenLED("LED9"); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing led err=%v", err)
	}
}

func TestPWMExportTimeoutUnexports(t *testing.T) {
	root := t.TempDir()
	chip := filepath.Join(root, "sys", "class", "pwm", "pwmchip0")
	// Nothing creates pwm2 after the export write, as with a channel the
	// driver refuses.
	writeFile(t, filepath.Join(chip, "export"), "")
	writeFile(t, filepath.Join(chip, "unexport"), "")

	lx := NewLinux(root)
	if _, err := lx.OpenPWM(core.PWMRef{Chip: 0, Channel: 2}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("OpenPWM err=%v", err)
	}
	if got := readFile(t, filepath.Join(chip, "export")); got != "2" {
		t.Fatalf("export=%q", got)
	}
	if got := readFile(t, filepath.Join(chip, "unexport")); got != "2" {
		t.Fatalf("channel left exported: unexport=%q", got)
	}
}

func TestSysfsPWMOrdersDutyAndPeriod(t *testing.T) {
	root := t.TempDir()
	ch := filepath.Join(root, "sys", "class", "pwm", "pwmchip0", "pwm3")
	writeFile(t, filepath.Join(ch, "period"), "5000000\n")
	writeFile(t, filepath.Join(ch, "duty_cycle"), "2500000\n")
	writeFile(t, filepath.Join(ch, "enable"), "0\n")

	lx := NewLinux(root)
	p, err := lx.OpenPWM(core.PWMRef{Chip: 0, Channel: 3})
	if err != nil {
		t.Fatalf("OpenPWM: %v", err)
	}
	if err := p.SetPeriod(1000000); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(ch, "duty_cycle")); got != "1000000" {
		t.Fatalf("duty not trimmed before period: %q", got)
	}
	if got := readFile(t, filepath.Join(ch, "period")); got != "1000000" {
		t.Fatalf("period=%q", got)
	}
	if err := p.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(ch, "enable")); got != "1" {
		t.Fatalf("enable=%q", got)
	}
	// Already exported by someone else: Close must not unexport.
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "sys", "class", "pwm", "pwmchip0", "unexport")); !os.IsNotExist(err) {
		t.Fatalf("unexport written: %v", err)
	}
	if _, err := lx.OpenPWM(core.PWMRef{Chip: 4}); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("missing chip err=%v", err)
	}
}

func TestOpenMissingDeviceNodes(t *testing.T) {
	lx := NewLinux(t.TempDir())
	if _, err := lx.OpenI2C(1); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("i2c err=%v", err)
	}
	if _, err := lx.OpenSPI(0, 0); !errors.Is(err, errcode.NotFound) {
		t.Fatalf("spi err=%v", err)
	}
}

func TestI2CRejectsOversizedMessages(t *testing.T) {
	var d devI2C
	big := make([]byte, maxI2CMsg+1)
	if err := d.Tx(0x50, big, nil); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("write err=%v", err)
	}
	if err := d.Tx(0x50, []byte{0}, big); !errors.Is(err, errcode.OutOfRange) {
		t.Fatalf("read err=%v", err)
	}
}

func TestSPIClockBounds(t *testing.T) {
	var d devSPI
	if err := d.Configure(spi.Mode0, 50*physic.Hertz); !errors.Is(err, errcode.UnsupportedFrequency) {
		t.Fatalf("50Hz err=%v", err)
	}
	if err := d.Configure(spi.Mode0, 2*physic.GigaHertz); !errors.Is(err, errcode.UnsupportedFrequency) {
		t.Fatalf("2GHz err=%v", err)
	}
	if err := d.Tx([]byte{1}, nil); !errors.Is(err, errcode.InvalidState) {
		t.Fatalf("unconfigured tx err=%v", err)
	}
}

func TestParseTriggers(t *testing.T) {
	names, active := parseTriggers("[none] rfkill-any kbd-scrolllock")
	if active != "none" || len(names) != 3 || names[0] != "none" {
		t.Fatalf("names=%v active=%q", names, active)
	}
}
