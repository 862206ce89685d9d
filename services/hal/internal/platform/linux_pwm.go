//go:build linux

package platform

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
)

// sysPWM drives /sys/class/pwm/pwmchipN/pwmM. All values are nanoseconds.
type sysPWM struct {
	mu       sync.Mutex
	chipDir  string
	dir      string
	channel  int
	exported bool // we exported it, so Close unexports it
	period   int64
	duty     int64
}

func (lx *Linux) OpenPWM(ref core.PWMRef) (core.PWMChannel, error) {
	const op = "pwm.open"
	chipDir := lx.path("sys", "class", "pwm", "pwmchip"+strconv.Itoa(ref.Chip))
	if _, err := os.Stat(chipDir); err != nil {
		return nil, errcode.Wrap(op, err)
	}
	p := &sysPWM{
		chipDir: chipDir,
		dir:     chipDir + "/pwm" + strconv.Itoa(ref.Channel),
		channel: ref.Channel,
	}
	if _, err := os.Stat(p.dir); errors.Is(err, fs.ErrNotExist) {
		if err := writeAttr(chipDir+"/export", strconv.Itoa(ref.Channel)); err != nil {
			return nil, errcode.Wrap(op, err)
		}
		if err := waitFor(p.dir + "/period"); err != nil {
			_ = writeAttr(chipDir+"/unexport", strconv.Itoa(ref.Channel))
			return nil, errcode.Wrap(op, err)
		}
		p.exported = true
	}
	p.period, _ = readIntAttr(p.dir + "/period")
	p.duty, _ = readIntAttr(p.dir + "/duty_cycle")
	return p, nil
}

// waitFor gives udev a moment to create (and chmod) the exported attributes.
func waitFor(path string) error {
	var err error
	for i := 0; i < 20; i++ {
		if _, err = os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return err
}

// SetPeriod keeps duty <= period at every step: a duty larger than the new
// period is cut down first.
func (p *sysPWM) SetPeriod(ns int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duty > ns {
		if err := writeAttr(p.dir+"/duty_cycle", strconv.FormatInt(ns, 10)); err != nil {
			return err
		}
		p.duty = ns
	}
	if err := writeAttr(p.dir+"/period", strconv.FormatInt(ns, 10)); err != nil {
		return err
	}
	p.period = ns
	return nil
}

func (p *sysPWM) SetDutyCycle(ns int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writeAttr(p.dir+"/duty_cycle", strconv.FormatInt(ns, 10)); err != nil {
		return err
	}
	p.duty = ns
	return nil
}

func (p *sysPWM) SetEnabled(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return writeAttr(p.dir+"/enable", v)
}

func (p *sysPWM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exported {
		return nil
	}
	p.exported = false
	return writeAttr(p.chipDir+"/unexport", strconv.Itoa(p.channel))
}
