package hal

import (
	"io"
	"math"
	"sync"
	"time"

	"boardio-go/errcode"
	"boardio-go/services/hal/internal/core"
	"boardio-go/services/hal/internal/platform/boards"
	"boardio-go/types"
	"boardio-go/x/mathx"
)

// PWM is one pulse-width output. Duty is a ratio of the period; a duty set
// while disabled is kept and applied on Enable(true).
type PWM struct {
	h      *core.Handle
	host   *Host
	pin    int
	ch     core.PWMChannel
	limits boards.PWMLimits

	mu       sync.Mutex
	periodUS int
	duty     float64
	enabled  bool
	hwDuty   int64 // duty_cycle last written, ns
}

// OpenPWM claims the PWM channel behind header pin. The output starts
// disabled with duty 0 and cfg.PeriodUS (board default when zero).
func (h *Host) OpenPWM(pin int, cfg types.PWMConfig) (*PWM, error) {
	const op = "pwm.open"
	limits := h.board.PWM
	period := cfg.PeriodUS
	if period == 0 {
		period = limits.DefaultPeriodUS
	}
	if err := checkPeriod(op, period, limits); err != nil {
		return nil, err
	}
	ref, err := h.board.PWMChannel(pin)
	if err != nil {
		return nil, err
	}
	var p *PWM
	err = h.open(op, types.KindPWM, core.PWMID(pin), func(hd *core.Handle) (io.Closer, error) {
		ch, err := h.backend.OpenPWM(ref)
		if err != nil {
			return nil, err
		}
		if err := initPWM(ch, int64(period)*1000); err != nil {
			_ = ch.Close()
			return nil, err
		}
		p = &PWM{h: hd, host: h, pin: pin, ch: ch, limits: limits, periodUS: period}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func initPWM(ch core.PWMChannel, periodNS int64) error {
	if err := ch.SetEnabled(false); err != nil {
		return err
	}
	if err := ch.SetDutyCycle(0); err != nil {
		return err
	}
	return ch.SetPeriod(periodNS)
}

func checkPeriod(op string, us int, l boards.PWMLimits) error {
	if us <= 0 || !mathx.Between(us, l.MinPeriodUS, l.MaxPeriodUS) {
		return errcode.New(op, errcode.OutOfRange, "period outside board limits")
	}
	return nil
}

func dutyNS(ratio float64, periodNS int64) int64 {
	return int64(math.Round(ratio * float64(periodNS)))
}

func (p *PWM) Pin() int { return p.pin }

// SetPeriod changes the period, in microseconds. The stored duty ratio is
// kept, so an enabled output is rescaled.
func (p *PWM) SetPeriod(us int) error {
	const op = "pwm.set_period"
	if err := checkPeriod(op, us, p.limits); err != nil {
		return err
	}
	if err := p.h.Live(op); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ns := int64(us) * 1000
	target := mathx.Min(p.hwDuty, ns)
	if p.enabled {
		target = dutyNS(p.duty, ns)
	}
	// duty_cycle may never exceed period, so the order depends on direction.
	if ns < int64(p.periodUS)*1000 {
		if err := p.writeDuty(target); err != nil {
			return errcode.Wrap(op, err)
		}
		if err := p.ch.SetPeriod(ns); err != nil {
			return errcode.Wrap(op, err)
		}
	} else {
		if err := p.ch.SetPeriod(ns); err != nil {
			return errcode.Wrap(op, err)
		}
		if err := p.writeDuty(target); err != nil {
			return errcode.Wrap(op, err)
		}
	}
	p.periodUS = us
	return nil
}

// SetDuty sets the duty ratio in [0, 1]. Values outside, including NaN,
// are rejected rather than clamped. Exactly 1.0 is accepted and drives the
// output fully on; anything above it fails with OutOfRange, so a caller
// wrapping ratios at 1.0 has to do that itself.
func (p *PWM) SetDuty(ratio float64) error {
	const op = "pwm.set_duty"
	if math.IsNaN(ratio) || !mathx.Between(ratio, 0, 1) {
		return errcode.New(op, errcode.OutOfRange, "duty must be within [0, 1]")
	}
	if err := p.h.Live(op); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		if err := p.writeDuty(dutyNS(ratio, int64(p.periodUS)*1000)); err != nil {
			return errcode.Wrap(op, err)
		}
	}
	p.duty = ratio
	return nil
}

// Enable starts or stops the output. Enabling applies the stored duty first.
func (p *PWM) Enable(on bool) error {
	const op = "pwm.enable"
	if err := p.h.Live(op); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		if err := p.writeDuty(dutyNS(p.duty, int64(p.periodUS)*1000)); err != nil {
			return errcode.Wrap(op, err)
		}
	}
	if err := p.ch.SetEnabled(on); err != nil {
		return errcode.Wrap(op, err)
	}
	p.enabled = on
	return nil
}

func (p *PWM) writeDuty(ns int64) error {
	if ns == p.hwDuty {
		return nil
	}
	if err := p.ch.SetDutyCycle(ns); err != nil {
		return err
	}
	p.hwDuty = ns
	return nil
}

func (p *PWM) Period() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.periodUS) * time.Microsecond
}

func (p *PWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

func (p *PWM) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Limits are the board's period bounds in microseconds.
func (p *PWM) Limits() (defaultUS, minUS, maxUS int) {
	return p.limits.DefaultPeriodUS, p.limits.MinPeriodUS, p.limits.MaxPeriodUS
}

// Close disables the output and releases the channel.
func (p *PWM) Close() error {
	err := p.h.Close(func() error {
		derr := p.ch.SetEnabled(false)
		if cerr := p.ch.Close(); cerr != nil {
			return errcode.Wrap("pwm.close", cerr)
		}
		return errcode.Wrap("pwm.close", derr)
	})
	p.host.forget(p)
	return err
}
