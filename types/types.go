package types

import "strings"

// ------------------------
// Peripheral kinds
// ------------------------

type Kind string

const (
	KindGPIO Kind = "gpio"
	KindI2C  Kind = "i2c"
	KindSPI  Kind = "spi"
	KindPWM  Kind = "pwm"
	KindUART Kind = "uart"
	KindLED  Kind = "led"
)

// ------------------------
// Digital I/O
// ------------------------

// Direction of a GPIO line. The zero value is DirIn.
type Direction uint8

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the directions a line can take.
func (d Direction) Valid() bool { return d == DirIn || d == DirOut }

// Edge selection for edge callbacks.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// Matches reports whether an observed transition (EdgeRising or EdgeFalling)
// is selected by the configured mode e.
func (e Edge) Matches(seen Edge) bool {
	switch e {
	case EdgeBoth:
		return seen == EdgeRising || seen == EdgeFalling
	case EdgeRising, EdgeFalling:
		return e == seen
	default:
		return false
	}
}

// EdgeFrom classifies a level change.
func EdgeFrom(old, new int) Edge {
	switch {
	case old == 0 && new != 0:
		return EdgeRising
	case old != 0 && new == 0:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

// ParseEdge converts a name to an Edge.
// Accepts: "rising", "falling", "both", "none" (case-insensitive).
func ParseEdge(s string) (Edge, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return EdgeRising, true
	case "falling":
		return EdgeFalling, true
	case "both":
		return EdgeBoth, true
	case "", "none":
		return EdgeNone, true
	}
	return EdgeNone, false
}

// ParseDirection accepts "in"/"input" and "out"/"output".
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "input":
		return DirIn, true
	case "out", "output":
		return DirOut, true
	}
	return DirIn, false
}
