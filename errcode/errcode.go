package errcode

import "errors"

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Open / ownership
	NotFound         Code = "not_found"
	PermissionDenied Code = "permission_denied"
	ResourceBusy     Code = "resource_busy"

	// Digital I/O
	WrongDirection       Code = "wrong_direction"
	UnsupportedDirection Code = "unsupported_direction"
	UnsupportedEdgeMode  Code = "unsupported_edge_mode"

	// Parameters and handle state
	OutOfRange           Code = "out_of_range"
	InvalidState         Code = "invalid_state"
	UnsupportedFrequency Code = "unsupported_frequency"
	UnsupportedTrigger   Code = "unsupported_trigger"

	// Transport
	BusError Code = "bus_error"
	Nack     Code = "nack"
	IoError  Code = "io_error"

	Unsupported Code = "unsupported"
	Error       Code = "error" // generic fallback
)

// E keeps the operation, a short message and the underlying cause next to a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Nack) match on the code alone.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New returns an *E without an underlying cause.
func New(op string, c Code, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap attaches op to err, classifying it with MapDriverErr unless it already
// carries a Code. Wrap(op, nil) is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *E
	if errors.As(err, &e) {
		return &E{C: e.C, Op: op, Msg: e.Msg, Err: e.Err}
	}
	if c, ok := err.(Code); ok {
		return &E{C: c, Op: op}
	}
	return &E{C: MapDriverErr(err), Op: op, Err: err}
}

// WrapAs is Wrap with an explicit code, for call sites that know better than
// the errno heuristics (e.g. a short UART write is an IoError whatever the cause).
func WrapAs(op string, c Code, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
