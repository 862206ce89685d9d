//go:build linux

package errcode

import (
	"errors"
	"io/fs"
	"strings"

	"golang.org/x/sys/unix"
)

// I²C adapters report a missing ACK as ENXIO or EREMOTEIO; arbitration loss and
// stuck buses surface as EAGAIN, ETIMEDOUT or EIO.
var errnoCodes = []struct {
	errno unix.Errno
	code  Code
}{
	{unix.ENXIO, Nack},
	{unix.EREMOTEIO, Nack},
	{unix.EAGAIN, BusError},
	{unix.ETIMEDOUT, BusError},
	{unix.EIO, BusError},
	{unix.EBUSY, ResourceBusy},
	{unix.ENOENT, NotFound},
	{unix.ENODEV, NotFound},
	{unix.EACCES, PermissionDenied},
	{unix.EPERM, PermissionDenied},
	{unix.EINVAL, OutOfRange},
	{unix.ERANGE, OutOfRange},
	{unix.EOPNOTSUPP, Unsupported},
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	for _, e := range errnoCodes {
		if errors.Is(err, e.errno) {
			return e.code
		}
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	}
	// periph's sysfs drivers format the errno with %v, so only its text
	// survives, at the end of the message.
	msg := err.Error()
	for _, e := range errnoCodes {
		if strings.HasSuffix(msg, e.errno.Error()) {
			return e.code
		}
	}
	return IoError
}
