//go:build !linux

package errcode

import (
	"errors"
	"io/fs"
)

// MapDriverErr maps low-level driver errors to a Code. Without the Linux
// errno set only the portable fs classes can be told apart.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	}
	return IoError
}
