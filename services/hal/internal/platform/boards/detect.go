package boards

import (
	"bytes"
	"os"
	"path/filepath"
)

// Auto selects the board by Detect.
const Auto = "auto"

// Model reads the device-tree model string under root ("/" on a live
// system). Boards without a device tree yield "".
func Model(root string) string {
	b, err := os.ReadFile(filepath.Join(root, "proc", "device-tree", "model"))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(bytes.TrimRight(b, "\x00")))
}

// Detect matches the device-tree model against the Models of custom and
// then built-in boards. It returns false when nothing matches.
func Detect(root string, custom []Board) (Board, bool) {
	m := Model(root)
	if m == "" {
		return Board{}, false
	}
	for _, b := range custom {
		if b.matches(m) {
			return b, true
		}
	}
	for _, n := range Names() {
		if b := builtin[n](); b.matches(m) {
			return b, true
		}
	}
	return Board{}, false
}

func (b *Board) matches(model string) bool {
	for _, x := range b.Models {
		if x == model {
			return true
		}
	}
	return false
}
