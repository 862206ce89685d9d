package core

import (
	"sync"

	"boardio-go/errcode"
	"boardio-go/types"
)

// Handle is the shared base of every opened peripheral: it owns one claim
// and knows how to give it back. Close is idempotent.
type Handle struct {
	kind   types.Kind
	id     ResourceID
	claims *Claims

	mu     sync.Mutex
	closed bool
}

// Bind claims id and returns the handle owning it.
func Bind(claims *Claims, kind types.Kind, id ResourceID) (*Handle, error) {
	if err := claims.Claim(id); err != nil {
		return nil, err
	}
	return &Handle{kind: kind, id: id, claims: claims}, nil
}

func (h *Handle) Kind() types.Kind { return h.kind }

func (h *Handle) ID() ResourceID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func (h *Handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// Live returns InvalidState once the handle has been closed.
func (h *Handle) Live(op string) error {
	if !h.IsOpen() {
		return errcode.New(op, errcode.InvalidState, "handle closed")
	}
	return nil
}

// Rebind moves the claim to a new ID (I²C address change).
func (h *Handle) Rebind(id ResourceID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errcode.InvalidState
	}
	if err := h.claims.Swap(h.id, id); err != nil {
		return err
	}
	h.id = id
	return nil
}

// Close runs release once, then gives the claim back. Later calls return nil.
// The claim is returned even when release fails.
func (h *Handle) Close(release func() error) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	id := h.id
	h.mu.Unlock()

	var err error
	if release != nil {
		err = release()
	}
	h.claims.Release(id)
	return err
}
