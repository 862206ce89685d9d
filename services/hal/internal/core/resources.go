package core

import (
	"fmt"
	"sort"
	"sync"

	"boardio-go/errcode"
	"boardio-go/types"
)

// ResourceID is the claim key of one OS resource, e.g. "gpio/7", "i2c/1/0x50".
type ResourceID string

func GPIOID(pin int) ResourceID { return ResourceID(fmt.Sprintf("%s/%d", types.KindGPIO, pin)) }
func I2CID(bus int, addr uint8) ResourceID { return ResourceID(fmt.Sprintf("%s/%d/0x%02x", types.KindI2C, bus, addr)) }
func SPIID(bus, cs int) ResourceID { return ResourceID(fmt.Sprintf("%s/%d.%d", types.KindSPI, bus, cs)) }
func PWMID(pin int) ResourceID { return ResourceID(fmt.Sprintf("%s/%d", types.KindPWM, pin)) }
func UARTID(port int) ResourceID { return ResourceID(fmt.Sprintf("%s/%d", types.KindUART, port)) }
func LEDID(index int) ResourceID { return ResourceID(fmt.Sprintf("%s/%d", types.KindLED, index)) }

// Claims enforces the single-owner rule: one live handle per ResourceID.
type Claims struct {
	mu   sync.Mutex
	used map[ResourceID]struct{}
}

func NewClaims() *Claims {
	return &Claims{used: make(map[ResourceID]struct{})}
}

func (c *Claims) Claim(id ResourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, inUse := c.used[id]; inUse {
		return errcode.New("claim", errcode.ResourceBusy, string(id))
	}
	c.used[id] = struct{}{}
	return nil
}

func (c *Claims) Release(id ResourceID) {
	c.mu.Lock()
	delete(c.used, id)
	c.mu.Unlock()
}

// Swap moves a claim from old to new atomically. On failure old stays held.
func (c *Claims) Swap(old, new ResourceID) error {
	if old == new {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, inUse := c.used[new]; inUse {
		return errcode.New("claim", errcode.ResourceBusy, string(new))
	}
	delete(c.used, old)
	c.used[new] = struct{}{}
	return nil
}

// Held returns the claimed IDs in sorted order.
func (c *Claims) Held() []ResourceID {
	c.mu.Lock()
	out := make([]ResourceID, 0, len(c.used))
	for id := range c.used {
		out = append(out, id)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
