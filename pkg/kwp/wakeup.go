package kwp

import (
	"runtime"
	"runtime/debug"
	"time"
)

const bitTime5Baud = time.Second / 5

// bitBang5Baud sends b as 1 start bit, 7 data bits, 1 parity bit and 1 stop
// bit at 5 baud by toggling the break condition.
// Odd parity is used for KW1281, even parity for KWP2000.
// See https://www.blafusel.de/obd/obd2_kw1281.html
func (c *Common) bitBang5Baud(b byte, evenParity bool) error {
	// A stop-the-world pause of a few ms shifts every following edge
	gcPercent := debug.SetGCPercent(-1)
	runtime.LockOSThread()
	defer func() {
		runtime.UnlockOSThread()
		debug.SetGCPercent(gcPercent)
	}()

	var next time.Duration
	start := c.clock.Now()

	bitBang := func(bit bool) error {
		for c.clock.Now().Sub(start) < next {
			// busy wait, time.Sleep is far too coarse here
		}
		next += c.BitTime
		if bit {
			return c.link.SetBreakOff()
		}
		return c.link.SetBreakOn()
	}

	if err := bitBang(false); err != nil { // start bit
		return err
	}

	parity := !evenParity // XORed with each bit to calculate the parity bit
	for i := 0; i < 7; i++ {
		bit := b&1 == 1
		parity = parity != bit
		b >>= 1
		if err := bitBang(bit); err != nil {
			return err
		}
	}

	if err := bitBang(parity); err != nil {
		return err
	}
	if err := bitBang(true); err != nil { // stop bit
		return err
	}

	// Throw away anything that might be in the receive buffer
	return c.link.ClearReceiveBuffer()
}
