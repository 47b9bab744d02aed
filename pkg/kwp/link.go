package kwp

import "time"

// Link is the raw byte-oriented connection to the K-line interface. It has no
// protocol knowledge. ReadByte blocks until a byte arrives or the read timeout
// expires, in which case ErrTimeout is returned.
type Link interface {
	ReadByte() (byte, error)
	WriteRawByte(b byte) error

	// SetBreakOn pulls the TxD line low, SetBreakOff releases it
	SetBreakOn() error
	SetBreakOff() error

	// ClearReceiveBuffer throws away anything received but not yet read
	ClearReceiveBuffer() error
}

// Clock is the monotonic time source used for 5 baud bit timing
type Clock interface {
	Now() time.Time
}

type monotonicClock struct{}

// time.Now carries a monotonic reading, so time.Since is immune to wall clock steps
func (monotonicClock) Now() time.Time { return time.Now() }
