package kwp

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Constants of the KW1281/KWP2000 byte level handshake
const (
	SyncByte byte = 0x55 // Answer of the module to the 5 baud address
	BlockEnd byte = 0x03 // Terminates every block, never acknowledged

	kwp2000Version = 2000
	wakeupAttempts = 3
)

// ByteChannel is the per-byte reliability layer: echo-verified writes and
// complement-acknowledged reads
type ByteChannel interface {
	ReadByte() (byte, error)
	WriteByte(b byte) error
	ReadAndAckByte() (byte, error)
	ReadComplement(b byte) error
}

// Common implements the 5 baud wakeup and the ByteChannel on top of a Link
type Common struct {
	link  Link
	clock Clock

	// BitTime is the length of one bit of the 5 baud address byte
	BitTime time.Duration
}

// NewCommon creates the byte layer for link
func NewCommon(link Link) *Common {
	return &Common{link: link, clock: monotonicClock{}, BitTime: bitTime5Baud}
}

// WakeUp sends controllerAddress at 5 baud and reads the sync and keyword
// bytes. It returns the protocol version, e.g. 1281 for KW1281.
// evenParity selects KWP2000 style addressing.
func (c *Common) WakeUp(controllerAddress byte, evenParity bool) (int, error) {
	var err error
	for attempt := 1; attempt <= wakeupAttempts; attempt++ {
		err = c.bitBang5Baud(controllerAddress, evenParity)
		if err != nil {
			return 0, err
		}

		log.Infof("Reading sync byte (attempt %d/%d)", attempt, wakeupAttempts)
		var sync byte
		sync, err = c.link.ReadByte()
		if err == nil && sync != SyncByte {
			err = &SyncError{Actual: sync}
		}
		if err == nil {
			break
		}
		var se *SyncError
		if !errors.Is(err, ErrTimeout) && !errors.As(err, &se) {
			return 0, err
		}
		log.Warnf("Wakeup of 0x%02X failed: %v", controllerAddress, err)
	}
	if err != nil {
		return 0, fmt.Errorf("%w (%v)", ErrWakeupFailed, err)
	}

	keywordLsb, err := c.link.ReadByte()
	if err != nil {
		return 0, err
	}
	log.Debugf("Keyword Lsb 0x%02X", keywordLsb)

	keywordMsb, err := c.ReadAndAckByte()
	if err != nil {
		return 0, err
	}
	log.Debugf("Keyword Msb 0x%02X", keywordMsb)

	version := int(keywordMsb&0x7F)<<7 | int(keywordLsb&0x7F)
	log.Infof("Protocol is KW %d (8N1)", version)

	if version >= kwp2000Version {
		if err := c.ReadComplement(controllerAddress); err != nil {
			return version, err
		}
	}
	return version, nil
}

// ReadByte reads a byte without acknowledging it
func (c *Common) ReadByte() (byte, error) {
	return c.link.ReadByte()
}

// WriteByte writes b and consumes its echo from the K-line
func (c *Common) WriteByte(b byte) error {
	if err := c.link.WriteRawByte(b); err != nil {
		return err
	}
	echo, err := c.link.ReadByte()
	if err != nil {
		return fmt.Errorf("reading echo of 0x%02X: %w", b, err)
	}
	if echo != b {
		return &EchoMismatchError{Sent: b, Echo: echo}
	}
	return nil
}

// ReadAndAckByte reads a byte and acknowledges it with its complement
func (c *Common) ReadAndAckByte() (byte, error) {
	b, err := c.link.ReadByte()
	if err != nil {
		return 0, err
	}
	if err := c.WriteByte(^b); err != nil {
		return b, err
	}
	return b, nil
}

// ReadComplement reads the acknowledgment of b
func (c *Common) ReadComplement(b byte) error {
	expected := ^b
	actual, err := c.link.ReadByte()
	if err != nil {
		return err
	}
	if actual != expected {
		return &ComplementMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
