package kwp

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when no byte arrives within the link's read timeout
	ErrTimeout = errors.New("timed out waiting for byte")
	// ErrWakeupFailed is returned after all wakeup attempts went unanswered
	ErrWakeupFailed = errors.New("wakeup failed: no sync byte from module")
	// ErrCounterUnset is returned when sending a block before the module dictated the block counter
	ErrCounterUnset = errors.New("block counter unknown, receive a block first")
	// ErrLoginRejected is returned when the module answers a login with NAK
	ErrLoginRejected = errors.New("login rejected by module")
	// ErrBreakUnsupported is returned by links that can not drive the TxD line directly
	ErrBreakUnsupported = errors.New("link does not support break control")
	// ErrSessionClosed is returned when a dialog is used after it was handed over to a bootstrap program
	ErrSessionClosed = errors.New("session is not resumable")
)

// EchoMismatchError indicates the K-line did not echo a written byte, usually a wiring fault.
type EchoMismatchError struct {
	Sent byte
	Echo byte
}

func (e *EchoMismatchError) Error() string {
	return fmt.Sprintf("wrote 0x%02X to port but echo was 0x%02X", e.Sent, e.Echo)
}

// ComplementMismatchError indicates the peer acknowledged a byte with something other than its complement.
type ComplementMismatchError struct {
	Expected byte
	Actual   byte
}

func (e *ComplementMismatchError) Error() string {
	return fmt.Sprintf("received complement 0x%02X but expected 0x%02X", e.Actual, e.Expected)
}

// CounterDesyncError indicates a lost or duplicated block.
type CounterDesyncError struct {
	Expected byte
	Actual   byte
}

func (e *CounterDesyncError) Error() string {
	return fmt.Sprintf("received block counter 0x%02X but expected 0x%02X", e.Actual, e.Expected)
}

// BadTerminatorError indicates a corrupted block frame.
type BadTerminatorError struct {
	Actual byte
}

func (e *BadTerminatorError) Error() string {
	return fmt.Sprintf("received block end 0x%02X but expected 0x%02X", e.Actual, BlockEnd)
}

// SyncError indicates the module answered the 5 baud address with something other than 0x55.
type SyncError struct {
	Actual byte
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("unexpected sync byte: expected 0x%02X, actual 0x%02X", SyncByte, e.Actual)
}

// UnexpectedBlockCountError is returned when a response does not carry exactly one data block.
// The session stays usable.
type UnexpectedBlockCountError struct {
	Operation string
	Count     int
}

func (e *UnexpectedBlockCountError) Error() string {
	return fmt.Sprintf("%s returned %d data blocks, expected 1", e.Operation, e.Count)
}

// BadLengthError indicates a block length byte too small to hold counter and title.
type BadLengthError struct {
	Length byte
}

func (e *BadLengthError) Error() string {
	return fmt.Sprintf("received block length %d, expected at least 3", e.Length)
}

// Recoverable is implemented by errors of callers on top of the dialog that
// leave the session usable, e.g. a request rejected before anything was sent.
type Recoverable interface {
	Recoverable() bool
}

// IsFatal reports whether err leaves the block counter or acknowledgment state
// undefined, so that the session has to be abandoned.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var r Recoverable
	if errors.As(err, &r) && r.Recoverable() {
		return false
	}
	var ubc *UnexpectedBlockCountError
	if errors.As(err, &ubc) {
		return false
	}
	var rre *ReadRefusedError
	if errors.As(err, &rre) {
		return false
	}
	if errors.Is(err, ErrLoginRejected) {
		return false
	}
	return true
}
