package cluster

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/speters/kw1281/pkg/kwp"
)

// marelliAck is what the cluster's boot code answers to every accepted frame
var marelliAck = []byte{0x03, 0x09, 0x00, 0x0C}

// BootstrapAckError is returned when the cluster does not acknowledge a frame
type BootstrapAckError struct {
	Received []byte
}

func (e *BootstrapAckError) Error() string {
	return fmt.Sprintf("expected ACK% X but received% X", marelliAck, e.Received)
}

// marelliFrame wraps payload as [lenH lenL payload... chkH chkL]. The length
// counts the checksum, the checksum is the 16 bit sum of length and payload bytes.
func marelliFrame(payload []byte) []byte {
	count := uint16(len(payload) + 2)
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, byte(count>>8), byte(count))
	frame = append(frame, payload...)

	sum := frameChecksum(frame)
	return append(frame, byte(sum>>8), byte(sum))
}

func frameChecksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

// writeFrameAndReadAck sends payload as a frame, each byte echo checked but
// not acknowledged, and waits for the 4 byte ACK
func writeFrameAndReadAck(ch kwp.ByteChannel, payload []byte) error {
	for _, b := range marelliFrame(payload) {
		if err := ch.WriteByte(b); err != nil {
			return err
		}
	}

	log.Debugf("Receiving ACK")
	ack := make([]byte, 0, len(marelliAck))
	for i := 0; i < len(marelliAck); i++ {
		b, err := ch.ReadByte()
		if err != nil {
			return err
		}
		ack = append(ack, b)
	}
	if !bytes.Equal(ack, marelliAck) {
		return &BootstrapAckError{Received: ack}
	}
	return nil
}
