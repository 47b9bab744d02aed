package kwp

import (
	log "github.com/sirupsen/logrus"
)

// Protocol is the KW1281 block layer. It owns the block counter of one
// physical connection; sent and received blocks share one counter sequence.
type Protocol struct {
	common *Common

	counter    byte
	counterSet bool
	version    int
}

// NewProtocol creates the block layer on top of the byte layer c
func NewProtocol(c *Common) *Protocol {
	return &Protocol{common: c}
}

// Common gives access to the byte layer, e.g. for sub-protocols that leave
// block framing behind
func (p *Protocol) Common() *Common {
	return p.common
}

// Counter returns the counter of the next block and whether the module
// has dictated it yet
func (p *Protocol) Counter() (byte, bool) {
	return p.counter, p.counterSet
}

// Version returns the protocol version reported at wakeup
func (p *Protocol) Version() int {
	return p.version
}

// WakeUp wakes the module at controllerAddress and resets the block counter,
// the module chooses the counter of its first block
func (p *Protocol) WakeUp(controllerAddress byte, evenParity bool) (int, error) {
	p.counterSet = false
	v, err := p.common.WakeUp(controllerAddress, evenParity)
	if err != nil {
		return v, err
	}
	p.version = v
	return v, nil
}

// SendBlock sends body (title and payload) as one block. Every byte but the
// terminator is acknowledged by the module with its complement.
func (p *Protocol) SendBlock(body []byte) error {
	if !p.counterSet {
		return ErrCounterUnset
	}

	raw := make([]byte, 0, len(body)+2)
	raw = append(raw, byte(len(body)+2), p.counter)
	raw = append(raw, body...)
	p.counter++

	log.Debugf("Sending block '%# x'", raw)
	for _, b := range raw {
		if err := p.common.WriteByte(b); err != nil {
			return err
		}
		if err := p.common.ReadComplement(b); err != nil {
			return err
		}
	}

	// Block end, does not get ACK'd
	return p.common.WriteByte(BlockEnd)
}

// ReceiveBlock reads one block and checks its counter and terminator
func (p *Protocol) ReceiveBlock() (Block, error) {
	length, err := p.common.ReadAndAckByte()
	if err != nil {
		return Block{}, err
	}
	if length < 3 {
		return Block{}, &BadLengthError{Length: length}
	}

	counter, err := p.readBlockCounter()
	if err != nil {
		return Block{}, err
	}

	title, err := p.common.ReadAndAckByte()
	if err != nil {
		return Block{}, err
	}

	n := int(length) - 3
	body := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := p.common.ReadAndAckByte()
		if err != nil {
			return Block{}, err
		}
		body = append(body, b)
	}

	end, err := p.common.ReadByte()
	if err != nil {
		return Block{}, err
	}
	if end != BlockEnd {
		return Block{}, &BadTerminatorError{Actual: end}
	}

	block := newBlock(length, counter, BlockTitle(title), body)
	log.Debugf("Received %v", block)
	if block.Kind == KindNak {
		log.Infof("Received NAK block")
	}
	return block, nil
}

// ReceiveBlocks receives blocks, acknowledging each one, until the module
// sends an ACK or NAK block. The terminating block is part of the result.
func (p *Protocol) ReceiveBlocks() ([]Block, error) {
	var blocks []Block
	for {
		block, err := p.ReceiveBlock()
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, block)
		if block.IsAckNak() {
			return blocks, nil
		}
		if err := p.SendAckBlock(); err != nil {
			return blocks, err
		}
	}
}

// SendAckBlock sends an empty ACK block
func (p *Protocol) SendAckBlock() error {
	return p.SendBlock([]byte{byte(ACK)})
}

func (p *Protocol) readBlockCounter() (byte, error) {
	counter, err := p.common.ReadAndAckByte()
	if err != nil {
		return 0, err
	}
	if !p.counterSet {
		p.counter = counter
		p.counterSet = true
	} else if counter != p.counter {
		return counter, &CounterDesyncError{Expected: p.counter, Actual: counter}
	}
	p.counter++
	return counter, nil
}
