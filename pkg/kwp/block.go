package kwp

import (
	"fmt"
	"strings"
)

// BlockTitle is the third byte of every KW1281 block, identifying its content
type BlockTitle byte

// Block titles as defined by the KW1281 protocol
const (
	ReadIdent             BlockTitle = 0x00
	ReadRomEeprom         BlockTitle = 0x03
	ActuatorTest          BlockTitle = 0x04
	FaultCodesDelete      BlockTitle = 0x05
	End                   BlockTitle = 0x06
	FaultCodesRead        BlockTitle = 0x07
	ACK                   BlockTitle = 0x09
	NAK                   BlockTitle = 0x0A
	ReadEeprom            BlockTitle = 0x19
	WriteEeprom           BlockTitle = 0x1A
	Custom                BlockTitle = 0x1B
	GroupRead             BlockTitle = 0x29
	Login                 BlockTitle = 0x2B
	GroupReadResponse     BlockTitle = 0xE7
	ReadEepromResponse    BlockTitle = 0xEF
	AsciiData             BlockTitle = 0xF6
	FaultCodesResponse    BlockTitle = 0xFC
	ReadRomEepromResponse BlockTitle = 0xFD
)

// BlockKind classifies received blocks. Titles without a dedicated kind are KindUnknown.
type BlockKind int

const (
	KindUnknown BlockKind = iota
	KindAck
	KindNak
	KindAsciiData
	KindReadEepromResponse
	KindReadRomEepromResponse
	KindCustom
)

var kindNames = map[BlockKind]string{
	KindUnknown:               "Unknown",
	KindAck:                   "Ack",
	KindNak:                   "Nak",
	KindAsciiData:             "AsciiData",
	KindReadEepromResponse:    "ReadEepromResponse",
	KindReadRomEepromResponse: "ReadRomEepromResponse",
	KindCustom:                "Custom",
}

func (k BlockKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// kindOf maps a title byte to its block kind
func kindOf(t BlockTitle) BlockKind {
	switch t {
	case ACK:
		return KindAck
	case NAK:
		return KindNak
	case AsciiData:
		return KindAsciiData
	case ReadEepromResponse:
		return KindReadEepromResponse
	case ReadRomEepromResponse:
		return KindReadRomEepromResponse
	case Custom:
		return KindCustom
	default:
		return KindUnknown
	}
}

// Block is a received KW1281 block. It is never modified after parsing.
type Block struct {
	Length  byte
	Counter byte
	Title   BlockTitle
	Body    []byte // payload following the title
	Kind    BlockKind
}

// newBlock builds a Block from the received header bytes and payload
func newBlock(length, counter byte, title BlockTitle, body []byte) Block {
	return Block{
		Length:  length,
		Counter: counter,
		Title:   title,
		Body:    body,
		Kind:    kindOf(title),
	}
}

// IsAckNak reports whether b only carries flow control
func (b Block) IsAckNak() bool {
	return b.Kind == KindAck || b.Kind == KindNak
}

// Bytes returns the block as sent on the wire, including the terminator
func (b Block) Bytes() []byte {
	raw := make([]byte, 0, len(b.Body)+4)
	raw = append(raw, b.Length, b.Counter, byte(b.Title))
	raw = append(raw, b.Body...)
	return append(raw, BlockEnd)
}

// Text returns the payload of an AsciiData block. Bit 7 of the last character
// flags that more identification data follows and is stripped.
func (b Block) Text() string {
	var sb strings.Builder
	for _, c := range b.Body {
		sb.WriteByte(c & 0x7F)
	}
	return sb.String()
}

func (b Block) String() string {
	switch b.Kind {
	case KindAsciiData:
		return fmt.Sprintf("%v block: %q", b.Kind, b.Text())
	case KindUnknown:
		return fmt.Sprintf("Unknown block 0x%02X:%s", byte(b.Title), Dump(b.Body))
	default:
		return fmt.Sprintf("%v block:%s", b.Kind, Dump(b.Body))
	}
}

// filterData drops Ack and Nak blocks
func filterData(blocks []Block) []Block {
	var data []Block
	for _, b := range blocks {
		if !b.IsAckNak() {
			data = append(data, b)
		}
	}
	return data
}
