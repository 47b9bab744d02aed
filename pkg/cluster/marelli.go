package cluster

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/speters/kw1281/pkg/kwp"
)

// marelliUploadTitle selects the boot loader of Marelli clusters
const marelliUploadTitle = 0x6C

const defaultSettleTime = 250 * time.Millisecond

// Dialog is what the Marelli bootstrap needs from a KW1281 session
type Dialog interface {
	SendBlock(body []byte) error
	Common() kwp.ByteChannel
	MarkNonResumable()
}

// Marelli dumps memory of Marelli 68HC12 based instrument clusters by
// uploading a small program that sends the memory over the cluster's UART
type Marelli struct {
	d Dialog

	// Variants lists the known cluster software versions
	Variants []MarelliVariant

	// SettleTime is the pause between the upload block and the first frame
	SettleTime time.Duration
}

// NewMarelli creates a Marelli dumper using the built in variant table
func NewMarelli(d Dialog) *Marelli {
	return &Marelli{d: d, Variants: DefaultMarelliVariants, SettleTime: defaultSettleTime}
}

// DumpMem dumps count bytes from address. ecuInfo is the identification read
// at wakeup, address and count may be nil to use the defaults of the variant.
// After a dump attempt the KW1281 session is gone, do not end communication.
// ErrUnsupportedVariant is returned before anything is sent.
func (m *Marelli) DumpMem(ecuInfo string, address, count *uint16) ([]byte, error) {
	w, err := selectVariant(m.Variants, ecuInfo, address, count)
	if err != nil {
		log.Warnf("%v: %q", err, ecuInfo)
		return []byte{}, err
	}
	end := int(w.address) + int(w.count)
	if end > 0x10000 {
		return []byte{}, fmt.Errorf("memory window 0x%04X+0x%04X exceeds 64k", w.address, w.count)
	}

	log.Infof("Sending block 0x%02X", marelliUploadTitle)
	if err := m.d.SendBlock([]byte{marelliUploadTitle}); err != nil {
		return nil, err
	}
	m.d.MarkNonResumable()

	time.Sleep(m.SettleTime)

	ch := m.d.Common()

	log.Infof("Writing data to cluster microcontroller")
	if err := writeFrameAndReadAck(ch, marelliInit(w.variant.EntryH)); err != nil {
		return nil, err
	}

	log.Infof("Writing memory dump program to cluster microcontroller")
	program := marelliDumpProgram(w.variant.EntryH, w.variant.RegBlockH, w.address, uint16(end))
	if err := writeFrameAndReadAck(ch, program); err != nil {
		return nil, err
	}

	log.Infof("Receiving memory dump (0x%04X bytes at 0x%04X)", w.count, w.address)
	mem := make([]byte, 0, w.count)
	for i := 0; i < int(w.count); i++ {
		b, err := ch.ReadByte()
		if err != nil {
			return mem, fmt.Errorf("memory dump stopped after %d bytes: %w", len(mem), err)
		}
		mem = append(mem, b)
	}
	log.Infof("Done")

	return mem, nil
}

// marelliInit tells the boot loader where the program will be placed
func marelliInit(entryH byte) []byte {
	return []byte{
		0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x50, 0x50, 0x34,
		entryH, 0x00, // Entry point $xx00
	}
}

// marelliDumpProgram assembles the 68HC12 routine that sends [start,end) at
// 9600 baud, feeding the COP watchdog, and then lets the watchdog reset the cluster
func marelliDumpProgram(entryH, regBlockH byte, start, end uint16) []byte {
	startH, startL := byte(start>>8), byte(start)
	endH, endL := byte(end>>8), byte(end)

	return []byte{
		entryH, 0x00, // Address $xx00

		0x14, 0x50, // orcc #$50
		0x07, 0x32, // bsr FeedWatchdog

		// Set baud rate to 9600
		0xC7,                  // clrb
		0x7B, regBlockH, 0xC8, // stab $xxC8   ; SC1BDH
		0xC6, 0x34,            // ldab #$34
		0x7B, regBlockH, 0xC9, // stab $xxC9   ; SC1BDL

		// Enable transmit, disable UART interrupts
		0xC6, 0x08,            // ldab #$08
		0x7B, regBlockH, 0xCB, // stab $xxCB   ; SC1CR2

		0xCE, startH, startL, // ldx #start

		// SendLoop:
		0xA6, 0x30,       // ldaa 1,X+
		0x07, 0x0F,       // bsr SendByte
		0x8E, endH, endL, // cpx #end
		0x26, 0xF7,       // bne SendLoop

		// Poison the watchdog to force a reboot
		0xCC, 0x11, 0x11,      // ldd #$1111
		0x7B, regBlockH, 0x17, // stab $xx17   ; COPRST
		0x7A, regBlockH, 0x17, // staa $xx17   ; COPRST
		0x3D,                  // rts

		// SendByte:
		0xF6, regBlockH, 0xCC, // ldab $xxCC   ; SC1SR1
		0x7A, regBlockH, 0xCF, // staa $xxCF   ; SC1DRL

		// TxBusy:
		0x07, 0x06, // bsr FeedWatchdog

		// Loop until TC (Transmit Complete) bit is set
		0x1F, regBlockH, 0xCC, 0x40, 0xF9, // brclr $xxCC,$40,TxBusy   ; SC1SR1
		0x3D,                              // rts

		// FeedWatchdog:
		0xCC, 0x55, 0xAA,      // ldd #$55AA
		0x7B, regBlockH, 0x17, // stab $xx17   ; COPRST
		0x7A, regBlockH, 0x17, // staa $xx17   ; COPRST
		0x3D,                  // rts
	}
}
