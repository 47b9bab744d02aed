package kwp

import (
	log "github.com/sirupsen/logrus"
)

// NakPolicy selects what a read returns when the module answers with NAK
type NakPolicy int

const (
	// NakEmpty returns an empty result, the usual "not permitted" answer
	NakEmpty NakPolicy = iota
	// NakZeroFill returns count zero bytes so that address maps keep their layout
	NakZeroFill
)

// Dialog manages a command dialog with a VW module using the KW1281 protocol
type Dialog struct {
	p *Protocol

	// NakPolicy applies to ReadEeprom, ReadRomEeprom and CustomReadRom
	NakPolicy NakPolicy

	closed bool
}

// NewDialog creates a dialog over link
func NewDialog(link Link) *Dialog {
	return &Dialog{p: NewProtocol(NewCommon(link))}
}

// NewDialogWithProtocol creates a dialog over an existing block layer
func NewDialogWithProtocol(p *Protocol) *Dialog {
	return &Dialog{p: p}
}

// Protocol returns the block layer of d
func (d *Dialog) Protocol() *Protocol {
	return d.p
}

// Common returns the byte layer, used by sub-protocols running inside a block exchange
func (d *Dialog) Common() ByteChannel {
	return d.p.Common()
}

// WakeUp wakes the module and collects the identification it sends unasked
func (d *Dialog) WakeUp(controllerAddress byte, evenParity bool) (ModuleInfo, error) {
	d.closed = false
	if _, err := d.p.WakeUp(controllerAddress, evenParity); err != nil {
		return ModuleInfo{}, err
	}
	blocks, err := d.p.ReceiveBlocks()
	if err != nil {
		return ModuleInfo{}, err
	}
	info := ModuleInfo{Text: asciiText(blocks)}
	log.Infof("Module info: %v", info)
	return info, nil
}

// ReadIdent asks the module for its identification
func (d *Dialog) ReadIdent() (ModuleIdent, error) {
	log.Infof("Sending ReadIdent block")
	blocks, err := d.exchange([]byte{byte(ReadIdent)})
	if err != nil {
		return ModuleIdent{}, err
	}
	return ModuleIdent{Text: asciiText(blocks)}, nil
}

// Login authenticates with a login code and workshop code
func (d *Dialog) Login(code uint16, workshopCode uint32) error {
	log.Infof("Sending Login block")
	blocks, err := d.exchange([]byte{
		byte(Login),
		byte(code >> 8),
		byte(code),
		byte(workshopCode >> 16),
		byte(workshopCode >> 8),
		byte(workshopCode),
	})
	if err != nil {
		return err
	}
	if blocks[len(blocks)-1].Kind == KindNak {
		return ErrLoginRejected
	}
	if data := filterData(blocks); len(data) != 0 {
		return &UnexpectedBlockCountError{Operation: "Login", Count: len(data)}
	}
	return nil
}

// ReadEeprom reads count bytes of EEPROM at address
func (d *Dialog) ReadEeprom(count byte, address uint16) ([]byte, error) {
	log.Infof("Sending ReadEeprom block (Count: 0x%02X, Address: 0x%04X)", count, address)
	return d.read("ReadEeprom", int(count), []byte{
		byte(ReadEeprom),
		count,
		byte(address >> 8),
		byte(address),
	})
}

// ReadRomEeprom reads count bytes of ROM or EEPROM at address
func (d *Dialog) ReadRomEeprom(count byte, address uint16) ([]byte, error) {
	log.Infof("Sending ReadRomEeprom block (Count: 0x%02X, Address: 0x%04X)", count, address)
	return d.read("ReadRomEeprom", int(count), []byte{
		byte(ReadRomEeprom),
		count,
		byte(address >> 8),
		byte(address),
	})
}

// SendCustom wraps payload into a Custom block and returns all blocks of the answer
func (d *Dialog) SendCustom(payload []byte) ([]Block, error) {
	body := append([]byte{byte(Custom)}, payload...)
	return d.exchange(body)
}

// CustomReadRom reads count bytes at a 24 bit address with the vendor read command
func (d *Dialog) CustomReadRom(count byte, address uint32) ([]byte, error) {
	log.Infof("Sending Custom \"Read ROM\" block (Count: 0x%02X, Address: 0x%06X)", count, address)
	return d.read("CustomReadRom", int(count), []byte{
		byte(Custom),
		0x86,
		count,
		byte(address),
		byte(address >> 8),
		byte(address >> 16),
	})
}

// CustomUnlockAdditionalCommands enables the vendor commands of VDO clusters
func (d *Dialog) CustomUnlockAdditionalCommands() error {
	log.Infof("Sending Custom \"Unlock Additional Commands\" block")
	_, err := d.SendCustom([]byte{0x80, 0x01, 0x02, 0x03, 0x04})
	return err
}

// CustomReadSoftwareVersion returns the blocks describing the firmware version
func (d *Dialog) CustomReadSoftwareVersion() ([]Block, error) {
	log.Infof("Sending Custom \"Read Software Version\" block")
	blocks, err := d.SendCustom([]byte{0x84})
	if err != nil {
		return nil, err
	}
	data := filterData(blocks)
	for _, b := range data {
		log.Infof("Software version: %s", DumpMixedContent(b.Body))
	}
	return data, nil
}

// CustomReset reboots the module
func (d *Dialog) CustomReset() error {
	log.Infof("Sending Custom Reset block")
	_, err := d.SendCustom([]byte{0x82})
	return err
}

// SendBlock sends a raw block without reading the answer
func (d *Dialog) SendBlock(body []byte) error {
	if d.closed {
		return ErrSessionClosed
	}
	return d.p.SendBlock(body)
}

// MarkNonResumable flags the session as taken over by code running on the
// module; no further block, not even End, may be sent
func (d *Dialog) MarkNonResumable() {
	d.closed = true
}

// EndCommunication tells the module the dialog is over. No answer is expected.
func (d *Dialog) EndCommunication() error {
	if d.closed {
		log.Debugf("Session not resumable, skipping EndCommunication")
		return nil
	}
	log.Infof("Sending EndCommunication block")
	return d.p.SendBlock([]byte{byte(End)})
}

func (d *Dialog) exchange(body []byte) ([]Block, error) {
	if d.closed {
		return nil, ErrSessionClosed
	}
	if err := d.p.SendBlock(body); err != nil {
		return nil, err
	}
	return d.p.ReceiveBlocks()
}

// read runs a read-style command whose answer is a single data block
func (d *Dialog) read(op string, count int, body []byte) ([]byte, error) {
	blocks, err := d.exchange(body)
	if err != nil {
		return nil, err
	}
	return d.interpret(op, count, blocks)
}

func (d *Dialog) interpret(op string, count int, blocks []Block) ([]byte, error) {
	if len(blocks) > 0 && blocks[len(blocks)-1].Kind == KindNak {
		log.Warnf("%s: module answered NAK", op)
		if d.NakPolicy == NakZeroFill {
			return make([]byte, count), nil
		}
		return []byte{}, nil
	}
	data := filterData(blocks)
	if len(data) != 1 {
		return nil, &UnexpectedBlockCountError{Operation: op, Count: len(data)}
	}
	return data[0].Body, nil
}
