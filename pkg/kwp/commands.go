package kwp

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DefaultChunkSize is the number of bytes requested per read block
const DefaultChunkSize = 16

// ReadRefusedError is returned when the module answers a read with NAK,
// e.g. by chunked reads part way through. The session stays usable.
type ReadRefusedError struct {
	Address uint32
}

func (e *ReadRefusedError) Error() string {
	return fmt.Sprintf("module refused read at 0x%04X", e.Address)
}

// DumpEeprom reads length bytes of EEPROM starting at address in chunks of chunkSize.
// On a refused chunk the bytes read so far are returned together with a ReadRefusedError.
func (d *Dialog) DumpEeprom(address uint16, length int, chunkSize byte) ([]byte, error) {
	return d.dump(d.ReadEeprom, address, length, chunkSize)
}

// DumpRomEeprom is DumpEeprom using ReadRomEeprom blocks
func (d *Dialog) DumpRomEeprom(address uint16, length int, chunkSize byte) ([]byte, error) {
	return d.dump(d.ReadRomEeprom, address, length, chunkSize)
}

// MapEeprom probes length bytes of EEPROM from address 0. Areas the module
// refuses to read show up as zeros.
func (d *Dialog) MapEeprom(length int) ([]byte, error) {
	policy := d.NakPolicy
	d.NakPolicy = NakZeroFill
	defer func() { d.NakPolicy = policy }()

	return d.DumpEeprom(0, length, DefaultChunkSize)
}

func (d *Dialog) dump(read func(byte, uint16) ([]byte, error), address uint16, length int, chunkSize byte) ([]byte, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	mem := make([]byte, 0, length)
	addr := address
	for remainder := length; remainder > 0; remainder -= int(chunkSize) {
		count := chunkSize
		if remainder < int(chunkSize) {
			count = byte(remainder)
		}

		b, err := read(count, addr)
		if err != nil {
			return mem, err
		}
		if len(b) == 0 {
			log.Warnf("Unable to read 0x%04X, stopping", addr)
			return mem, &ReadRefusedError{Address: uint32(addr)}
		}
		if len(b) != int(count) {
			log.Warnf("Requested %d bytes at 0x%04X, received %d", count, addr, len(b))
		}
		mem = append(mem, b...)

		addr += uint16(chunkSize)
	}
	return mem, nil
}
