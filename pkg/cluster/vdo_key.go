package cluster

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	log "github.com/sirupsen/logrus"
)

const (
	seedLength = 10
	keyLength  = 8
)

// InvalidSeedLengthError is returned by FindKey for seeds that are not 10 bytes long
type InvalidSeedLengthError struct {
	Length int
}

func (e *InvalidSeedLengthError) Error() string {
	return fmt.Sprintf("unexpected seed length: %d (expected %d)", e.Length, seedLength)
}

// Recoverable reports that nothing was exchanged with the module
func (e *InvalidSeedLengthError) Recoverable() bool { return true }

// obfuscation table of the VDO cluster firmware
var vdoObfu = [4]byte{0x55, 0x16, 0xA8, 0x94}

// FindKey takes the 10-byte seed block of a VDO cluster and generates the 8-byte key block
func FindKey(seed []byte) ([]byte, error) {
	if len(seed) != seedLength {
		return nil, &InvalidSeedLengthError{Length: len(seed)}
	}
	if seed[8] != 0x01 || seed[9] != 0x00 {
		log.Warnf("Unexpected seed suffix: $%02X $%02X, (expected $01 $00)", seed[8], seed[9])
	}

	k := calculateKey([4]byte{seed[1], seed[3], seed[5], seed[7]})

	key := make([]byte, 0, keyLength)
	return append(key, 0x07, k[0], k[1], 0x00, k[2], 0x00, k[3], 0x00), nil
}

// calculateKey turns the 4 significant seed bytes into the 4 significant key bytes
func calculateKey(seed [4]byte) [4]byte {
	work := [7]byte{0x07, seed[0], seed[1], seed[2], seed[3], 0x00, 0x00}
	obfu := vdoObfu

	scramble(&work)

	y := int(work[1] & 0x07)
	mask := bits.RotateLeft8(0x01, y)
	for i := 0; i <= y; i++ {
		if (obfu[0]^obfu[1]^obfu[2]^obfu[3])&0x40 != 0 {
			obfu[3] |= mask
		} else {
			obfu[3] &^= mask
		}
		// the table is rotated right as one little endian 32 bit word
		w := binary.LittleEndian.Uint32(obfu[:])
		binary.LittleEndian.PutUint32(obfu[:], bits.RotateLeft32(w, -1))
	}

	for x := 0; x < 2; x++ {
		work[5] = work[1]
		work[1] ^= work[3]

		work[6] = work[2]
		work[2] ^= work[4]

		work[4] = work[6]
		work[3] = work[5]

		m := binary.BigEndian.Uint16(work[1:3])
		binary.BigEndian.PutUint16(work[1:3], bits.RotateLeft16(m, int(work[3]&0x07)))

		y := x << 1
		carry := true
		work[1] = subtractWithCarry(work[1], obfu[y], &carry)
		work[2] = subtractWithCarry(work[2], obfu[y+1], &carry)
	}

	scramble(&work)

	return [4]byte{work[1], work[2], work[3], work[4]}
}

func scramble(work *[7]byte) {
	work[5] = work[1]
	work[1] = work[2]
	work[2] = work[4]
	work[4] = work[3]
	work[3] = work[5]
}

// subtractWithCarry mimics the 6800 SBC instruction, carry meaning "no borrow"
func subtractWithCarry(minuend, subtrahend byte, carry *bool) byte {
	if !*carry {
		subtrahend++
	}
	if subtrahend > minuend {
		*carry = false
	}
	return minuend - subtrahend
}
