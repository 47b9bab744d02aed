package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/speters/kw1281/pkg/cluster"
	"github.com/speters/kw1281/pkg/kwp"
)

// lineLink is a K-line with a module that answered the wakeup with a single ACK
// block and acknowledges one more block. Written bytes are echoed.
type lineLink struct {
	rx []byte
	tx []byte
}

func (l *lineLink) ReadByte() (byte, error) {
	if len(l.rx) == 0 {
		return 0, kwp.ErrTimeout
	}
	b := l.rx[0]
	l.rx = l.rx[1:]
	return b, nil
}

func (l *lineLink) WriteRawByte(b byte) error {
	l.tx = append(l.tx, b)
	l.rx = append([]byte{b}, l.rx...)
	return nil
}

func (l *lineLink) SetBreakOn() error         { return nil }
func (l *lineLink) SetBreakOff() error        { return nil }
func (l *lineLink) ClearReceiveBuffer() error { return nil }

var endBlock = []byte{0x03, 0x02, byte(kwp.End), kwp.BlockEnd}

func testSession(t *testing.T) (*session, *lineLink) {
	l := &lineLink{rx: []byte{
		kwp.SyncByte, 0x01, 0x8A, // KW1281
		0x03, 0x01, byte(kwp.ACK), kwp.BlockEnd,
		^byte(0x03), ^byte(0x02), ^byte(kwp.End),
	}}
	d := kwp.NewDialog(l)
	d.Protocol().Common().BitTime = 0
	info, err := d.WakeUp(0x01, false)
	if err != nil {
		t.Fatalf("WakeUp() error = %v", err)
	}
	l.tx = nil
	return &session{d: d, info: info}, l
}

func TestSessionEnd(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		sendEnd bool
	}{
		{"success", nil, true},
		{"unsupported cluster", cluster.ErrUnsupportedVariant, true},
		{"refused read", &kwp.ReadRefusedError{Address: 0x0001}, true},
		{"unexpected block count", &kwp.UnexpectedBlockCountError{Operation: "ReadEeprom", Count: 0}, true},
		{"file not written", &localError{err: os.ErrPermission}, true},
		{"timeout", kwp.ErrTimeout, false},
		{"desync", &kwp.CounterDesyncError{Expected: 0x02, Actual: 0x05}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, l := testSession(t)
			err := s.end(tt.err)
			if !errors.Is(err, tt.err) {
				t.Errorf("end() = %v, want %v", err, tt.err)
			}
			if tt.sendEnd && !bytes.Equal(l.tx, endBlock) {
				t.Errorf("tx = % X, want End block % X", l.tx, endBlock)
			}
			if !tt.sendEnd && len(l.tx) != 0 {
				t.Errorf("End sent after a fatal error: % X", l.tx)
			}
		})
	}
}

func TestPrintByteRefused(t *testing.T) {
	err := printByte(0x0001, []byte{}, nil)
	var refused *kwp.ReadRefusedError
	if !errors.As(err, &refused) || refused.Address != 0x0001 {
		t.Fatalf("printByte() error = %v, want ReadRefusedError", err)
	}
	if kwp.IsFatal(err) {
		t.Errorf("IsFatal() = true for a refused read")
	}
}

func TestSaveDump(t *testing.T) {
	dir := t.TempDir()

	name := filepath.Join(dir, "part.bin")
	refused := &kwp.ReadRefusedError{Address: 0x0002}
	if err := saveDump(name, []byte{0x01, 0x02}, refused); !errors.Is(err, refused) {
		t.Errorf("saveDump() error = %v, want %v", err, refused)
	}
	if b, err := os.ReadFile(name); err != nil || !bytes.Equal(b, []byte{0x01, 0x02}) {
		t.Errorf("partial dump = % X, %v", b, err)
	}

	err := saveDump(filepath.Join(dir, "missing", "x.bin"), []byte{0x01}, nil)
	if err == nil || kwp.IsFatal(err) {
		t.Errorf("saveDump() into a missing directory = %v, want a non fatal error", err)
	}

	if err := saveDump(name, nil, kwp.ErrTimeout); !errors.Is(err, kwp.ErrTimeout) {
		t.Errorf("saveDump() error = %v, want ErrTimeout", err)
	}
}

func TestParseArgsBeforeWakeup(t *testing.T) {
	if err := readEepromCmd.PreRunE(readEepromCmd, []string{"$10000"}); err == nil {
		t.Errorf("readeeprom $10000 accepted")
	}
	customRead = true
	defer func() { customRead = false }()
	if err := readRomCmd.PreRunE(readRomCmd, []string{"$123456"}); err != nil || readAddr != 0x123456 {
		t.Errorf("readrom --custom $123456: addr 0x%X, error %v", readAddr, err)
	}
	if err := dumpMarelliCmd.PreRunE(dumpMarelliCmd, []string{"$3800", "$800", "out.bin"}); err != nil {
		t.Fatalf("dumpmarelli PreRunE() error = %v", err)
	}
	if *marelliAddress != 0x3800 || *marelliCount != 0x800 || marelliFile != "out.bin" {
		t.Errorf("dumpmarelli args = 0x%X 0x%X %s", *marelliAddress, *marelliCount, marelliFile)
	}
}
