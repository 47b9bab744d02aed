package kwp

import "testing"

func TestDump(t *testing.T) {
	if got := Dump([]byte{0x01, 0x8A, 0xFF}); got != " 01 8A FF" {
		t.Errorf("Dump() = %q", got)
	}
	if got := Dump(nil); got != "" {
		t.Errorf("Dump(nil) = %q", got)
	}
}

func TestDumpMixedContent(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("VDO"), "VDO"},
		{[]byte{0x01, 0x02}, "$01 $02"},
		{[]byte{'V', '0', 0x01, 'D'}, "V0 $01 D"},
		{[]byte{0x00, 'A', 'B'}, "$00 AB"},
	}
	for _, tt := range tests {
		if got := DumpMixedContent(tt.in); got != tt.want {
			t.Errorf("DumpMixedContent(% X) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"4361", 4361, false},
		{"$1109", 0x1109, false},
		{"0x1109", 0x1109, false},
		{" 17 ", 17, false},
		{"$", 0, true},
		{"12a", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseUint(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUint(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUint(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBlockText(t *testing.T) {
	b := newBlock(0x06, 0x01, AsciiData, []byte{'1', 'J', 'A' | 0x80})
	if b.Text() != "1JA" {
		t.Errorf("Text() = %q, want %q", b.Text(), "1JA")
	}
	if b.IsAckNak() {
		t.Errorf("AsciiData block reported as Ack/Nak")
	}
}
