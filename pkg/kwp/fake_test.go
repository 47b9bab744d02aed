package kwp

// fakeLink simulates a K-line interface. rx holds what the module sends,
// in the order the tester reads it. Every written byte is echoed in front of
// rx the way the single wire K-line echoes the tester's own bytes.
type fakeLink struct {
	rx     []byte
	tx     []byte
	breaks []bool // true = break on (TxD low)
	clears int
	noEcho bool
}

func newFakeLink(s *script) *fakeLink {
	l := &fakeLink{}
	if s != nil {
		l.rx = append(l.rx, s.b...)
	}
	return l
}

func (l *fakeLink) ReadByte() (byte, error) {
	if len(l.rx) == 0 {
		return 0, ErrTimeout
	}
	b := l.rx[0]
	l.rx = l.rx[1:]
	return b, nil
}

func (l *fakeLink) WriteRawByte(b byte) error {
	l.tx = append(l.tx, b)
	if !l.noEcho {
		l.rx = append([]byte{b}, l.rx...)
	}
	return nil
}

func (l *fakeLink) SetBreakOn() error {
	l.breaks = append(l.breaks, true)
	return nil
}

func (l *fakeLink) SetBreakOff() error {
	l.breaks = append(l.breaks, false)
	return nil
}

// ClearReceiveBuffer keeps rx: the script only holds bytes the module sends after the wakeup
func (l *fakeLink) ClearReceiveBuffer() error {
	l.clears++
	return nil
}

// script builds the byte stream a module sends during a dialog
type script struct {
	b []byte
}

func newScript() *script { return &script{} }

func (s *script) raw(b ...byte) *script {
	s.b = append(s.b, b...)
	return s
}

// sends adds a block sent by the module
func (s *script) sends(counter byte, title BlockTitle, payload ...byte) *script {
	s.b = append(s.b, byte(len(payload)+3), counter, byte(title))
	s.b = append(s.b, payload...)
	s.b = append(s.b, BlockEnd)
	return s
}

// acks adds the module's complements for a block the tester sends
func (s *script) acks(counter byte, body ...byte) *script {
	raw := append([]byte{byte(len(body) + 2), counter}, body...)
	for _, b := range raw {
		s.b = append(s.b, ^b)
	}
	return s
}

// wakeup adds the KW1281 sync and keyword bytes
func (s *script) wakeup() *script {
	return s.raw(SyncByte, 0x01, 0x8A)
}

// testDialog returns a dialog whose block counter is already at counter
func testDialog(s *script, counter byte) (*Dialog, *fakeLink) {
	l := newFakeLink(s)
	d := NewDialog(l)
	d.p.common.BitTime = 0
	d.p.counter = counter
	d.p.counterSet = true
	return d, l
}
