package kwp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Device is the Link implementation for a physical K-line interface, either a
// local serial port or a serial bridge reachable via tcp
type Device struct {
	conn         io.ReadWriteCloser
	r            *bufio.Reader
	rlock, wlock sync.Mutex

	cfg       Config
	brk       breakControl
	connected bool
	isNet     bool
	Done      chan struct{}
}

// breakControl drives the TxD line of a tty independently of its data path
type breakControl interface {
	SetBreak(on bool) error
	Close() error
}

// NewDevice is the factory method to create a new Device
func NewDevice(cfg *Config) *Device {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	return &Device{cfg: *cfg}
}

// Connect attaches to the K-line interface via serial device or a tcp socket
func (o *Device) Connect() error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	u, err := url.Parse(o.cfg.Link)
	if err != nil {
		o.connected = false
		return err
	}

	if (u.Scheme == "socket") || (u.Scheme == "tcp") {
		// Connect via network
		c, err := net.Dial("tcp", u.Host)
		if err != nil {
			return err
		}
		c.(*net.TCPConn).SetKeepAlive(true)
		c.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
		o.conn = c
		o.isNet = true
		o.brk = nil
	} else if (u.Scheme == "file") || (u.Scheme == "") {
		// Connect via serial
		o.conn, err = serial.OpenPort(&serial.Config{
			Name:        u.Path,
			Baud:        o.cfg.Baud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: o.cfg.ReadTimeout,
		})
		if err != nil {
			return err
		}
		o.isNet = false
		o.brk, err = openBreakControl(u.Path)
		if err != nil {
			log.Warnf("No break control on %v, wakeup will not work: %v", u.Path, err)
			o.brk = nil
		}
	} else {
		o.connected = false
		return fmt.Errorf("Can not find a valid connection string in \"%v\"", o.cfg.Link)
	}
	o.connected = true
	o.Done = make(chan struct{})
	o.r = bufio.NewReader(o.conn)

	return nil
}

// Close closes Device, closing underlying connection via serial or network
func (o *Device) Close() error {
	o.rlock.Lock()
	o.wlock.Lock()
	defer o.rlock.Unlock()
	defer o.wlock.Unlock()

	if !o.connected {
		return io.ErrClosedPipe
	}
	select {
	case <-o.Done:
		o.connected = false
		return io.ErrClosedPipe
	default:
	}
	if o.brk != nil {
		o.brk.Close()
	}
	err := o.conn.Close()
	close(o.Done)
	o.connected = false
	return err
}

// ReadByte reads a single byte, waiting at most the configured read timeout
func (o *Device) ReadByte() (byte, error) {
	o.rlock.Lock()
	defer o.rlock.Unlock()
	if !o.connected {
		return 0, io.EOF
	}
	if c, ok := o.conn.(net.Conn); ok && o.r.Buffered() == 0 {
		c.SetReadDeadline(time.Now().Add(o.cfg.ReadTimeout))
	}

	b, err := o.r.ReadByte()
	if err != nil {
		// tarm/serial reports an expired VTIME as a zero length read, which surfaces as io.EOF
		if (!o.isNet && err == io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
			o.r.Reset(o.conn)
			return 0, ErrTimeout
		}
		return 0, err
	}
	log.Debugf("Read b='%#02x'", b)
	return b, nil
}

// WriteRawByte writes b without waiting for its echo
func (o *Device) WriteRawByte(b byte) error {
	o.wlock.Lock()
	defer o.wlock.Unlock()
	if !o.connected {
		return io.EOF
	}
	n, err := o.conn.Write([]byte{b})
	log.Debugf("Write b='%#02x', n=%v, err=%v", b, n, err)
	return err
}

// SetBreakOn pulls TxD low
func (o *Device) SetBreakOn() error {
	return o.setBreak(true)
}

// SetBreakOff releases TxD
func (o *Device) SetBreakOff() error {
	return o.setBreak(false)
}

func (o *Device) setBreak(on bool) error {
	o.wlock.Lock()
	defer o.wlock.Unlock()
	if !o.connected {
		return io.EOF
	}
	if o.brk == nil {
		return ErrBreakUnsupported
	}
	return o.brk.SetBreak(on)
}

// ClearReceiveBuffer drops pending input from the driver and from the local buffer
func (o *Device) ClearReceiveBuffer() error {
	o.rlock.Lock()
	defer o.rlock.Unlock()
	if !o.connected {
		return io.EOF
	}
	if p, ok := o.conn.(*serial.Port); ok {
		if err := p.Flush(); err != nil {
			return err
		}
	}
	o.r.Reset(o.conn)
	return nil
}

// Reconnect device
func (o *Device) Reconnect() error {
	o.Close()
	return o.Connect()
}
