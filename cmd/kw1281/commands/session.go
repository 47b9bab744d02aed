package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/speters/kw1281/pkg/kwp"
	"github.com/spf13/cobra"
)

// session is one woken up module
type session struct {
	d    *kwp.Dialog
	info kwp.ModuleInfo
}

// controllerAddress parses the -a flag, which is hex like on the workshop testers
func controllerAddress(s string) (byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(s, "$"), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid controller address %q", s)
	}
	if v > 0x7F {
		return 0, fmt.Errorf("controller address $%02X does not fit in 7 bits", v)
	}
	return byte(v), nil
}

func connect() (*kwp.Device, error) {
	if connTo == "" {
		return nil, errors.New("need connection string in -c option")
	}
	cfg := kwp.DefaultConfig(connTo)
	cfg.Baud = baud
	cfg.ReadTimeout = readTimeout

	dev := kwp.NewDevice(cfg)
	if err := dev.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %v: %w", connTo, err)
	}
	return dev, nil
}

func wakeUp(link kwp.Link) (*session, error) {
	addr, err := controllerAddress(address)
	if err != nil {
		return nil, err
	}
	d := kwp.NewDialog(link)
	info, err := d.WakeUp(addr, evenParity)
	if err != nil {
		return nil, err
	}
	return &session{d: d, info: info}, nil
}

// end closes the dialog unless err left the session in an unknown state
func (s *session) end(err error) error {
	if err != nil && kwp.IsFatal(err) {
		return err
	}
	if endErr := s.d.EndCommunication(); endErr != nil {
		log.Errorf("EndCommunication: %v", endErr)
		if err == nil {
			return endErr
		}
	}
	return err
}

// withSession connects, wakes the module, runs run and ends the dialog
func withSession(run func(s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dev, err := connect()
		if err != nil {
			return err
		}
		defer dev.Close()

		s, err := wakeUp(dev)
		if err != nil {
			return err
		}
		return s.end(run(s, args))
	}
}

// parseUint parses a decimal or hex argument no larger than limit
func parseUint(s string, limit uint32) (uint32, error) {
	v, err := kwp.ParseUint(s)
	if err != nil {
		return 0, err
	}
	if v > limit {
		return 0, fmt.Errorf("%s exceeds $%X", s, limit)
	}
	return v, nil
}

func parseAddress(s string) (uint16, error) {
	v, err := parseUint(s, 0xFFFF)
	return uint16(v), err
}

func parseLength(s string) (int, error) {
	v, err := parseUint(s, 0x10000)
	if err == nil && v == 0 {
		err = fmt.Errorf("length %s must not be 0", s)
	}
	return int(v), err
}

// localError is a failure on this side after the module answered, the
// session is still usable
type localError struct {
	err error
}

func (e *localError) Error() string     { return e.err.Error() }
func (e *localError) Unwrap() error     { return e.err }
func (e *localError) Recoverable() bool { return true }
