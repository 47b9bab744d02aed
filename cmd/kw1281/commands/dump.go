package commands

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/speters/kw1281/pkg/kwp"
	"github.com/spf13/cobra"
)

var (
	mapLength  string
	dumpStart  uint16
	dumpLength int
	dumpFile   string
)

var dumpEepromCmd = &cobra.Command{
	Use:   "dumpeeprom START LENGTH [FILENAME]",
	Short: "dumps EEPROM to a file",
	Args:  cobra.RangeArgs(2, 3),
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if dumpStart, err = parseAddress(args[0]); err != nil {
			return err
		}
		if dumpLength, err = parseLength(args[1]); err != nil {
			return err
		}
		dumpFile = fmt.Sprintf("eeprom_%04X.bin", dumpStart)
		if len(args) > 2 {
			dumpFile = args[2]
		}
		return nil
	},
	RunE: withSession(func(s *session, args []string) error {
		mem, err := s.d.DumpEeprom(dumpStart, dumpLength, kwp.DefaultChunkSize)
		return saveDump(dumpFile, mem, err)
	}),
}

var mapEepromCmd = &cobra.Command{
	Use:   "mapeeprom [FILENAME]",
	Short: "dumps EEPROM from address 0, unreadable areas as zeros",
	Args:  cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if dumpLength, err = parseLength(mapLength); err != nil {
			return err
		}
		dumpFile = "eeprom_map.bin"
		if len(args) > 0 {
			dumpFile = args[0]
		}
		return nil
	},
	RunE: withSession(func(s *session, args []string) error {
		mem, err := s.d.MapEeprom(dumpLength)
		return saveDump(dumpFile, mem, err)
	}),
}

// saveDump writes what was read, also when the module stopped answering part way
func saveDump(filename string, mem []byte, dumpErr error) error {
	var refused *kwp.ReadRefusedError
	if dumpErr != nil && !errors.As(dumpErr, &refused) {
		return dumpErr
	}
	if len(mem) == 0 {
		if dumpErr != nil {
			return dumpErr
		}
		return &localError{err: errors.New("nothing read")}
	}

	log.Infof("Saving %d bytes to %s", len(mem), filename)
	if err := os.WriteFile(filename, mem, 0o644); err != nil {
		return &localError{err: err}
	}
	return dumpErr
}
