package commands

import (
	"fmt"

	"github.com/speters/kw1281/pkg/kwp"
	"github.com/spf13/cobra"
)

var (
	customRead bool
	readAddr   uint32
)

var readIdentCmd = &cobra.Command{
	Use:   "readident",
	Short: "prints the identification of the module",
	Args:  cobra.NoArgs,
	RunE: withSession(func(s *session, args []string) error {
		ident, err := s.d.ReadIdent()
		if err != nil {
			return err
		}
		fmt.Printf("Info:  %v\nIdent: %v\n", s.info, ident)
		return nil
	}),
}

var readEepromCmd = &cobra.Command{
	Use:   "readeeprom ADDRESS",
	Short: "reads one byte of EEPROM",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		readAddr, err = parseUint(args[0], 0xFFFF)
		return err
	},
	RunE: withSession(func(s *session, args []string) error {
		b, err := s.d.ReadEeprom(1, uint16(readAddr))
		return printByte(readAddr, b, err)
	}),
}

var readRomCmd = &cobra.Command{
	Use:   "readrom ADDRESS",
	Short: "reads one byte of ROM",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		limit := uint32(0xFFFF)
		if customRead {
			limit = 0xFFFFFF
		}
		readAddr, err = parseUint(args[0], limit)
		return err
	},
	RunE: withSession(func(s *session, args []string) error {
		if !customRead {
			b, err := s.d.ReadRomEeprom(1, uint16(readAddr))
			return printByte(readAddr, b, err)
		}
		if err := s.d.CustomUnlockAdditionalCommands(); err != nil {
			return err
		}
		b, err := s.d.CustomReadRom(1, readAddr)
		return printByte(readAddr, b, err)
	}),
}

var readSoftwareVersionCmd = &cobra.Command{
	Use:   "readsoftwareversion",
	Short: "prints the firmware version of VDO clusters",
	Args:  cobra.NoArgs,
	RunE: withSession(func(s *session, args []string) error {
		if err := s.d.CustomUnlockAdditionalCommands(); err != nil {
			return err
		}
		blocks, err := s.d.CustomReadSoftwareVersion()
		if err != nil {
			return err
		}
		for _, b := range blocks {
			fmt.Println(b.Text())
		}
		return nil
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "reboots the module",
	Args:  cobra.NoArgs,
	RunE: withSession(func(s *session, args []string) error {
		if err := s.d.CustomUnlockAdditionalCommands(); err != nil {
			return err
		}
		if err := s.d.CustomReset(); err != nil {
			return err
		}
		// the module is gone, it will not see an End block
		s.d.MarkNonResumable()
		return nil
	}),
}

// printByte prints the result of a single byte read, a NAK leaves b empty
func printByte(addr uint32, b []byte, err error) error {
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return &kwp.ReadRefusedError{Address: addr}
	}
	fmt.Printf("Address $%04X: Value $%02X\n", addr, b[0])
	return nil
}
