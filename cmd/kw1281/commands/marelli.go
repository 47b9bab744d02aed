package commands

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/speters/kw1281/pkg/cluster"
	"github.com/spf13/cobra"
)

var (
	variantFile    string
	marelliAddress *uint16
	marelliCount   *uint16
	marelliFile    string
	marelliExtra   []cluster.MarelliVariant
)

var dumpMarelliCmd = &cobra.Command{
	Use:   "dumpmarelli [START LENGTH] [FILENAME]",
	Short: "dumps memory of Marelli instrument clusters",
	Long: `dumpmarelli uploads a dump program into Marelli 68HC12 clusters. The
cluster reboots afterwards, the diagnostic session can not be resumed.`,
	Args: cobra.MaximumNArgs(3),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		marelliAddress, marelliCount = nil, nil
		marelliFile = "marelli_mem.bin"
		if len(args) >= 2 {
			a, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			n, err := parseLength(args[1])
			if err != nil {
				return err
			}
			if n > 0xFFFF {
				return fmt.Errorf("length %s exceeds $FFFF", args[1])
			}
			c := uint16(n)
			marelliAddress, marelliCount = &a, &c
			marelliFile = fmt.Sprintf("marelli_mem_%04X.bin", a)
			args = args[2:]
		}
		if len(args) == 1 {
			marelliFile = args[0]
		}

		marelliExtra = nil
		if variantFile != "" {
			variants, err := loadVariants(variantFile)
			if err != nil {
				return err
			}
			marelliExtra = variants
		}
		return nil
	},
	RunE: withSession(func(s *session, args []string) error {
		m := cluster.NewMarelli(s.d)
		m.Variants = append(append([]cluster.MarelliVariant{}, marelliExtra...), m.Variants...)

		mem, err := m.DumpMem(s.info.Text, marelliAddress, marelliCount)
		if len(mem) > 0 {
			log.Infof("Saving %d bytes to %s", len(mem), marelliFile)
			if werr := os.WriteFile(marelliFile, mem, 0o644); werr != nil && err == nil {
				err = &localError{err: werr}
			}
		}
		return err
	}),
}

func loadVariants(filename string) ([]cluster.MarelliVariant, error) {
	xmlFile, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer xmlFile.Close()

	variants, err := cluster.LoadMarelliVariants(xmlFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	log.Infof("%d Marelli variants loaded from %s", len(variants), filename)
	return variants, nil
}
