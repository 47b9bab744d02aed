package commands

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/speters/kw1281/pkg/cluster"
	"github.com/speters/kw1281/pkg/kwp"
	"github.com/spf13/cobra"
)

var findKeyCmd = &cobra.Command{
	Use:   "findkey SEED...",
	Short: "computes the login key for a VDO cluster seed",
	Long: `findkey computes the 8 byte key for the 10 byte seed a VDO cluster sends,
given as hex, e.g. "00 12 00 34 00 56 00 78 01 00". No module is contacted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := parseSeed(args)
		if err != nil {
			return err
		}
		key, err := cluster.FindKey(seed)
		if err != nil {
			return err
		}
		fmt.Printf("Seed:%s\nKey: %s\n", kwp.Dump(seed), kwp.Dump(key))
		return nil
	},
}

// parseSeed accepts hex bytes split across any number of arguments, with or without $ prefix
func parseSeed(args []string) ([]byte, error) {
	var sb strings.Builder
	for _, a := range args {
		for _, f := range strings.Fields(a) {
			f = strings.TrimPrefix(f, "$")
			f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
			if len(f)%2 == 1 {
				f = "0" + f
			}
			sb.WriteString(f)
		}
	}
	seed, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return seed, nil
}
