package commands

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version   string
	BuildDate string
)

var (
	connTo      string
	baud        int
	address     string
	evenParity  bool
	readTimeout time.Duration
	verbose     bool
	cpuprofile  string
	memprofile  string
)

var rootCmd = &cobra.Command{
	Use:   "kw1281",
	Short: "kw1281 talks to VW/Audi modules over the K-line",
	Long: `kw1281 wakes a module with the 5 baud address, then runs one KW1281
command. Numbers may be given in decimal (4361) or hex ($1109, 0x1109).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.SetFormatter(&log.TextFormatter{
				FullTimestamp: true,
			})
		}
		return startProfiling()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		stopProfiling()
	},
}

func Execute() {
	// parse flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&connTo, "connect", "c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection")
	pf.IntVarP(&baud, "baud", "b", 10400, "baud rate of the module, e.g. 10400 or 9600")
	pf.StringVarP(&address, "address", "a", "01", "controller address in hex, e.g. 01 (ECU), 17 (cluster), 46 (CCM), 56 (radio)")
	pf.BoolVar(&evenParity, "even-parity", false, "send the 5 baud address with even parity")
	pf.DurationVar(&readTimeout, "timeout", 5*time.Second, "timeout for every byte read")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	pf.StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	pf.StringVar(&memprofile, "memprofile", "", "write memory profile to `file`")

	readRomCmd.Flags().BoolVar(&customRead, "custom", false, "use the vendor read command with 24 bit addresses")
	mapEepromCmd.Flags().StringVar(&mapLength, "length", "$800", "number of bytes to probe")
	dumpMarelliCmd.Flags().StringVar(&variantFile, "variants", "", "xml `file` with additional Marelli cluster variants")
	serveCmd.Flags().StringVarP(&httpServe, "listen", "s", ":8080", "start http server at [bindtohost][:]port")

	// add commands
	rootCmd.AddCommand(
		readIdentCmd,
		readEepromCmd,
		readRomCmd,
		readSoftwareVersionCmd,
		dumpEepromCmd,
		mapEepromCmd,
		dumpMarelliCmd,
		findKeyCmd,
		resetCmd,
		serveCmd,
		versionCmd,
	)

	// execute
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		stopProfiling()
		os.Exit(1)
	}
}
