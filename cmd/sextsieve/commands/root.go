package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rieriver/sextsieve/internal/utils"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "sextsieve",
	Short: "Parallel prime-sextuplet sieve and verification engine",
	Long: `sextsieve searches for prime sextuplets against a Riecoin-style block
target: a wheel-factorized segmented sieve narrows the search space, a
Fermat base-2 test verifies what survives, and found candidates are
submitted back to a node over JSON-RPC.`,
	Version: utils.GetInfo().Version,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config file")

	rootCmd.SetVersionTemplate(`sextsieve {{.Version}}
Parallel prime-sextuplet sieve and verification engine
`)
}
