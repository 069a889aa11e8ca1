package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rieriver/sextsieve/internal/utils"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := utils.GetInfo()
		fmt.Printf("sextsieve %s\n", orUnknown(info.Version))
		fmt.Printf("  build date: %s\n", orUnknown(info.BuildDate))
		fmt.Printf("  git commit: %s\n", orUnknown(info.GitCommit))
		fmt.Printf("  go version: %s\n", orUnknown(info.GoVersion))
	},
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
