package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const banner = `
  ____  _    __     __          _ _
 |  _ \(_)_ _\ \   / /_ _ _   _| | |_
 | |_) | | '_ \ \ / / _` + "`" + ` | | | | | __|
 |  __/| | | | \ V / (_| | |_| | | |_
 |_|   |_|_| |_|\_/ \__,_|\__,_|_|\__|

`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Local Media Vault - Version %s\x1b[0m\n\n", Version)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		printBanner(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
