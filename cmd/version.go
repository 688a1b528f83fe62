package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lulu_studio/core"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lulu %s\n", core.GetVersionInfo())
	},
}
