package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lulu_studio/asset"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List aspect ratios, styles and example prompts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		printHeader(out, "Aspect ratios")
		for _, r := range asset.AspectRatios {
			fmt.Fprintf(out, "  %-5s ", r)
			dimColor.Fprintln(out, r.Label())
		}

		fmt.Fprintln(out)
		printHeader(out, "Styles")
		fmt.Fprintf(out, "  %s ", asset.StyleNone)
		dimColor.Fprintln(out, "(no style prefix)")
		for _, s := range asset.Styles {
			fmt.Fprintf(out, "  %s\n", s)
		}

		fmt.Fprintln(out)
		printHeader(out, "Example prompts")
		for _, p := range asset.PromptExamples {
			fmt.Fprintf(out, "  %s\n", p)
		}
	},
}
