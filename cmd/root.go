// Package cmd implements the lulu command line: the web studio server and
// one-shot generate, enhance, upscale and history commands.
package cmd

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lulu_studio/core"
)

var (
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lulu",
	Short: "Lulu AI - an image studio backed by generative models",
	Long: "Lulu AI turns prompts into images, enhances prompts, upscales results\n" +
		"to 4K and keeps a history of everything generated.\n\n" +
		"Run 'lulu serve' for the web studio, or use the commands below directly.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvironment,
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return core.ExitCodeSuccess
	}
	code := exitCode(err)
	printError(rootCmd.ErrOrStderr(), err)
	if verbose {
		detail := core.ExitCodeName(code)
		if errCode := core.GetErrorCode(err); errCode != "" {
			detail += ", " + errCode
		}
		dimColor.Fprintf(rootCmd.ErrOrStderr(), "exit %d (%s)\n", code, detail)
	}
	return code
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show log output on the terminal")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(enhanceCmd)
	rootCmd.AddCommand(upscaleCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(optionsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadEnvironment loads the env file. Variables already set win, and a
// missing file is fine: the environment alone is a valid configuration.
func loadEnvironment(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return withExitCode(core.ExitCodeConfig, core.ErrConfigFile(envFile, err))
	}
	return nil
}
