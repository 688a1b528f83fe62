package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"lulu_studio/core"
	"lulu_studio/core/validation"
)

var (
	doctorOffline  bool
	doctorTimeout  time.Duration
	doctorFailFast bool
	doctorQuiet    bool
	doctorMinFree  int64
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration, storage and provider connectivity",
	Long: `Check that the studio is ready to run: configuration sources, provider
credentials, generation defaults, the data directory, free disk space and
whether the provider endpoint answers.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip the provider endpoint check")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "Timeout for the endpoint check")
	doctorCmd.Flags().BoolVar(&doctorFailFast, "fail-fast", false, "Stop at the first failed check")
	doctorCmd.Flags().BoolVarP(&doctorQuiet, "quiet", "q", false, "Print only the result")
	doctorCmd.Flags().Int64Var(&doctorMinFree, "min-free-mb", validation.MinFreeBytes/core.BytesPerMB, "Warn when less disk space than this is free")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	suite := validation.NewValidationSuite(cfg).
		WithOutput(cmd.OutOrStdout()).
		WithEnvPath(envFile).
		WithTimeout(doctorTimeout).
		WithFailFast(doctorFailFast).
		WithShowProgress(!doctorQuiet).
		WithMinFreeBytes(doctorMinFree * core.BytesPerMB)

	var result validation.SuiteResult
	if doctorOffline {
		result = suite.ValidateQuick()
	} else {
		result = suite.Validate(cmd.Context())
	}
	if !result.Success {
		return suiteError(result)
	}
	if doctorQuiet {
		printSuccess(cmd.OutOrStdout(), "%s", result.Summary())
	}
	return nil
}

// suiteError turns a failed validation run into an error exiting with
// ExitCodeConfig.
func suiteError(result validation.SuiteResult) error {
	err := result.GetFirstError()
	if err == nil {
		err = errors.New(result.Summary())
	}
	return withExitCode(core.ExitCodeConfig, err)
}
