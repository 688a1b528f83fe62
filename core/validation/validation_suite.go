package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"lulu_studio/core"
	"lulu_studio/db"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus is how a validation step ended.
type StepStatus int

const (
	StepPassed StepStatus = iota
	StepWarning
	StepFailed
	StepSkipped
)

var stepStyles = map[StepStatus]struct {
	name  string
	icon  string
	color *color.Color
}{
	StepPassed:  {"passed", "✓", color.New(color.FgGreen)},
	StepWarning: {"warning", "!", color.New(color.FgYellow)},
	StepFailed:  {"failed", "✗", color.New(color.FgRed)},
	StepSkipped: {"skipped", "○", color.New(color.FgHiBlack)},
}

func (s StepStatus) String() string {
	if style, ok := stepStyles[s]; ok {
		return style.name
	}
	return "unknown"
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// ValidationSuite runs the checks in order with colored progress output.
type ValidationSuite struct {
	output       io.Writer
	cfg          *core.Config
	config       *ConfigValidator
	connectivity *ConnectivityChecker
	minFreeBytes int64
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a suite for cfg.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		output: os.Stdout,
		cfg:    cfg,
		config: NewConfigValidator(cfg),
		connectivity: NewConnectivityChecker().
			WithAllowSelfSignedCerts(cfg.AllowSelfSignedCerts),
		minFreeBytes: MinFreeBytes,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout sets the timeout of the endpoint check.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.connectivity.WithTimeout(timeout)
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithEnvPath sets a custom path for the .env file.
func (s *ValidationSuite) WithEnvPath(path string) *ValidationSuite {
	s.config.WithEnvPath(path)
	return s
}

// WithMinFreeBytes sets the free space below which the disk check warns.
func (s *ValidationSuite) WithMinFreeBytes(n int64) *ValidationSuite {
	s.minFreeBytes = n
	return s
}

type check struct {
	name string
	fn   func() ValidationResult
}

func (s *ValidationSuite) offlineChecks() []check {
	checks := []check{
		{"Configuration Sources", s.config.CheckConfigSources},
		{"Provider Credentials", s.config.CheckCredentials},
		{"Generation Defaults", s.config.CheckDefaults},
		{"Data Directory", s.config.CheckDataDir},
		{"Disk Space", s.checkDiskSpace},
	}
	if s.cfg.StorageBackend == core.StorageSQLite {
		checks = append(checks, check{"History Database", s.checkDatabase})
	}
	return checks
}

// Validate runs every check including the provider endpoint request. The
// endpoint check is skipped when an earlier check failed.
func (s *ValidationSuite) Validate(ctx context.Context) SuiteResult {
	start := time.Now()
	if s.showProgress {
		s.printHeader("Lulu Studio Environment Check")
	}

	steps, stopped := s.runChecks(s.offlineChecks())
	if !stopped {
		var step ValidationStep
		if hasFailure(steps) {
			step = ValidationStep{
				Name:    "Provider Endpoint",
				Status:  StepSkipped,
				Message: "Skipped due to configuration errors",
			}
			if s.showProgress {
				s.printStep(step)
			}
		} else {
			step = s.runStep("Provider Endpoint", func() ValidationResult {
				return s.checkEndpoint(ctx)
			})
		}
		steps = append(steps, step)
	}

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

// ValidateQuick runs the checks that need no network.
func (s *ValidationSuite) ValidateQuick() SuiteResult {
	start := time.Now()
	if s.showProgress {
		s.printHeader("Quick Configuration Check")
	}

	steps, _ := s.runChecks(s.offlineChecks())

	result := buildResult(steps, start)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *ValidationSuite) runChecks(checks []check) ([]ValidationStep, bool) {
	steps := make([]ValidationStep, 0, len(checks)+1)
	for _, c := range checks {
		step := s.runStep(c.name, c.fn)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			return steps, true
		}
	}
	return steps, false
}

func (s *ValidationSuite) checkDiskSpace() ValidationResult {
	usage, err := CheckDiskSpace(s.cfg.DataDir, s.minFreeBytes)
	var low *DiskSpaceError
	switch {
	case errors.As(err, &low):
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: fmt.Sprintf("%s, below the recommended %s", usage, core.FormatBytes(s.minFreeBytes)),
		}
	case err != nil:
		return ValidationResult{Message: "Cannot read disk space", Error: err}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%s (%.0f%% used)", usage, usage.UsedPercent())}
}

// checkDatabase reads the schema version of the sqlite history store.
// Older schemas are migrated when the studio next opens the database.
func (s *ValidationSuite) checkDatabase() ValidationResult {
	path := s.cfg.DatabasePath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ValidationResult{Valid: true, Message: "Not created yet, created on first run"}
	} else if err != nil {
		return ValidationResult{Message: "Cannot access database", Error: err}
	}

	version, dirty, err := db.MigrationVersion(path)
	switch {
	case err != nil:
		return ValidationResult{Message: "Cannot read schema version", Error: err}
	case dirty:
		return ValidationResult{
			Message: fmt.Sprintf("Schema version %d is dirty", version),
			Error:   fmt.Errorf("database %s stopped mid-migration at version %d", path, version),
		}
	case version < db.SchemaVersion:
		return ValidationResult{
			Valid:   true,
			Warning: true,
			Message: fmt.Sprintf("Schema version %d, upgraded to %d on next start", version, db.SchemaVersion),
		}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("Schema version %d", version)}
}

func (s *ValidationSuite) checkEndpoint(ctx context.Context) ValidationResult {
	endpoint := ProviderEndpoint(s.cfg)
	result := s.connectivity.CheckEndpoint(ctx, endpoint)
	msg := fmt.Sprintf("%s: %s", endpoint, result.Message)
	if result.Latency > 0 {
		msg = fmt.Sprintf("%s (latency: %v)", msg, result.Latency.Round(time.Millisecond))
	}
	return ValidationResult{Valid: result.Reachable, Message: msg, Error: result.Error}
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() ValidationResult) ValidationStep {
	if s.showProgress {
		s.printStepStart(name)
	}

	start := time.Now()
	res := fn()
	step := ValidationStep{
		Name:    name,
		Message: res.Message,
		Error:   res.Error,
		Latency: time.Since(start),
	}
	switch {
	case !res.Valid:
		step.Status = StepFailed
	case res.Warning:
		step.Status = StepWarning
	default:
		step.Status = StepPassed
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func hasFailure(steps []ValidationStep) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return true
		}
	}
	return false
}

func buildResult(steps []ValidationStep, start time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(start),
		Success:    true,
	}
	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "\n━━━ %s ━━━\n\n", title)
}

// printStepStart leaves the cursor on the step line; printStep rewrites it.
func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

func (s *ValidationSuite) printStep(step ValidationStep) {
	style := stepStyles[step.Status]
	fmt.Fprint(s.output, "\r")
	style.color.Fprintf(s.output, "  %s %s", style.icon, step.Name)
	if step.Message != "" {
		dim.Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)
	if step.Status == StepFailed && step.Error != nil {
		style.color.Fprintf(s.output, "    └─ %v\n", step.Error)
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	banner := color.New(color.FgGreen, color.Bold)
	detail := fmt.Sprintf("(%d/%d checks passed in %v)",
		result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
	if !result.Success {
		banner = color.New(color.FgRed, color.Bold)
		detail = fmt.Sprintf("(%d passed, %d failed)", result.PassedSteps, result.FailedSteps)
	}
	fmt.Fprintln(s.output)
	banner.Fprintf(s.output, "━━━ Validation %s ", result.verdict())
	dim.Fprint(s.output, detail)
	banner.Fprint(s.output, " ━━━\n\n")
}

var dim = color.New(color.FgHiBlack)

// Err joins the errors of the failed steps, or returns nil.
func (r SuiteResult) Err() error {
	var errs []error
	for _, step := range r.Steps {
		if step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errors.Join(errs...)
}

// GetFirstError returns the first error from failed steps, or nil if all passed.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Error != nil {
			return step.Error
		}
	}
	return nil
}

func (r SuiteResult) verdict() string {
	if r.Success {
		return "Passed"
	}
	return "Failed"
}

// Summary returns a one-line description of the run.
func (r SuiteResult) Summary() string {
	parts := []string{fmt.Sprintf("%d/%d checks passed", r.PassedSteps, r.TotalSteps)}
	if r.FailedSteps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.FailedSteps))
	}
	if r.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", r.Warnings))
	}
	return fmt.Sprintf("Validation %s: %s (took %v)", r.verdict(), strings.Join(parts, ", "), r.Duration.Round(time.Millisecond))
}
