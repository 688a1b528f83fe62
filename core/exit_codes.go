package core

// Exit codes for the lulu binary.
// Signal-based exits follow the Unix convention of 128 + signal number.
const (
	// ExitCodeSuccess indicates a clean run (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates an unclassified failure (exit code 1)
	ExitCodeError = 1

	// ExitCodeConfig indicates the configuration could not be loaded or is incomplete
	ExitCodeConfig = 2

	// ExitCodeGeneration indicates the remote model call failed
	ExitCodeGeneration = 3

	// ExitCodeElevatedAccess indicates the operation needs a paid API key
	ExitCodeElevatedAccess = 4

	// ExitCodeSIGINT indicates termination due to SIGINT (128 + 2)
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM (128 + 15)
	ExitCodeSIGTERM = 143
)

// ExitCodeName names an exit code for diagnostics.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeGeneration:
		return "generation failed"
	case ExitCodeElevatedAccess:
		return "elevated access required"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}
