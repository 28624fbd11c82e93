package pipeline

import (
	"errors"
	"io/fs"

	"github.com/yumyai/strainmodel/config"
	"github.com/yumyai/strainmodel/pkg/fba"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/patch"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitInputError     = 1
	ExitToolFailure    = 2
	ExitBiomassFailure = 101
)

var (
	// ErrBiomassFailure means the model was built but does not grow on the media.
	ErrBiomassFailure = errors.New("model failed to produce biomass")
	// ErrInput marks missing or unusable inputs.
	ErrInput = errors.New("invalid input")
)

var inputErrors = []error{
	ErrInput,
	config.ErrInvalid,
	fba.ErrInvalidSpec,
	patch.ErrInvalid,
	media.ErrUnknown,
	fs.ErrNotExist,
}

// ExitCode maps the error a command returned to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrBiomassFailure) {
		return ExitBiomassFailure
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return ExitInputError
		}
	}
	return ExitToolFailure
}

// Outcome labels a finished run for metrics.
func Outcome(err error) string {
	switch ExitCode(err) {
	case ExitOK:
		return "success"
	case ExitBiomassFailure:
		return "biomass_failure"
	case ExitInputError:
		return "input_error"
	}
	return "tool_failure"
}
