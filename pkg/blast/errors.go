package blast

import (
	"errors"

	"github.com/yumyai/strainmodel/internal/command"
)

var (
	ErrLockTimeout = errors.New("timed out waiting for database lock")
	ErrToolFailed  = command.ErrFailed
)

// ToolError carries the full output of a failed BLAST command.
type ToolError = command.Error
