// Package command runs external programs and keeps their output for error reports.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
)

var ErrFailed = errors.New("external tool failed")

// Error carries the full output of a failed external command.
type Error struct {
	Cmd    string
	Stdout string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to run command: %s: %v", e.Cmd, e.Err)
	if s := strings.TrimSpace(e.Stdout); s != "" {
		fmt.Fprintf(&b, "\nstdout: %s", s)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nstderr: %s", s)
	}
	return b.String()
}

func (e *Error) Unwrap() []error { return []error{ErrFailed, e.Err} }

// Run executes bin and returns stdout. A non-zero exit is an *Error carrying both
// output streams.
func Run(ctx context.Context, bin string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	logger.Debug("Running", zap.String("cmd", bin), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return nil, &Error{
			Cmd:    bin + " " + strings.Join(args, " "),
			Stdout: out.String(),
			Stderr: errOut.String(),
			Err:    err,
		}
	}
	return out.Bytes(), nil
}
