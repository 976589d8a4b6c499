package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/artemis/handoffd/internal/model"
	"github.com/mattn/go-shellwords"
)

// Result is the outcome of running one command: exit status (mapped to the
// pipeline's Status enum), captured output, and measured wall-clock
// duration. This is the Go analogue of remote.py's execute() return tuple.
type Result struct {
	Status   model.Status
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Run splits cmdLine with shell-lexical rules and executes it, capturing
// stdout/stderr as text and enforcing timeout if non-zero. Exit-status
// mapping follows spec.md §6/§7: exit 0 -> StatusOK, non-zero exit ->
// StatusRemoteIO, timeout -> StatusTimeout, anything else -> StatusGenericFailure.
func Run(ctx context.Context, cmdLine string, timeout time.Duration) (Result, error) {
	args, err := shellwords.Parse(cmdLine)
	if err != nil {
		return Result{}, fmt.Errorf("shell: parsing command %q: %w", cmdLine, err)
	}
	if len(args) == 0 {
		return Result{}, fmt.Errorf("shell: empty command")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: duration,
	}

	switch {
	case runErr == nil:
		res.Status = model.StatusOK
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Status = model.StatusTimeout
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.Status = model.StatusRemoteIO
		} else {
			res.Status = model.StatusGenericFailure
			if res.Stderr == "" {
				res.Stderr = runErr.Error()
			}
		}
	}

	return res, nil
}
