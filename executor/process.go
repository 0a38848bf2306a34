package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"

	"github.com/armatrix/agent-delegation-go/subagent"
)

const maxOutputBytes = 30_000

// Process runs a worker's catalog command once per task. The task text and
// worker identity reach the command through DELEGATOR_* environment
// variables. A zero exit status is success.
type Process struct {
	// NoPTY disables the pseudo-terminal, e.g. where none is available.
	NoPTY bool
}

var _ Executor = (*Process)(nil)

// NewProcess creates a process executor.
func NewProcess() *Process { return &Process{} }

// Execute runs def.Command for req.
func (p *Process) Execute(ctx context.Context, def subagent.Definition, req subagent.Request) (*subagent.Result, error) {
	if len(def.Command) == 0 {
		return nil, fmt.Errorf("worker %s has no command", def.ID)
	}

	newCmd := func() *exec.Cmd {
		cmd := exec.CommandContext(ctx, def.Command[0], def.Command[1:]...)
		cmd.Env = append(os.Environ(), cmdEnv(def, req)...)
		return cmd
	}

	var (
		output string
		err    error
	)
	if p.NoPTY {
		output, err = runPlain(newCmd())
	} else {
		output, err = runPTY(newCmd())
		if errors.Is(err, errNoPTY) {
			// Fallback to regular execution if PTY fails
			output, err = runPlain(newCmd())
		}
	}

	if len(output) > maxOutputBytes {
		output = output[:maxOutputBytes] + "\n... [output truncated]"
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return nil, err
		}
	}

	res := &subagent.Result{
		Output:       strings.TrimRight(output, "\n"),
		Collaborated: req.Collaborate,
	}
	if exitCode != 0 {
		res.Failed = true
		res.Warnings = []string{fmt.Sprintf("exit status %d", exitCode)}
	}
	return res, nil
}

func cmdEnv(def subagent.Definition, req subagent.Request) []string {
	return []string{
		"DELEGATOR_WORKER=" + def.ID,
		"DELEGATOR_ROLE=" + string(def.Role),
		"DELEGATOR_TASK=" + req.Task,
		"DELEGATOR_REQUIRED_TOOLS=" + strings.Join(req.RequiredTools, ","),
		"DELEGATOR_PRIORITY=" + string(req.Priority),
	}
}

var errNoPTY = errors.New("pty unavailable")

func runPTY(cmd *exec.Cmd) (string, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errNoPTY, err)
	}
	defer ptmx.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, ptmx) // PTY read returns EIO on process exit, ignore

	waitErr := cmd.Wait()
	return strings.ReplaceAll(buf.String(), "\r\n", "\n"), waitErr
}

func runPlain(cmd *exec.Cmd) (string, error) {
	out, err := cmd.CombinedOutput()
	return string(out), err
}
