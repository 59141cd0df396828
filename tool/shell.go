package tool

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ShellOptions configures the shell command tool.
type ShellOptions struct {
	// Timeout bounds a single command execution.
	Timeout time.Duration
	// WorkDir is the working directory commands run in.
	WorkDir string
	// MaxOutputBytes caps captured combined output.
	MaxOutputBytes int
}

type shellArgs struct {
	Command string `json:"command" mapstructure:"command" description:"The shell command to execute"`
}

// NewShellTool creates the run_shell_command tool. It executes arbitrary
// commands on the host, so it must only be registered when explicitly enabled
// in configuration for trusted environments.
func NewShellTool(optFns ...func(o *ShellOptions)) Tool {
	opts := ShellOptions{
		Timeout:        60 * time.Second,
		MaxOutputBytes: 64 * 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return NewFunctionToolFromStruct(
		"run_shell_command",
		"Execute a shell command and return its combined output",
		shellArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in shellArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			if strings.TrimSpace(in.Command) == "" {
				return "", &ToolError{
					Tool:    "run_shell_command",
					Message: "command must not be empty",
					Code:    CodeValidationError,
				}
			}

			runCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			cmd := exec.CommandContext(runCtx, "sh", "-c", in.Command)
			if opts.WorkDir != "" {
				cmd.Dir = opts.WorkDir
			}

			out, err := cmd.CombinedOutput()
			if len(out) > opts.MaxOutputBytes {
				out = out[:opts.MaxOutputBytes]
			}
			if err != nil {
				return "", fmt.Errorf("command failed: %w\noutput:\n%s", err, string(out))
			}
			if len(out) == 0 {
				return "(no output)", nil
			}
			return string(out), nil
		},
	)
}
