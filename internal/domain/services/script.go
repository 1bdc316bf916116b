package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gitscope/gitscope/internal/domain/ports"
)

// ScriptRunner interprets the line-oriented command language the assistant
// emits. Each line is a command optionally followed by one quoted or bare
// argument; blank lines and # comments are skipped. Execution continues past
// per-line errors, mirroring an interactive shell transcript.
type ScriptRunner struct {
	logger *slog.Logger
}

// NewScriptRunner creates a script runner.
func NewScriptRunner(logger *slog.Logger) *ScriptRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptRunner{logger: logger.With("service", "script")}
}

// Execute runs a script against the given git client and returns the
// accumulated transcript.
func (r *ScriptRunner) Execute(ctx context.Context, git ports.GitClient, script string) string {
	var out strings.Builder

	lines := strings.Split(script, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fmt.Fprintf(&out, "[line %d] %s\n", i+1, line)
		git = r.executeLine(ctx, git, line, &out)
	}

	return out.String()
}

// executeLine dispatches one command. It returns the (possibly re-bound) git
// client so `cd` affects subsequent lines.
func (r *ScriptRunner) executeLine(ctx context.Context, git ports.GitClient, line string, out *strings.Builder) ports.GitClient {
	command, arg := splitCommand(line)

	switch command {
	case "repo":
		root, err := git.Root(ctx)
		if err != nil {
			fmt.Fprintf(out, "not currently in a git repository\n")
			return git
		}
		fmt.Fprintf(out, "current repository: %s (%s)\n", filepath.Base(root), root)

	case "status":
		status, err := git.ShortStatus(ctx)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return git
		}
		status = strings.TrimSpace(status)
		if status == "" {
			fmt.Fprintln(out, "no changes found")
			return git
		}
		lines := strings.Split(status, "\n")
		fmt.Fprintf(out, "number of changes: %d\n", len(lines))
		for _, l := range lines {
			fmt.Fprintf(out, "  %s\n", l)
		}

	case "commit":
		if arg == "" {
			fmt.Fprintln(out, "error: 'commit' requires a message")
			return git
		}
		result, err := git.CommitAll(ctx, arg)
		r.report(out, result, err)

	case "push":
		if arg != "" {
			if _, err := git.CommitAll(ctx, arg); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return git
			}
		}
		result, err := git.Push(ctx)
		r.report(out, result, err)

	case "pull":
		result, err := git.Pull(ctx)
		r.report(out, result, err)

	case "undo":
		result, err := git.UndoLastCommit(ctx)
		r.report(out, result, err)

	case "deploy":
		if arg == "" {
			fmt.Fprintln(out, "error: 'deploy' requires a command")
			return git
		}
		result, err := git.RunShell(ctx, arg)
		r.report(out, result, err)

	case "cd":
		if arg == "" {
			fmt.Fprintln(out, "error: 'cd' requires a path")
			return git
		}
		fmt.Fprintf(out, "changed directory to: %s\n", arg)
		return git.WithDir(arg)

	case "log":
		limit := 10
		if n, err := strconv.Atoi(arg); err == nil && n > 0 {
			limit = n
		}
		result, err := git.Log(ctx, limit)
		r.report(out, result, err)

	default:
		fmt.Fprintf(out, "error: unknown command %q\n", command)
	}

	return git
}

// report writes a command result or its error to the transcript.
func (r *ScriptRunner) report(out *strings.Builder, result string, err error) {
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	if result = strings.TrimSpace(result); result != "" {
		fmt.Fprintln(out, result)
	} else {
		fmt.Fprintln(out, "ok")
	}
}

// splitCommand splits a script line into its command word and optional
// argument, stripping surrounding quotes from the argument.
func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	command := strings.ToLower(parts[0])

	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
		arg = strings.Trim(arg, `"'`)
	}

	return command, arg
}
