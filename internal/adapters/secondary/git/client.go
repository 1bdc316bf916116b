package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
)

var (
	aheadRe  = regexp.MustCompile(`ahead (\d+)`)
	behindRe = regexp.MustCompile(`behind (\d+)`)
)

// Client runs git commands in a fixed working tree. All commands carry a
// per-call timeout so a wedged subprocess cannot stall a request handler.
type Client struct {
	dir     string
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a git client bound to dir.
func NewClient(dir string, cfg entities.GitConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		dir:     dir,
		binary:  cfg.GetBinary(),
		timeout: cfg.GetCommandTimeout(),
		logger:  logger.With("component", "git"),
	}
}

// WithDir returns a client identical to c but bound to a different directory.
func (c *Client) WithDir(dir string) ports.GitClient {
	clone := *c
	clone.dir = dir
	return &clone
}

// Run executes one git subcommand and returns its stdout.
func (c *Client) Run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = c.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}

	return stdout.String(), nil
}

// RunShell executes an arbitrary shell command in the working tree. Used by
// the script interpreter's deploy command.
func (c *Client) RunShell(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = c.dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("shell command failed: %w", err)
	}

	return out.String(), nil
}

// Scan returns the porcelain change listing, one line per changed or
// untracked path. -u expands untracked directories into individual files.
func (c *Client) Scan(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "status", "--porcelain", "-u")
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrUnavailable, err)
	}
	return out, nil
}

// ShortStatus returns the human-oriented short status listing.
func (c *Client) ShortStatus(ctx context.Context) (string, error) {
	return c.Run(ctx, "status", "-s", "-u")
}

// Root returns the absolute path of the repository's top-level directory.
func (c *Client) Root(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Branches lists local and remote branches, with the current branch first in
// the local list. Remote entries already present locally are omitted.
func (c *Client) Branches(ctx context.Context) (entities.BranchList, error) {
	var list entities.BranchList

	local, err := c.Run(ctx, "branch")
	if err != nil {
		return list, err
	}

	current, _ := c.CurrentBranch(ctx)
	list.Current = current

	for _, line := range strings.Split(local, "\n") {
		name := strings.TrimSpace(strings.ReplaceAll(line, "*", ""))
		if name == "" || name == current {
			continue
		}
		list.Local = append(list.Local, name)
	}
	if current != "" {
		list.Local = append([]string{current}, list.Local...)
	}

	remote, err := c.Run(ctx, "branch", "-r")
	if err != nil {
		// A repository without remotes is still usable.
		return list, nil
	}

	seen := make(map[string]struct{}, len(list.Local))
	for _, name := range list.Local {
		seen[name] = struct{}{}
	}

	for _, line := range strings.Split(remote, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "HEAD") {
			continue
		}
		if idx := strings.LastIndex(line, "/"); idx >= 0 {
			name := strings.TrimSpace(line[idx+1:])
			if _, dup := seen[name]; name != "" && !dup {
				list.Remote = append(list.Remote, name)
				seen[name] = struct{}{}
			}
		}
	}

	return list, nil
}

// SwitchBranch checks out an existing local branch, or creates a local
// tracking branch when only the remote has it.
func (c *Client) SwitchBranch(ctx context.Context, name string) (string, error) {
	if c.hasLocalBranch(ctx, name) {
		return c.Run(ctx, "checkout", name)
	}

	if c.hasRemoteBranch(ctx, name) {
		return c.Run(ctx, "checkout", "-b", name, "origin/"+name)
	}

	return "", fmt.Errorf("branch %q not found", name)
}

// CreateBranch creates a branch, optionally switching to it.
func (c *Client) CreateBranch(ctx context.Context, name string, switchTo bool) (string, error) {
	if c.hasLocalBranch(ctx, name) {
		return "", fmt.Errorf("branch %q already exists", name)
	}

	if switchTo {
		return c.Run(ctx, "checkout", "-b", name)
	}
	return c.Run(ctx, "branch", name)
}

// CommitCounts reports total commits plus ahead/behind relative to upstream,
// parsed from `status -sb`. Without an upstream every commit is unpushed.
func (c *Client) CommitCounts(ctx context.Context) (entities.CommitCounts, error) {
	var counts entities.CommitCounts

	out, err := c.Run(ctx, "rev-list", "--count", "HEAD")
	if err != nil {
		return counts, err
	}
	counts.Total, err = strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return counts, fmt.Errorf("parsing commit count: %w", err)
	}

	sb, err := c.Run(ctx, "status", "-sb")
	if err != nil || sb == "" {
		return counts, nil
	}

	firstLine := strings.SplitN(sb, "\n", 2)[0]
	if !strings.Contains(firstLine, "...") {
		counts.Unpushed = counts.Total
		return counts, nil
	}

	if m := aheadRe.FindStringSubmatch(firstLine); m != nil {
		counts.Unpushed, _ = strconv.Atoi(m[1])
	}
	if m := behindRe.FindStringSubmatch(firstLine); m != nil {
		counts.Behind, _ = strconv.Atoi(m[1])
	}

	return counts, nil
}

// CommitAll stages everything and commits with the given message.
func (c *Client) CommitAll(ctx context.Context, message string) (string, error) {
	if _, err := c.Run(ctx, "add", "."); err != nil {
		return "", err
	}
	return c.Run(ctx, "commit", "-m", message)
}

// Push pushes the current branch to its upstream.
func (c *Client) Push(ctx context.Context) (string, error) {
	return c.Run(ctx, "push")
}

// Pull pulls the latest changes from the upstream.
func (c *Client) Pull(ctx context.Context) (string, error) {
	return c.Run(ctx, "pull")
}

// UndoLastCommit removes the last commit but keeps its changes staged.
func (c *Client) UndoLastCommit(ctx context.Context) (string, error) {
	return c.Run(ctx, "reset", "--soft", "HEAD~1")
}

// Log returns the last limit commits, one line each.
func (c *Client) Log(ctx context.Context, limit int) (string, error) {
	return c.Run(ctx, "log", "--oneline", "-n", strconv.Itoa(limit))
}

// DiffHead returns uncommitted changes for a path against HEAD. Untracked
// files have no HEAD version, so their diff is synthesized as an
// all-additions patch.
func (c *Client) DiffHead(ctx context.Context, path string) (string, error) {
	out, err := c.Run(ctx, "diff", "HEAD", "--", path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) != "" {
		return out, nil
	}

	state, err := c.fileState(ctx, path)
	if err != nil || state != entities.FileStateUntracked {
		return out, nil
	}

	content, err := os.ReadFile(filepath.Join(c.dir, path)) // #nosec G304 - path validated by caller
	if err != nil {
		return out, nil
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake("", string(content))
	return dmp.PatchToText(patches), nil
}

// StageFile stages one path.
func (c *Client) StageFile(ctx context.Context, path string) (string, error) {
	return c.Run(ctx, "add", "--", path)
}

// UnstageFile removes one path from the index.
func (c *Client) UnstageFile(ctx context.Context, path string) (string, error) {
	return c.Run(ctx, "reset", "HEAD", "--", path)
}

// RevertFile discards changes to one path: untracked files are deleted, newly
// added files are unstaged and deleted, modified files are restored from HEAD.
func (c *Client) RevertFile(ctx context.Context, path string) (string, error) {
	state, err := c.fileState(ctx, path)
	if err != nil {
		return "", err
	}

	full := filepath.Join(c.dir, path)

	switch state {
	case entities.FileStateUntracked:
		if err := os.Remove(full); err != nil {
			return "", fmt.Errorf("removing untracked file: %w", err)
		}
		return fmt.Sprintf("removed untracked file %q", path), nil

	case entities.FileStateNew:
		if _, err := c.UnstageFile(ctx, path); err != nil {
			return "", err
		}
		if err := os.Remove(full); err != nil {
			return "", fmt.Errorf("removing new file: %w", err)
		}
		return fmt.Sprintf("removed new file %q", path), nil

	default:
		if _, err := c.UnstageFile(ctx, path); err != nil {
			return "", err
		}
		if _, err := c.Run(ctx, "checkout", "HEAD", "--", path); err != nil {
			return "", err
		}
		return fmt.Sprintf("reverted %q to HEAD version", path), nil
	}
}

// RemoteURL returns the origin remote URL.
func (c *Client) RemoteURL(ctx context.Context) (string, error) {
	out, err := c.Run(ctx, "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// fileState classifies one path from the porcelain listing.
func (c *Client) fileState(ctx context.Context, path string) (entities.FileState, error) {
	out, err := c.Scan(ctx)
	if err != nil {
		return entities.FileStateClean, err
	}

	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		entry := strings.Trim(strings.TrimSpace(line[3:]), `"`)
		if entry != path && !strings.HasSuffix(entry, "/"+path) {
			continue
		}

		switch {
		case code == "??":
			return entities.FileStateUntracked, nil
		case code[0] == 'A' || code[1] == 'A':
			return entities.FileStateNew, nil
		default:
			return entities.FileStateModified, nil
		}
	}

	return entities.FileStateClean, nil
}

// hasLocalBranch reports whether name exists as a local branch.
func (c *Client) hasLocalBranch(ctx context.Context, name string) bool {
	out, err := c.Run(ctx, "branch")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(strings.ReplaceAll(line, "*", "")) == name {
			return true
		}
	}
	return false
}

// hasRemoteBranch reports whether origin has name.
func (c *Client) hasRemoteBranch(ctx context.Context, name string) bool {
	out, err := c.Run(ctx, "branch", "-r")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "origin/"+name || strings.HasSuffix(line, "/"+name) {
			return true
		}
	}
	return false
}
