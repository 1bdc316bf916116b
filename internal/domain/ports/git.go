package ports

import (
	"context"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// StatusScanner produces a machine-parseable change listing of the working
// tree, one line per changed or untracked path. An empty tree yields an empty
// string, not an error; entities.ErrUnavailable signals the scan could not run.
type StatusScanner interface {
	Scan(ctx context.Context) (string, error)
}

// FileEnumerator lists every file under root, excluding the configured ignore
// set, as sorted slash-separated paths relative to root.
type FileEnumerator interface {
	ListFiles(ctx context.Context, root string) ([]string, error)
}

// GitClient is the command surface the HTTP handlers and the script
// interpreter drive. Implementations are bound to a single working tree.
type GitClient interface {
	StatusScanner

	// Run executes a raw git subcommand in the working tree.
	Run(ctx context.Context, args ...string) (string, error)

	// RunShell executes an arbitrary shell command in the working tree
	// (deploy hooks).
	RunShell(ctx context.Context, command string) (string, error)

	// WithDir returns a client bound to a different directory.
	WithDir(dir string) GitClient

	Root(ctx context.Context) (string, error)
	ShortStatus(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	Branches(ctx context.Context) (entities.BranchList, error)
	SwitchBranch(ctx context.Context, name string) (string, error)
	CreateBranch(ctx context.Context, name string, switchTo bool) (string, error)
	CommitCounts(ctx context.Context) (entities.CommitCounts, error)
	CommitAll(ctx context.Context, message string) (string, error)
	Push(ctx context.Context) (string, error)
	Pull(ctx context.Context) (string, error)
	UndoLastCommit(ctx context.Context) (string, error)
	Log(ctx context.Context, limit int) (string, error)
	DiffHead(ctx context.Context, path string) (string, error)
	StageFile(ctx context.Context, path string) (string, error)
	UnstageFile(ctx context.Context, path string) (string, error)
	RevertFile(ctx context.Context, path string) (string, error)
	RemoteURL(ctx context.Context) (string, error)
}

// RepositoryFinder discovers git working trees under the configured search
// roots, grouped by hosting organization.
type RepositoryFinder interface {
	Discover(ctx context.Context) ([]entities.RepositoryInfo, error)
}
