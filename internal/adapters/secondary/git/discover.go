package git

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// Finder discovers git working trees under configured search roots and
// groups them by the GitHub organization parsed from their origin remote.
type Finder struct {
	searchPaths []string
	maxDepth    int
	git         *Client
	logger      *slog.Logger
}

// NewFinder creates a repository finder. The git client is re-bound per
// candidate directory to query remotes.
func NewFinder(cfg entities.DiscoveryConfig, git *Client, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Finder{
		searchPaths: cfg.GetSearchPaths(),
		maxDepth:    cfg.GetMaxDepth(),
		git:         git,
		logger:      logger.With("component", "discovery"),
	}
}

// Discover scans the search roots, depth-limited, and returns every git
// working tree found, sorted by organization then name.
func (f *Finder) Discover(ctx context.Context) ([]entities.RepositoryInfo, error) {
	seen := make(map[string]struct{})
	var repos []entities.RepositoryInfo

	for _, root := range f.searchPaths {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		f.scan(ctx, root, 0, seen, &repos)
	}

	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Organization != repos[j].Organization {
			return strings.ToLower(repos[i].Organization) < strings.ToLower(repos[j].Organization)
		}
		return strings.ToLower(repos[i].Name) < strings.ToLower(repos[j].Name)
	})

	return repos, nil
}

// scan recursively descends into directory, stopping at git repos and the
// depth limit.
func (f *Finder) scan(ctx context.Context, dir string, depth int, seen map[string]struct{}, repos *[]entities.RepositoryInfo) {
	if ctx.Err() != nil || depth > f.maxDepth {
		return
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	if _, dup := seen[abs]; dup {
		return
	}
	seen[abs] = struct{}{}

	if isGitRepo(abs) {
		*repos = append(*repos, entities.RepositoryInfo{
			Name:         filepath.Base(abs),
			Path:         abs,
			Organization: f.organization(ctx, abs),
		})
		return // never descend into a repository
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return // skip unreadable directories
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		f.scan(ctx, filepath.Join(abs, entry.Name()), depth+1, seen, repos)
	}
}

// organization extracts the GitHub organization or user from the origin
// remote; repositories without a parseable GitHub remote fall into "Other".
func (f *Finder) organization(ctx context.Context, repoPath string) string {
	url, err := f.git.WithDir(repoPath).RemoteURL(ctx)
	if err != nil {
		return "Other"
	}

	if org := parseGitHubOrg(url); org != "" {
		return org
	}
	return "Other"
}

// parseGitHubOrg handles both HTTPS (github.com/org/repo.git) and SSH
// (git@github.com:org/repo.git) remote forms.
func parseGitHubOrg(url string) string {
	var rest string
	switch {
	case strings.Contains(url, "github.com/"):
		rest = url[strings.Index(url, "github.com/")+len("github.com/"):]
	case strings.Contains(url, "github.com:"):
		rest = url[strings.Index(url, "github.com:")+len("github.com:"):]
	default:
		return ""
	}

	rest = strings.TrimSuffix(strings.TrimSuffix(rest, "/"), ".git")
	if idx := strings.Index(rest, "/"); idx > 0 {
		return rest[:idx]
	}
	return ""
}

// isGitRepo reports whether dir contains a .git entry.
func isGitRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
