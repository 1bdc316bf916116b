package entities

import "errors"

// Sentinel errors shared across services and handlers.
var (
	// ErrNoSession is returned when no working tree has been selected yet.
	ErrNoSession = errors.New("no repository selected")

	// ErrUnavailable signals that a collaborator (status scan, enumeration)
	// could not produce a result; callers keep their last-good value.
	ErrUnavailable = errors.New("collaborator unavailable")
)

// RepositoryInfo describes a discovered git working tree.
type RepositoryInfo struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Organization string `json:"organization"`
}

// BranchList groups the branches of a repository.
type BranchList struct {
	Local   []string `json:"local"`
	Remote  []string `json:"remote"`
	Current string   `json:"current"`
}

// CommitCounts summarizes how the local history relates to its upstream.
type CommitCounts struct {
	Total    int `json:"total"`
	Unpushed int `json:"unpushed"`
	Behind   int `json:"behind"`
}

// FileState classifies a path in the working tree based on porcelain status.
type FileState int

const (
	FileStateClean FileState = iota
	FileStateModified
	FileStateNew
	FileStateUntracked
)

// ChangeAnalysis is the assistant's reading of a status listing.
type ChangeAnalysis struct {
	Summary string `json:"summary"`
	Script  string `json:"dsl"`
}

// ChatReply is the assistant's answer to a free-form user message.
type ChatReply struct {
	Response string `json:"response"`
	Script   string `json:"dsl"`
}
