package entities

import (
	"hash/fnv"
	"strings"
)

// StatusSnapshot is the most recent result of a working-tree status scan
// together with a content hash of the scanned text.
type StatusSnapshot struct {
	Text string
	Hash uint64
}

// NewStatusSnapshot builds a snapshot from raw status output. Trailing
// whitespace is stripped so an empty tree always hashes identically.
func NewStatusSnapshot(text string) StatusSnapshot {
	trimmed := strings.TrimRight(text, "\r\n")
	return StatusSnapshot{
		Text: trimmed,
		Hash: HashText(trimmed),
	}
}

// IsEmpty reports whether the status text contains no changes after trimming.
func (s StatusSnapshot) IsEmpty() bool {
	return strings.TrimSpace(s.Text) == ""
}

// FileListSnapshot is the most recent enumeration of files under the working
// tree, sorted and relative to the root, with a hash over the joined paths.
type FileListSnapshot struct {
	Paths []string
	Hash  uint64
}

// NewFileListSnapshot builds a snapshot from an already-sorted path list.
func NewFileListSnapshot(paths []string) FileListSnapshot {
	return FileListSnapshot{
		Paths: paths,
		Hash:  HashText(strings.Join(paths, "\x00")),
	}
}

// HashText returns the FNV-1a 64-bit hash of the given text.
func HashText(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// PollResult is the outcome of one poll cycle over the change cache.
type PollResult struct {
	HasChanged   bool
	FilesChanged bool
	Status       string

	// ShouldAnalyze reports whether downstream assistant analysis is worth
	// running: something changed (or the caller forced it) and the status
	// text is non-empty.
	ShouldAnalyze bool
}
