package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/services"
)

// maxRequestBody caps JSON request bodies. File writes are the largest
// legitimate payload.
const maxRequestBody = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON serializes v with a status code. Encoding failures are logged and
// abandoned; headers are already out.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	return dec.Decode(v)
}

// session resolves the active session or writes a 400 for callers that
// haven't selected a working tree yet.
func (s *Server) session(w http.ResponseWriter) (*services.Session, bool) {
	session, err := s.sessions.Current()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return session, true
}

// handleSetRepo selects the active working tree.
func (s *Server) handleSetRepo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Path) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a repository path is required"))
		return
	}

	session, err := s.sessions.Select(r.Context(), req.Path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	branch, _ := session.Git.CurrentBranch(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Repository set to " + session.Path,
		"path":    session.Path,
		"branch":  branch,
	})
}

// handleListRepos discovers git working trees under the configured roots.
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.finder.Discover(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	grouped := make(map[string][]entities.RepositoryInfo)
	for _, repo := range repos {
		grouped[repo.Organization] = append(grouped[repo.Organization], repo)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"repos":   repos,
		"grouped": grouped,
	})
}

// handlePoll runs the change-detection protocol and, when warranted, asks the
// assistant to summarize the pending changes.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Force bool `json:"force"`
	}
	// A missing or empty body means a plain poll.
	_ = decodeJSON(r, &req)

	result := session.Cache.Poll(r.Context(), req.Force)

	resp := map[string]interface{}{
		"has_changed":   result.HasChanged,
		"files_changed": result.FilesChanged,
		"status":        result.Status,
	}

	if result.ShouldAnalyze {
		analysis, err := s.assistant.Suggest(r.Context(), result.Status)
		if err != nil {
			s.logger.Warn("assistant suggestion failed", slog.String("error", err.Error()))
			resp["summary"] = ""
			resp["dsl_suggestion"] = ""
		} else {
			resp["summary"] = analysis.Summary
			resp["dsl_suggestion"] = analysis.Script
			if html, err := s.renderer.RenderMarkdown(analysis.Summary); err == nil {
				resp["summary_html"] = html
			}
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleStatus returns the current short status without engaging the
// assistant.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	status, err := session.Git.ShortStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	branch, _ := session.Git.CurrentBranch(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"branch": branch,
	})
}

// handleCommitCounts reports total, unpushed and behind commit counts.
func (s *Server) handleCommitCounts(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	counts, err := session.Git.CommitCounts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    counts.Total,
		"unpushed": counts.Unpushed,
		"behind":   counts.Behind,
	})
}

// handleCommit stages everything and commits with the given message.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a commit message is required"))
		return
	}

	out, err := session.Git.CommitAll(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	out, err := session.Git.Push(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	out, err := session.Git.Pull(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handleCurrentBranch(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	branch, err := session.Git.CurrentBranch(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"branch": branch})
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	branches, err := session.Git.Branches(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"current": branches.Current,
		"local":   branches.Local,
		"remote":  branches.Remote,
	})
}

func (s *Server) handleSwitchBranch(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a branch name is required"))
		return
	}

	out, err := session.Git.SwitchBranch(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		SwitchTo bool   `json:"switch_to"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a branch name is required"))
		return
	}

	out, err := session.Git.CreateBranch(r.Context(), req.Name, req.SwitchTo)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

// fileRequest is shared by the stage/unstage/revert handlers.
type fileRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleStageFile(w http.ResponseWriter, r *http.Request) {
	s.fileAction(w, r, func(session *services.Session, path string) (string, error) {
		return session.Git.StageFile(r.Context(), path)
	})
}

func (s *Server) handleUnstageFile(w http.ResponseWriter, r *http.Request) {
	s.fileAction(w, r, func(session *services.Session, path string) (string, error) {
		return session.Git.UnstageFile(r.Context(), path)
	})
}

func (s *Server) handleRevertFile(w http.ResponseWriter, r *http.Request) {
	s.fileAction(w, r, func(session *services.Session, path string) (string, error) {
		return session.Git.RevertFile(r.Context(), path)
	})
}

func (s *Server) fileAction(w http.ResponseWriter, r *http.Request, action func(*services.Session, string) (string, error)) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req fileRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Path) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a file path is required"))
		return
	}

	out, err := action(session, req.Path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

// handleListFiles returns the cached file enumeration, priming the cache if
// no enumeration has run yet.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	snap, cached := session.Cache.Files()
	if !cached {
		session.Cache.Refresh(r.Context())
		snap, cached = session.Cache.Files()
	}
	if !cached {
		s.writeError(w, http.StatusInternalServerError, errors.New("file enumeration unavailable"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"files": snap.Paths})
}

// resolveInTree maps a client-supplied relative path onto the working tree,
// rejecting anything that escapes it.
func resolveInTree(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("a file path is required")
	}
	if filepath.IsAbs(rel) {
		return "", errors.New("path must be relative to the repository")
	}

	abs := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", errors.New("path escapes the repository")
	}
	return abs, nil
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	abs, err := resolveInTree(session.Path, r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	data, err := os.ReadFile(abs) // #nosec G304 - confined to the working tree above
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"content": string(data)})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	abs, err := resolveInTree(session.Path, req.Path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := os.WriteFile(abs, []byte(req.Content), 0644); err != nil { // #nosec G306 - source files
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "saved"})
}

// handleDiff returns the diff of one file against HEAD, synthesizing a diff
// for untracked files.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	if strings.TrimSpace(path) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a file path is required"))
		return
	}

	diff, err := session.Git.DiffHead(r.Context(), path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"diff": diff})
}

// handleChat forwards a user message to the assistant together with current
// status and recent log context.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a message is required"))
		return
	}

	status, _ := session.Git.ShortStatus(r.Context())
	log, _ := session.Git.Log(r.Context(), 5)

	reply, err := s.assistant.Chat(r.Context(), req.Message, status, log)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"response": reply.Response,
		"dsl":      reply.Script,
	})
}

// handleExecute runs a script against the active session and returns the
// transcript.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w)
	if !ok {
		return
	}

	var req struct {
		Script string `json:"dsl"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Script) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("a script is required"))
		return
	}

	output := s.script.Execute(r.Context(), session.Git, req.Script)

	s.writeJSON(w, http.StatusOK, map[string]string{"output": output})
}
