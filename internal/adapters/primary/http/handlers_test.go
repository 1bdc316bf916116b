package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gitscope/gitscope/internal/adapters/secondary/renderer"
	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
	"github.com/gitscope/gitscope/internal/domain/services"
)

// MockGitClient mocks ports.GitClient for handler tests.
type MockGitClient struct {
	mock.Mock
}

func (m *MockGitClient) Scan(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Run(ctx context.Context, cmdArgs ...string) (string, error) {
	args := m.Called(ctx, cmdArgs)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) RunShell(ctx context.Context, command string) (string, error) {
	args := m.Called(ctx, command)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) WithDir(dir string) ports.GitClient {
	args := m.Called(dir)
	return args.Get(0).(ports.GitClient)
}

func (m *MockGitClient) Root(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) ShortStatus(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) CurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Branches(ctx context.Context) (entities.BranchList, error) {
	args := m.Called(ctx)
	return args.Get(0).(entities.BranchList), args.Error(1)
}

func (m *MockGitClient) SwitchBranch(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) CreateBranch(ctx context.Context, name string, switchTo bool) (string, error) {
	args := m.Called(ctx, name, switchTo)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) CommitCounts(ctx context.Context) (entities.CommitCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(entities.CommitCounts), args.Error(1)
}

func (m *MockGitClient) CommitAll(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Push(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Pull(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) UndoLastCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Log(ctx context.Context, limit int) (string, error) {
	args := m.Called(ctx, limit)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) DiffHead(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) StageFile(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) UnstageFile(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) RevertFile(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) RemoteURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockAssistant mocks ports.Assistant.
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) Suggest(ctx context.Context, status string) (*entities.ChangeAnalysis, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ChangeAnalysis), args.Error(1)
}

func (m *MockAssistant) Chat(ctx context.Context, message, status, log string) (*entities.ChatReply, error) {
	args := m.Called(ctx, message, status, log)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ChatReply), args.Error(1)
}

// MockFinder mocks ports.RepositoryFinder.
type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) Discover(ctx context.Context) ([]entities.RepositoryInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RepositoryInfo), args.Error(1)
}

type stubEnumerator struct{ paths []string }

func (s *stubEnumerator) ListFiles(ctx context.Context, root string) ([]string, error) {
	return s.paths, nil
}

type stubWatcher struct{}

func (stubWatcher) Start(path string, callback func(), debounce time.Duration) error {
	callback()
	return nil
}
func (stubWatcher) Stop()               {}
func (stubWatcher) ConsumeChange() bool { return false }

type testServer struct {
	server    *Server
	handler   http.Handler
	git       *MockGitClient
	assistant *MockAssistant
	finder    *MockFinder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	git := new(MockGitClient)
	git.On("Scan", mock.Anything).Return(" M main.go\n", nil).Maybe()

	assistant := new(MockAssistant)
	finder := new(MockFinder)

	newGit := func(path string) ports.GitClient { return git }
	newWatcher := func() ports.TreeWatcher { return stubWatcher{} }
	files := &stubEnumerator{paths: []string{"main.go"}}

	sessions := services.NewSessionManager(newGit, newWatcher, files, nil, 50*time.Millisecond, nil)
	t.Cleanup(sessions.Close)

	server := NewServer(
		sessions,
		services.NewScriptRunner(nil),
		assistant,
		renderer.NewMarkdownRenderer(),
		finder,
		&entities.ServerConfig{Host: "127.0.0.1", Port: 0},
		nil,
	)

	return &testServer{
		server:    server,
		handler:   server.setupRoutes(),
		git:       git,
		assistant: assistant,
		finder:    finder,
	}
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) selectRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	ts.git.On("CurrentBranch", mock.Anything).Return("main", nil).Maybe()

	rec := ts.request(t, http.MethodPost, "/api/set-repo", map[string]string{"path": dir})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return dir
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSetRepoRequiresPath(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/set-repo", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetRepoRejectsMissingDirectory(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/set-repo", map[string]string{"path": "/no/such/dir"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetRepoSelectsWorkingTree(t *testing.T) {
	ts := newTestServer(t)
	dir := ts.selectRepo(t)

	body := decodeBody(t, ts.request(t, http.MethodPost, "/api/set-repo", map[string]string{"path": dir}))
	assert.Equal(t, dir, body["path"])
	assert.Equal(t, "main", body["branch"])
}

func TestRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/poll"},
		{http.MethodGet, "/api/status"},
		{http.MethodGet, "/api/branches"},
		{http.MethodGet, "/api/files"},
		{http.MethodPost, "/api/execute"},
	}

	for _, p := range paths {
		rec := ts.request(t, p.method, p.path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, p.path)

		body := decodeBody(t, rec)
		assert.Equal(t, entities.ErrNoSession.Error(), body["error"], p.path)
	}
}

func TestPollReturnsAnalysis(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.assistant.On("Suggest", mock.Anything, " M main.go").
		Return(&entities.ChangeAnalysis{
			Summary: "Edited **main.go**.",
			Script:  `commit "Update main"`,
		}, nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodPost, "/api/poll", map[string]bool{"force": false}))

	assert.Equal(t, true, body["has_changed"])
	assert.Equal(t, " M main.go", body["status"])
	assert.Equal(t, "Edited **main.go**.", body["summary"])
	assert.Equal(t, `commit "Update main"`, body["dsl_suggestion"])
	assert.Contains(t, body["summary_html"], "<strong>main.go</strong>")
	ts.assistant.AssertExpectations(t)
}

func TestPollQuietSecondCycleSkipsAssistant(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.assistant.On("Suggest", mock.Anything, mock.Anything).
		Return(&entities.ChangeAnalysis{Summary: "s"}, nil).Once()

	ts.request(t, http.MethodPost, "/api/poll", nil)
	body := decodeBody(t, ts.request(t, http.MethodPost, "/api/poll", nil))

	assert.Equal(t, false, body["has_changed"])
	assert.NotContains(t, body, "summary")
	ts.assistant.AssertNumberOfCalls(t, "Suggest", 1)
}

func TestPollAssistantFailureStillReturnsStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.assistant.On("Suggest", mock.Anything, mock.Anything).
		Return(nil, assert.AnError).Once()

	rec := ts.request(t, http.MethodPost, "/api/poll", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["has_changed"])
	assert.Equal(t, "", body["summary"])
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("ShortStatus", mock.Anything).Return(" M main.go\n", nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, " M main.go\n", body["status"])
	assert.Equal(t, "main", body["branch"])
}

func TestCommitRequiresMessage(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	rec := ts.request(t, http.MethodPost, "/api/commit", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ts.git.AssertNotCalled(t, "CommitAll", mock.Anything, mock.Anything)
}

func TestCommitEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("CommitAll", mock.Anything, "Fix bug").Return("1 file changed", nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodPost, "/api/commit", map[string]string{"message": "Fix bug"}))
	assert.Equal(t, "1 file changed", body["output"])
	ts.git.AssertExpectations(t)
}

func TestBranchesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("Branches", mock.Anything).Return(entities.BranchList{
		Current: "main",
		Local:   []string{"main", "dev"},
		Remote:  []string{"release"},
	}, nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/branches", nil))
	assert.Equal(t, "main", body["current"])
	assert.Len(t, body["local"], 2)
}

func TestCreateBranchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("CreateBranch", mock.Anything, "feature/x", true).Return("Switched to a new branch", nil).Once()

	rec := ts.request(t, http.MethodPost, "/api/branch/create",
		map[string]interface{}{"name": "feature/x", "switch_to": true})

	assert.Equal(t, http.StatusOK, rec.Code)
	ts.git.AssertExpectations(t)
}

func TestCommitCountsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("CommitCounts", mock.Anything).Return(entities.CommitCounts{
		Total: 42, Unpushed: 3, Behind: 1,
	}, nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/commits", nil))
	assert.Equal(t, float64(42), body["total"])
	assert.Equal(t, float64(3), body["unpushed"])
	assert.Equal(t, float64(1), body["behind"])
}

func TestFileStageEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("StageFile", mock.Anything, "main.go").Return("", nil).Once()

	rec := ts.request(t, http.MethodPost, "/api/file/stage", map[string]string{"path": "main.go"})
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.git.AssertExpectations(t)
}

func TestListFilesUsesCache(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/files", nil))
	assert.Equal(t, []interface{}{"main.go"}, body["files"])
}

func TestReadFileEndpoint(t *testing.T) {
	ts := newTestServer(t)
	dir := ts.selectRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/file?path=notes.txt", nil))
	assert.Equal(t, "hello", body["content"])
}

func TestWriteFileEndpoint(t *testing.T) {
	ts := newTestServer(t)
	dir := ts.selectRepo(t)

	rec := ts.request(t, http.MethodPost, "/api/file",
		map[string]string{"path": "new.txt", "content": "created"})
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "created", string(data))
}

func TestFileEndpointsRejectTraversal(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	rec := ts.request(t, http.MethodGet, "/api/file?path=../../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/file",
		map[string]string{"path": "/etc/passwd", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiffEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("DiffHead", mock.Anything, "main.go").Return("diff --git a/main.go", nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/diff?path=main.go", nil))
	assert.Equal(t, "diff --git a/main.go", body["diff"])
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("ShortStatus", mock.Anything).Return(" M main.go\n", nil).Once()
	ts.git.On("Log", mock.Anything, 5).Return("abc fix", nil).Once()
	ts.assistant.On("Chat", mock.Anything, "commit this", " M main.go\n", "abc fix").
		Return(&entities.ChatReply{Response: "Sure.", Script: `commit "WIP"`}, nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodPost, "/api/chat", map[string]string{"message": "commit this"}))
	assert.Equal(t, "Sure.", body["response"])
	assert.Equal(t, `commit "WIP"`, body["dsl"])
}

func TestExecuteEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.selectRepo(t)

	ts.git.On("CommitAll", mock.Anything, "Quick fix").Return("committed", nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodPost, "/api/execute",
		map[string]string{"dsl": `commit "Quick fix"`}))

	assert.Contains(t, body["output"], "committed")
	ts.git.AssertExpectations(t)
}

func TestListReposEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.finder.On("Discover", mock.Anything).Return([]entities.RepositoryInfo{
		{Name: "widgets", Path: "/src/widgets", Organization: "acme"},
		{Name: "gears", Path: "/src/gears", Organization: "acme"},
	}, nil).Once()

	body := decodeBody(t, ts.request(t, http.MethodGet, "/api/repos", nil))
	assert.Len(t, body["repos"], 2)

	grouped := body["grouped"].(map[string]interface{})
	assert.Len(t, grouped["acme"], 2)
}

func TestResolveInTree(t *testing.T) {
	root := "/repo"

	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"main.go", false},
		{"pkg/util.go", false},
		{"", true},
		{"/etc/passwd", true},
		{"../outside", true},
		{"pkg/../../outside", true},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			_, err := resolveInTree(root, tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
