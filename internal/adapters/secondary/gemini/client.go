package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// ErrNoAPIKey is returned when assistant endpoints are used without a
// configured Gemini API key.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY is not set")

const suggestPrompt = `You are a Git Assistant. Here is the current short status output of a repository:

%s

1. Provide a concise summary of what has changed.
2. Generate a DSL script to commit these changes. The DSL supports:
   - cd <path>
   - repo
   - status
   - commit "<message>"
   - push "<message>" (optional message, if provided will commit before pushing)
   - pull
   - deploy "<command>"

Return the response in JSON format with keys: "summary" and "dsl".
Example JSON:
{
    "summary": "Modified login page and added new icon.",
    "dsl": "commit \"Update login page\""
}`

const chatPrompt = `You are a helpful Git Assistant.

Current Git Status:
%s

Recent Commit Log:
%s

User Message: %q

1. Respond to the user's message in a helpful way.
2. If the user asks to perform a git operation (like commit, push, etc.), generate a DSL script to do it.

The DSL supports:
   - cd <path>
   - repo
   - status
   - commit "<message>"
   - push "<message>"
   - pull
   - deploy "<command>"
   - undo
   - log <limit>

Return JSON format:
{
    "response": "Sure, I can help with that...",
    "dsl": "commit \"message\"" (optional, null if no action needed)
}`

// Assistant implements ports.Assistant against the Gemini API.
type Assistant struct {
	cfg    entities.GeminiConfig
	logger *slog.Logger

	client *genai.Client
	model  string
}

// NewAssistant creates a Gemini-backed assistant. A missing API key is not
// fatal here; each call reports it instead, so the rest of the server keeps
// working without credentials.
func NewAssistant(ctx context.Context, cfg entities.GeminiConfig, logger *slog.Logger) (*Assistant, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gemini")

	a := &Assistant{
		cfg:    cfg,
		logger: logger,
		model:  cfg.GetModel(),
	}

	key := cfg.GetAPIKey()
	if key == "" {
		logger.Warn("no Gemini API key configured, assistant endpoints will report errors")
		return a, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  key,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	a.client = client
	return a, nil
}

// Suggest summarizes a status listing and proposes a script acting on it.
func (a *Assistant) Suggest(ctx context.Context, status string) (*entities.ChangeAnalysis, error) {
	text, err := a.generate(ctx, fmt.Sprintf(suggestPrompt, status))
	if err != nil {
		return nil, err
	}

	var analysis entities.ChangeAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		a.logger.Warn("could not parse model response as JSON", slog.String("error", err.Error()))
		return &entities.ChangeAnalysis{Summary: "Could not parse assistant response."}, nil
	}

	return &analysis, nil
}

// Chat answers a user message given status and log context.
func (a *Assistant) Chat(ctx context.Context, message, status, log string) (*entities.ChatReply, error) {
	if strings.TrimSpace(status) == "" {
		status = "No changes."
	}
	if strings.TrimSpace(log) == "" {
		log = "No recent commits."
	}

	text, err := a.generate(ctx, fmt.Sprintf(chatPrompt, status, log, message))
	if err != nil {
		return nil, err
	}

	var reply entities.ChatReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		// Fall back to the raw text when the model ignores the JSON format.
		return &entities.ChatReply{Response: text}, nil
	}

	return &reply, nil
}

// generate sends a text-only prompt and returns the stripped response body.
func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	if a.client == nil {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.GetTimeout())
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API request failed: %w", err)
	}

	return StripFences(responseText(resp)), nil
}

// responseText pulls the first text part out of a generate response.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// StripFences removes markdown code fences the model wraps around JSON.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
