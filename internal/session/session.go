// Package session manages coding sessions: windowed conversation memory,
// classification of incoming messages, and the retrieve-plan-execute pipeline
// behind code requests.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"codelake/internal/engine"
	"codelake/internal/generation"
	"codelake/internal/llm"
	"codelake/internal/types"
)

const conversationSystemPrompt = `You are an expert SDK coding assistant. You help generate and explain code using the SDK documentation.
Respond conversationally while maintaining technical accuracy. If you need to generate code,
make sure it follows the SDK documentation precisely. If you're unsure about anything,
acknowledge the limitations and suggest what information you'd need.`

// codeRequestIndicators mark a message as a code generation request.
var codeRequestIndicators = []string{
	"generate", "create", "write", "implement", "code for",
	"function", "class", "script", "program",
}

// Turn is one user/assistant exchange.
type Turn struct {
	User      string
	Assistant string
}

// Response is the shaped result of processing one message.
type Response struct {
	Type        string   `json:"type"` // "code" or "text"
	Message     string   `json:"message"`
	Code        string   `json:"code,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	MissingInfo []string `json:"missing_info,omitempty"`
}

// Session is one coding session. All pipeline state lives inside a single
// ProcessMessage call; only the conversation history is retained, guarded by
// the mutex so concurrent HTTP requests on one session stay consistent.
type Session struct {
	id        string
	retriever generation.Retriever
	planner   types.PlanBuilder
	invoker   types.GenerationInvoker
	client    llm.Client
	logger    *zap.Logger

	mu      sync.Mutex
	history []Turn
	window  int
}

// New creates a session.
func New(id string, retriever generation.Retriever, planner types.PlanBuilder, invoker types.GenerationInvoker, client llm.Client, window int, logger *zap.Logger) *Session {
	if window <= 0 {
		window = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:        id,
		retriever: retriever,
		planner:   planner,
		invoker:   invoker,
		client:    client,
		window:    window,
		logger:    logger.With(zap.String("session_id", id)),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// GenerateCode runs the full retrieve-plan-execute pipeline for a request.
// Each call builds a fresh engine over a fresh graph, so no generation state
// leaks between requests.
func (s *Session) GenerateCode(ctx context.Context, request string) types.ExecutionResult {
	s.logger.Info("generating code", zap.String("request", request))

	docs, outcome := s.retriever.Retrieve(ctx, request)
	s.logger.Debug("retrieved planning context",
		zap.Int("documents", len(docs)),
		zap.String("status", string(outcome.Status)))

	plan := s.planner.Plan(ctx, request, docs.Context())
	graph := engine.NewTaskGraph(plan.Tasks)

	return engine.New(s.invoker, s.logger).Run(ctx, graph)
}

// ProcessMessage classifies the message and either runs the generation
// pipeline or answers conversationally, then records the exchange.
func (s *Session) ProcessMessage(ctx context.Context, message string) (Response, error) {
	var resp Response
	if IsCodeRequest(message) {
		result := s.GenerateCode(ctx, message)
		resp = shapeCodeResponse(result)
	} else {
		text, err := s.converse(ctx, message)
		if err != nil {
			return Response{}, err
		}
		resp = Response{Type: "text", Message: text}
	}

	s.remember(message, resp.Message)
	return resp, nil
}

// IsCodeRequest reports whether a message looks like a code generation
// request rather than conversation.
func IsCodeRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, indicator := range codeRequestIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func (s *Session) converse(ctx context.Context, message string) (string, error) {
	prompt := fmt.Sprintf("# Conversation History\n%s\n# User Request\n%s", s.historyText(), message)
	text, err := s.client.Complete(ctx, conversationSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("conversation failed: %w", err)
	}
	return text, nil
}

func (s *Session) remember(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Turn{User: user, Assistant: assistant})
	if len(s.history) > s.window {
		s.history = s.history[len(s.history)-s.window:]
	}
}

// History returns a copy of the retained exchanges.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) historyText() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	for _, turn := range s.history {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.User, turn.Assistant)
	}
	return sb.String()
}

// shapeCodeResponse renders an execution result into a user-facing response,
// in the same shape the original service produced: code block first, then
// explanation when confidence clears 0.7, then advisory sections.
func shapeCodeResponse(result types.ExecutionResult) Response {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's the code for your request:\n\n```\n%s\n```\n\n", result.Code)

	if result.Confidence > 0.7 {
		var explanations []string
		for _, id := range result.TaskOrder {
			if out, ok := result.TaskOutputs[id]; ok && out.Explanation != "" {
				explanations = append(explanations, out.Explanation)
			}
		}
		if len(explanations) > 0 {
			fmt.Fprintf(&sb, "\n**Explanation:**\n%s", strings.Join(explanations, "\n"))
		}
	}

	if len(result.MissingInfo) > 0 {
		sb.WriteString("\n\n**Additional information needed:**\n")
		for _, info := range result.MissingInfo {
			fmt.Fprintf(&sb, "- %s\n", info)
		}
	}
	if len(result.Suggestions) > 0 {
		sb.WriteString("\n\n**Suggestions for improvement:**\n")
		for _, suggestion := range result.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", suggestion)
		}
	}

	confidence := result.Confidence
	return Response{
		Type:        "code",
		Message:     sb.String(),
		Code:        result.Code,
		Confidence:  &confidence,
		Suggestions: result.Suggestions,
		MissingInfo: result.MissingInfo,
	}
}
