// Package generation produces code artifacts for individual plan tasks,
// grounding each generation call in documentation looked up for the task's
// declared components.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"codelake/internal/llm"
	"codelake/internal/retrieval"
	"codelake/internal/types"
)

const generateSystemPrompt = `You are an expert SDK code generator that writes clean, efficient, and compliant code.

1. Write complete, production-ready code that accomplishes the described task.
2. Follow ALL best practices and conventions from the SDK documentation.
3. Include proper error handling and comments.
4. Pay special attention to parameter types, return values, and method signatures.

Respond with ONLY a JSON object of the form:
{"code":"<the generated code>","explanation":"<how it works>","confidence":<0..1>,"missing_info":["<anything unknown>"],"suggestions":["<improvements>"]}`

// Retriever is the slice of the retrieval coordinator the generator needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (types.RetrievalResult, retrieval.Outcome)
}

// Generator implements types.GenerationInvoker.
type Generator struct {
	client    llm.Client
	retriever Retriever
	logger    *zap.Logger
}

// New creates a generator.
func New(client llm.Client, retriever Retriever, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, retriever: retriever, logger: logger}
}

// Generate produces the artifact for one task. It honors the invoker
// contract: any internal failure yields a degraded artifact with confidence
// 0, an error marker referencing the task, and a retry hint, never an error.
func (g *Generator) Generate(ctx context.Context, task types.Task, priorCode string) types.CodeArtifact {
	documentation := g.lookupDocumentation(ctx, task.Components)

	prompt := fmt.Sprintf(`# TASK DESCRIPTION
%s

# SDK COMPONENTS REQUIRED
%s

# SDK DOCUMENTATION
%s

# PREVIOUS CODE CONTEXT (if applicable)
%s`,
		task.Description,
		strings.Join(task.Components, ", "),
		documentation,
		priorCode,
	)

	resp, err := g.client.Complete(ctx, generateSystemPrompt, prompt)
	if err != nil {
		g.logger.Warn("generation failed",
			zap.String("task_id", task.ID), zap.Error(err))
		return degradedArtifact(task, err)
	}

	var artifact types.CodeArtifact
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(resp)), &artifact); err != nil {
		g.logger.Warn("unparseable generation output",
			zap.String("task_id", task.ID), zap.Error(err))
		return degradedArtifact(task, err)
	}
	if strings.TrimSpace(artifact.Code) == "" {
		return degradedArtifact(task, fmt.Errorf("model returned no code"))
	}

	g.logger.Info("generated code for task",
		zap.String("task_id", task.ID),
		zap.Float64("confidence", artifact.Confidence))
	return artifact
}

// lookupDocumentation retrieves documentation for each declared component,
// broadening dotted component names to their last segment when the direct
// lookup comes back empty, and deduplicates by content.
func (g *Generator) lookupDocumentation(ctx context.Context, components []string) string {
	if g.retriever == nil || len(components) == 0 {
		return ""
	}

	var all types.RetrievalResult
	for _, component := range components {
		docs, _ := g.retriever.Retrieve(ctx, component)
		if len(docs) == 0 {
			if idx := strings.LastIndex(component, "."); idx >= 0 {
				docs, _ = g.retriever.Retrieve(ctx, component[idx+1:])
			}
		}
		all = append(all, docs...)
	}

	seen := make(map[string]struct{}, len(all))
	var sb strings.Builder
	for _, sd := range all {
		if _, dup := seen[sd.Document.Content]; dup {
			continue
		}
		seen[sd.Document.Content] = struct{}{}
		fmt.Fprintf(&sb, "--- From %s ---\n%s\n\n", sd.Document.Source(), sd.Document.Content)
	}
	return sb.String()
}

func degradedArtifact(task types.Task, cause error) types.CodeArtifact {
	return types.CodeArtifact{
		Code: fmt.Sprintf("# Error generating code for: %s\n# %v\n\n# Please try again with more specific instructions",
			task.Description, cause),
		Explanation: "An error occurred during code generation.",
		Confidence:  0.0,
		MissingInfo: []string{"Error occurred during generation. Please try again with more detail."},
	}
}
