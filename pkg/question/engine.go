// Package question generates the three clarifying questions asked before an
// estimate, with localized defaults when the model cannot be reached.
package question

import (
	"context"
	"fmt"
	"strings"

	"estimator/pkg/estimate"
	"estimator/pkg/i18n"
	"estimator/pkg/llm"
	"estimator/pkg/logx"
)

// QuestionCount is the fixed number of questions returned per task.
const QuestionCount = 3

// Engine produces clarifying questions for a deliverable set.
type Engine struct {
	client    llm.Client
	bundle    *i18n.Bundle
	maxTokens int
	logger    *logx.Logger
}

// New creates a question engine around a protected client.
func New(client llm.Client, bundle *i18n.Bundle) *Engine {
	return &Engine{
		client:    client,
		bundle:    bundle,
		maxTokens: 500,
		logger:    logx.NewLogger("question"),
	}
}

// Generate returns exactly QuestionCount questions. Short model output is
// padded with localized defaults; a failed call returns the defaults alone.
func (e *Engine) Generate(ctx context.Context, deliverables []estimate.Deliverable, requirements string) []string {
	ctx = llm.WithOperation(ctx, "questions")

	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(e.systemPrompt()),
			llm.NewUserMessage(e.userPrompt(deliverables, requirements)),
		},
		MaxTokens:   e.maxTokens,
		Temperature: llm.TemperatureCreative,
	})
	if err != nil {
		e.logger.Warn("question generation failed, using defaults: %v", err)
		return e.DefaultQuestions()
	}

	questions := splitQuestions(resp.Content)
	if len(questions) < QuestionCount {
		questions = append(questions, e.DefaultQuestions()[len(questions):]...)
	}
	return questions[:QuestionCount]
}

// DefaultQuestions returns the localized static questions.
func (e *Engine) DefaultQuestions() []string {
	return []string{
		e.bundle.T("defaults.question1"),
		e.bundle.T("defaults.question2"),
		e.bundle.T("defaults.question3"),
	}
}

func (e *Engine) systemPrompt() string {
	return e.bundle.T("prompts.question_system") + "\n\n" + e.bundle.T("prompts.language_instruction")
}

func (e *Engine) userPrompt(deliverables []estimate.Deliverable, requirements string) string {
	var b strings.Builder
	b.WriteString(e.bundle.T("prompts.question_instruction"))
	b.WriteString("\n\n")
	for _, d := range deliverables {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	fmt.Fprintf(&b, "\n[%s]\n%s\n\n", e.bundle.T("ui.label_system_requirements"), requirements)
	b.WriteString(e.bundle.T("prompts.question_format"))
	return b.String()
}

// splitQuestions turns model output into one question per non-empty line.
func splitQuestions(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
