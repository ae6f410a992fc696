// Package llm defines the answer evaluator and its providers.
package llm

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed prompts/evaluation.txt
var evaluationPrompt string

// Evaluator grades a candidate answer and returns the model's review text.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluateInput) (string, error)
}

// EvaluateInput captures what the model sees for one answer.
type EvaluateInput struct {
	Question   string
	Technology string
	Complexity string
	Answer     string
}

// ErrNotImplemented is returned by the placeholder evaluator.
var ErrNotImplemented = errors.New("LLM not implemented")

// Placeholder is used when no provider is configured.
type Placeholder struct{}

func (Placeholder) Evaluate(context.Context, EvaluateInput) (string, error) {
	return "", ErrNotImplemented
}

// SystemPrompt is the instruction shared by all providers.
func SystemPrompt() string {
	return strings.TrimSpace(evaluationPrompt)
}

// UserPrompt renders the question and answer block.
func UserPrompt(in EvaluateInput) string {
	return fmt.Sprintf("Технология: %s\nСложность: %s\n\nВопрос:\n%s\n\nОтвет кандидата:\n%s",
		in.Technology, in.Complexity, strings.TrimSpace(in.Question), strings.TrimSpace(in.Answer))
}
