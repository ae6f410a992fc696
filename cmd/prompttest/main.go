package main

// Grade one answer with the configured provider and print the review:
//   go run ./cmd/prompttest -question "What is a goroutine?" -answer "A lightweight thread"

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/shared/config"
)

type result struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Review   string `json:"review"`
	Score    *int   `json:"score"`
}

func main() {
	cfg := config.Load()

	question := flag.String("question", "", "Question text")
	answer := flag.String("answer", "", "Answer text")
	answerFile := flag.String("answer-file", "", "Read the answer from a file instead")
	technology := flag.String("technology", "go", "Question technology")
	complexity := flag.String("complexity", interview.ComplexityMedium, "Question complexity")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai|gemini)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	outPath := flag.String("out", "", "Path to write the JSON result (optional)")
	flag.Parse()

	if strings.TrimSpace(*question) == "" {
		exitErr("question is required")
	}
	text := *answer
	if strings.TrimSpace(*answerFile) != "" {
		raw, err := os.ReadFile(*answerFile)
		if err != nil {
			exitErr(fmt.Sprintf("read answer: %v", err))
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		exitErr("answer is required")
	}

	cfg.LLMProvider = *provider
	cfg.LLMModel = *model
	ctx := context.Background()
	evaluator, err := bootstrap.BuildEvaluator(ctx, cfg)
	if err != nil {
		exitErr(err.Error())
	}

	review, err := evaluator.Evaluate(ctx, llm.EvaluateInput{
		Question:   *question,
		Technology: *technology,
		Complexity: *complexity,
		Answer:     text,
	})
	if err != nil {
		exitErr(fmt.Sprintf("llm evaluate: %v", err))
	}

	res := result{Provider: cfg.LLMProvider, Model: cfg.LLMModel, Review: review}
	if score, ok := interview.ParseScore(review); ok {
		res.Score = &score
	}

	pretty, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
