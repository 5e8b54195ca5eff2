package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qri-io/jsonschema"
)

var (
	ErrValidation = errors.New("validation error")
	ErrGeneration = errors.New("summary generation failed")
)

const defaultTimeout = 30 * time.Second

const systemPrompt = "You are a Gen-Z social media expert who writes fun, engaging profile summaries. Always respond with valid JSON only."

// outputSchema pins the shape handed back to clients.
const outputSchema = `{
	"type": "object",
	"required": ["intro", "outro"],
	"properties": {
		"intro": {
			"type": "array",
			"minItems": 3,
			"maxItems": 3,
			"items": {"type": "string"}
		},
		"outro": {"type": "string"}
	}
}`

// Generator sends one system+user prompt pair to a model and returns its raw text.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type Summary struct {
	Intro []string `json:"intro"`
	Outro string   `json:"outro"`
}

type Service struct {
	generator Generator
	schema    *jsonschema.Schema
	timeout   time.Duration
}

func NewService(generator Generator, timeout time.Duration) (*Service, error) {
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is nil", ErrValidation)
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(outputSchema), rs); err != nil {
		return nil, fmt.Errorf("parse summary schema: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		generator: generator,
		schema:    rs,
		timeout:   timeout,
	}, nil
}

func (s *Service) Generate(ctx context.Context, answers map[string]string, interests []string) (Summary, error) {
	if answers == nil || interests == nil {
		return Summary{}, ErrValidation
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.Complete(callCtx, systemPrompt, buildPrompt(answers, interests))
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	payload := []byte(stripCodeFence(raw))
	verrs, err := s.schema.ValidateBytes(callCtx, payload)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: decode output: %w", ErrGeneration, err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(" ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return Summary{}, fmt.Errorf("%w: output does not match schema: %s", ErrGeneration, sb.String())
	}

	var out Summary
	if err := json.Unmarshal(payload, &out); err != nil {
		return Summary{}, fmt.Errorf("%w: decode output: %w", ErrGeneration, err)
	}
	return out, nil
}

func buildPrompt(answers map[string]string, interests []string) string {
	keys := make([]string, 0, len(answers))
	for key := range answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+": "+answers[key])
	}

	var b strings.Builder
	b.WriteString("write a gen-z style profile summary in all lowercase. return 3 short intro paragraphs and a 1-line outro. keep it friendly and playful. use the user's answers and interests.\n\n")
	b.WriteString("User interests: ")
	b.WriteString(strings.Join(interests, ", "))
	b.WriteString("\nUser answers: ")
	b.WriteString(strings.Join(pairs, ", "))
	b.WriteString("\n\nrespond as json: {\"intro\":[p1,p2,p3], \"outro\": s}.")
	return b.String()
}

// stripCodeFence unwraps ```json blocks some models emit despite JSON mode.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
