package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIGenerator talks to any Chat Completions compatible endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

type openAISettings struct {
	baseURL     string
	httpClient  *http.Client
	temperature float64
	maxTokens   int
}

type OpenAIOption func(*openAISettings)

func WithBaseURL(baseURL string) OpenAIOption {
	return func(s *openAISettings) {
		s.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) OpenAIOption {
	return func(s *openAISettings) {
		s.httpClient = httpClient
	}
}

func WithSampling(temperature float64, maxTokens int) OpenAIOption {
	return func(s *openAISettings) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

func NewOpenAIGenerator(apiKey, model string, opts ...OpenAIOption) (*OpenAIGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = openai.ChatModelGPT3_5Turbo
	}

	settings := openAISettings{
		baseURL:     defaultOpenAIBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		temperature: 0.8,
		maxTokens:   500,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(apiBaseURL(settings.baseURL)),
		// The summary service already bounds the whole call with its own deadline.
		option.WithMaxRetries(0),
	}
	if settings.httpClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(settings.httpClient))
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(requestOpts...),
		model:       model,
		temperature: settings.temperature,
		maxTokens:   int64(settings.maxTokens),
	}, nil
}

// apiBaseURL accepts a host with or without the /v1 suffix.
func apiBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

func (g *OpenAIGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(g.maxTokens)
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai: empty content")
	}
	return content, nil
}
