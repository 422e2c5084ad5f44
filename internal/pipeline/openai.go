package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultModel = "gpt-4o-mini"

const systemPromptTemplate = `Summarize the text provided by the user as a TL;DR.

Rules:
- Use at least %d and at most %d tokens.
- Keep only the core idea and critical context (dates, numbers, names).
- Neutral tone, plain prose, no lists.
- Do not repeat phrases.
- Answer in the same language as the input.`

// OpenAILoad returns a LoadFunc backed by an OpenAI-compatible API.
// Loading verifies that the model exists; the verification is the slow step.
func OpenAILoad(apiKey string, baseURL string, extra ...option.RequestOption) LoadFunc {
	return func(ctx context.Context, task string, modelID string) (Handle, error) {
		if task != TaskSummarization {
			return nil, fmt.Errorf("unsupported task %q", task)
		}

		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		opts = append(opts, extra...)

		client := openai.NewClient(opts...)

		if _, err := client.Models.Get(ctx, modelID); err != nil {
			return nil, fmt.Errorf("get model: %w", err)
		}

		return &openAIHandle{client: client, model: modelID}, nil
	}
}

type openAIHandle struct {
	client openai.Client
	model  string
}

// Invoke maps MaxLength to the completion token limit and RepetitionPenalty to
// a frequency penalty. Chat completions have no beam search, so NumBeams is unused.
func (h *openAIHandle) Invoke(
	ctx context.Context,
	text string,
	opts DecodingOptions,
) ([]Candidate, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(h.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPromptTemplate, opts.MinLength, opts.MaxLength)),
			openai.UserMessage(text),
		},
	}
	if opts.MaxLength > 0 {
		params.MaxCompletionTokens = openai.Int(opts.MaxLength)
	}
	if opts.RepetitionPenalty > 1 {
		params.FrequencyPenalty = openai.Float(opts.RepetitionPenalty - 1)
	}

	resp, err := h.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	candidates := make([]Candidate, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		candidates = append(candidates, Candidate{SummaryText: strings.TrimSpace(choice.Message.Content)})
	}

	return candidates, nil
}
