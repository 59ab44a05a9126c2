// Package rewrite translates and rewrites Nepali source articles into simple
// English posts via an OpenAI-compatible chat completion endpoint.
package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sashabaranov/go-openai"

	"github.com/bkhanal/arthapost/pkg/config"
	"github.com/bkhanal/arthapost/pkg/domain"
)

// ErrMalformedResponse indicates the model reply could not be validated into
// the expected {title, body} structure
var ErrMalformedResponse = errors.New("malformed rewrite response")

// ErrNoAPIKey indicates the rewrite credential is absent
var ErrNoAPIKey = errors.New("rewrite api key is not set")

// Rewriter rewrites articles using an LLM
type Rewriter struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string
	sanitizer *bluemonday.Policy
}

// NewRewriter creates a new LLM rewriter
func NewRewriter(cfg config.LLMConfig) *Rewriter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	// use custom system prompt if provided, otherwise use default
	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &Rewriter{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		systemMsg: systemMsg,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// default system prompt for article rewriting
const defaultSystemPrompt = `You are a content translator for a simple-English blog focused on Nepali finance and stock markets.
Your task is to translate the provided Nepali text into simple, easy-to-read English, ensuring the tone is extremely human.

STRICT RULES:
1. DO NOT translate or change Nepali financial terms like 'अर्ब', 'खर्ब', 'करोड', 'लाख'. Keep them exactly as they are in the final body.
2. DO NOT translate the Nepali date (if provided, e.g. '२०८२ मंसिर २ गते'). Keep the date as a separate line if possible, or omit if not applicable.
3. Create a clear and engaging English title.
4. Return ONLY the JSON structure {"title": "...", "body": "..."}. Do not include any text, notes, or markdown formatting outside the JSON object.`

// rewriteResponse is the expected model reply
type rewriteResponse struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Rewrite translates article into a publishable post. The returned content
// carries the rewritten body plus the attribution block for the original
// source. Any failure is an error the pipeline logs and skips on.
func (r *Rewriter) Rewrite(ctx context.Context, article domain.Article) (*domain.RewrittenPost, error) {
	if r.config.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       r.config.Model,
		Temperature: float32(r.config.Temperature),
		MaxTokens:   r.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(article)},
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from llm")
	}

	parsed, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	body := parsed.Body + attribution(article)
	return &domain.RewrittenPost{
		Title:   parsed.Title,
		Content: r.sanitizer.Sanitize(body),
	}, nil
}

// buildPrompt creates the user prompt for the LLM
func buildPrompt(article domain.Article) string {
	var sb strings.Builder
	sb.WriteString("Translate and rewrite the following Nepali content:\n---\n")
	if article.Date != "" {
		sb.WriteString(fmt.Sprintf("Nepali Date: %s\n", article.Date))
	}
	sb.WriteString(fmt.Sprintf("Title: %s\n", article.Title))
	sb.WriteString(fmt.Sprintf("Content: %s\n", article.Content))
	sb.WriteString("---\n\n")
	sb.WriteString(`Please provide the rewritten content in the required JSON format: {"title": "Rewritten English Title", "body": "Rewritten English Content goes here."}`)
	return sb.String()
}

// parseResponse validates the model reply into a title/body pair. Models wrap
// JSON in markdown fences or chatter; the object is located between the first
// '{' and the last '}' and must decode into exactly the two expected fields.
func parseResponse(content string) (*rewriteResponse, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("%w: no json object found", ErrMalformedResponse)
	}

	var parsed rewriteResponse
	dec := json.NewDecoder(strings.NewReader(cleaned[start : end+1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if parsed.Title == "" || parsed.Body == "" {
		return nil, fmt.Errorf("%w: empty title or body", ErrMalformedResponse)
	}
	return &parsed, nil
}

// attribution builds the source citation appended to every post
func attribution(article domain.Article) string {
	var sb strings.Builder
	sb.WriteString("<br/><br/>")
	if article.Date != "" {
		sb.WriteString(fmt.Sprintf("*Nepali Date: %s*<br/>", article.Date))
	}
	sb.WriteString(fmt.Sprintf(`Read full news at: <a href="%s">%s</a>`, article.Link, article.Source))
	return sb.String()
}
