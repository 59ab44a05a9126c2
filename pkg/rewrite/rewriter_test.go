package rewrite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkhanal/arthapost/pkg/config"
	"github.com/bkhanal/arthapost/pkg/domain"
)

func TestRewriter_Rewrite(t *testing.T) {
	article := domain.Article{
		UniqueID: "json_7",
		Title:    "सेयर बजार समाचार",
		Content:  "नेप्से १ अर्ब माथि",
		Link:     "http://b/7",
		Date:     "२०८२ मंसिर २ गते",
		Source:   "bajarkochirfar.com",
	}

	t.Run("successful rewrite with attribution", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req openai.ChatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 2)
			assert.Contains(t, req.Messages[1].Content, "Nepali Date: २०८२ मंसिर २ गते")
			assert.Contains(t, req.Messages[1].Content, "Title: सेयर बजार समाचार")

			resp := openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{
						Content: "```json\n{\"title\": \"NEPSE Crosses 1 अर्ब\", \"body\": \"The market moved up by 1 अर्ब today.\"}\n```",
					},
				}},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		r := NewRewriter(config.LLMConfig{
			Endpoint:    server.URL + "/v1",
			APIKey:      "test-key",
			Model:       "gemini-2.0-flash",
			Temperature: 0.3,
			MaxTokens:   2000,
			Timeout:     5 * time.Second,
		})

		post, err := r.Rewrite(context.Background(), article)
		require.NoError(t, err)
		assert.Equal(t, "NEPSE Crosses 1 अर्ब", post.Title)
		assert.Contains(t, post.Content, "The market moved up by 1 अर्ब today.")
		assert.Contains(t, post.Content, "*Nepali Date: २०८२ मंसिर २ गते*")
		assert.Contains(t, post.Content, "Read full news at:")
		assert.Contains(t, post.Content, `href="http://b/7"`)
		assert.Contains(t, post.Content, "bajarkochirfar.com</a>")
	})

	t.Run("no date omits the date tag", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openai.ChatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotContains(t, req.Messages[1].Content, "Nepali Date:")

			resp := openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{Content: `{"title": "T", "body": "B"}`},
				}},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		r := NewRewriter(config.LLMConfig{
			Endpoint: server.URL + "/v1", APIKey: "test-key", Model: "gemini-2.0-flash", Timeout: 5 * time.Second,
		})

		noDate := article
		noDate.Date = ""
		post, err := r.Rewrite(context.Background(), noDate)
		require.NoError(t, err)
		assert.NotContains(t, post.Content, "Nepali Date")
	})

	t.Run("missing api key fails without calling upstream", func(t *testing.T) {
		r := NewRewriter(config.LLMConfig{Model: "gemini-2.0-flash", Timeout: 5 * time.Second})
		_, err := r.Rewrite(context.Background(), article)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})

	t.Run("upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		r := NewRewriter(config.LLMConfig{
			Endpoint: server.URL + "/v1", APIKey: "test-key", Model: "gemini-2.0-flash", Timeout: 5 * time.Second,
		})
		_, err := r.Rewrite(context.Background(), article)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm request failed")
	})

	t.Run("malformed reply is a named failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{Content: "sorry, cannot rewrite this"},
				}},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		r := NewRewriter(config.LLMConfig{
			Endpoint: server.URL + "/v1", APIKey: "test-key", Model: "gemini-2.0-flash", Timeout: 5 * time.Second,
		})
		_, err := r.Rewrite(context.Background(), article)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		parsed, err := parseResponse(`{"title": "T", "body": "B"}`)
		require.NoError(t, err)
		assert.Equal(t, "T", parsed.Title)
		assert.Equal(t, "B", parsed.Body)
	})

	t.Run("fenced json with wrapping text", func(t *testing.T) {
		parsed, err := parseResponse("Here you go:\n```json\n{\"title\": \"T\", \"body\": \"B\"}\n```\nEnjoy!")
		require.NoError(t, err)
		assert.Equal(t, "T", parsed.Title)
	})

	t.Run("no json object", func(t *testing.T) {
		_, err := parseResponse("no structured data here")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("unexpected fields rejected", func(t *testing.T) {
		_, err := parseResponse(`{"title": "T", "body": "B", "extra": 1}`)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("empty title rejected", func(t *testing.T) {
		_, err := parseResponse(`{"title": "", "body": "B"}`)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("empty body rejected", func(t *testing.T) {
		_, err := parseResponse(`{"title": "T", "body": ""}`)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestAttribution(t *testing.T) {
	t.Run("with date", func(t *testing.T) {
		got := attribution(domain.Article{Link: "http://a/1", Source: "nepsestock.com", Date: "२०८२ मंसिर २ गते"})
		assert.Equal(t, `<br/><br/>*Nepali Date: २०८२ मंसिर २ गते*<br/>Read full news at: <a href="http://a/1">nepsestock.com</a>`, got)
	})

	t.Run("without date", func(t *testing.T) {
		got := attribution(domain.Article{Link: "http://a/1", Source: "nepsestock.com"})
		assert.Equal(t, `<br/><br/>Read full news at: <a href="http://a/1">nepsestock.com</a>`, got)
	})
}
