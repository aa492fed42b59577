package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"
	"maildigest-service/pkg/logger"
)

const anthropicVersion = "2023-06-01"

// AnthropicSummarizer calls the Anthropic Messages API with bounded retry
// and backoff, and validates the response against the report schema.
// Diagnostics never include the API key, prompts, or response bodies, only
// lengths and status codes.
type AnthropicSummarizer struct {
	logger      logger.Logger
	client      *http.Client
	wait        func(context.Context, time.Duration) error
	baseURL     string
	apiKey      string
	model       string
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
}

// NewAnthropicSummarizer creates a new Anthropic summarizer. maxRetries is
// the total attempt budget (default 3); backoffBase doubles per attempt up
// to backoffMax.
func NewAnthropicSummarizer(baseURL, apiKey, model string, timeout time.Duration, maxRetries int, backoffBase, backoffMax time.Duration, logger logger.Logger) repository.SummarizerRepository {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &AnthropicSummarizer{
		logger:      logger,
		client:      &http.Client{Timeout: timeout},
		wait:        waitBackoff,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		backoffMax:  backoffMax,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Summarize runs the retry loop: transient failures back off and retry up to
// the attempt budget, non-retriable failures surface immediately. The last
// error class is always carried on the returned *entity.GenerationError.
func (r *AnthropicSummarizer) Summarize(ctx context.Context, request *entity.GenerationRequest) (*entity.GenerationResult, error) {
	delay := r.backoffBase

	for attempt := 1; ; attempt++ {
		r.logger.Info("Calling generation service",
			"attempt", attempt,
			"maxRetries", r.maxRetries,
			"systemChars", len(request.SystemPrompt),
			"userChars", len(request.UserPrompt))

		result, genErr := r.attempt(ctx, request)
		if genErr == nil {
			return result, nil
		}
		genErr.Attempts = attempt

		if !genErr.Retriable() || attempt >= r.maxRetries {
			r.logger.Error("Generation call failed",
				"class", genErr.Class,
				"status", genErr.Status,
				"attempts", genErr.Attempts)
			return nil, genErr
		}

		r.logger.Warn("Transient generation failure, backing off",
			"class", genErr.Class,
			"status", genErr.Status,
			"attempt", attempt,
			"delayMs", delay.Milliseconds())
		if err := r.wait(ctx, delay); err != nil {
			genErr.Class = entity.FailureTimeout
			genErr.Message = "context cancelled during backoff"
			return nil, genErr
		}
		delay *= 2
		if delay > r.backoffMax {
			delay = r.backoffMax
		}
	}
}

// waitBackoff sleeps for the delay unless the context is cancelled first.
func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// attempt performs one HTTP round trip and classifies its outcome.
func (r *AnthropicSummarizer) attempt(ctx context.Context, request *entity.GenerationRequest) (*entity.GenerationResult, *entity.GenerationError) {
	payload := anthropicRequest{
		Model:       r.model,
		MaxTokens:   4096,
		Temperature: 0.3,
		System:      request.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: request.UserPrompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &entity.GenerationError{
			Class:   entity.FailureBadRequest,
			Message: fmt.Sprintf("failed to marshal request: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, &entity.GenerationError{
			Class:   entity.FailureBadRequest,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("x-api-key", r.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		class := entity.FailureServer
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			class = entity.FailureTimeout
		}
		return nil, &entity.GenerationError{
			Class:   class,
			Message: "transport error calling generation service",
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &entity.GenerationError{
			Class:   entity.FailureServer,
			Status:  resp.StatusCode,
			Message: "failed to read response body",
		}
	}

	r.logger.Debug("Generation service responded",
		"status", resp.StatusCode,
		"bodyChars", len(respBody))

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	return r.parseResult(respBody, resp.StatusCode)
}

// parseResult decodes the API envelope and validates the embedded report.
// Any malformed output is a validation failure: retrying an identical prompt
// against a non-deterministic generator is not a recovery strategy, so the
// run aborts instead.
func (r *AnthropicSummarizer) parseResult(respBody []byte, status int) (*entity.GenerationResult, *entity.GenerationError) {
	var envelope anthropicResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &entity.GenerationError{
			Class:   entity.FailureValidation,
			Status:  status,
			Message: "response envelope is not valid JSON",
		}
	}
	if len(envelope.Content) == 0 {
		return nil, &entity.GenerationError{
			Class:   entity.FailureValidation,
			Status:  status,
			Message: "response envelope has no content blocks",
		}
	}

	text := extractJSON(envelope.Content[0].Text)
	var result entity.GenerationResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, &entity.GenerationError{
			Class:   entity.FailureValidation,
			Status:  status,
			Message: "generated output is not valid JSON",
		}
	}

	if err := result.Validate(); err != nil {
		return nil, &entity.GenerationError{
			Class:   entity.FailureValidation,
			Status:  status,
			Message: fmt.Sprintf("generated output violates schema: %v", err),
		}
	}

	return &result, nil
}

func classifyStatus(status int) *entity.GenerationError {
	var class string
	switch {
	case status == http.StatusTooManyRequests:
		class = entity.FailureRateLimited
	case status >= 500:
		class = entity.FailureServer
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		class = entity.FailureAuth
	default:
		class = entity.FailureBadRequest
	}
	return &entity.GenerationError{
		Class:   class,
		Status:  status,
		Message: fmt.Sprintf("generation service returned status %d", status),
	}
}

// extractJSON tolerates a markdown code fence or leading prose around the
// JSON object the model was asked for.
func extractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
