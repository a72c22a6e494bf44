// Package gemini implements integration with Google's Gemini AI API.
// It turns free-form group messages into structured records and answers
// questions over a group's stored history.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/errs"
	"github.com/edgard/zalobot/internal/logger"
)

// Client defines the AI operations used by the bot.
type Client interface {
	// AnalyzeMessage converts message text into a structured payload.
	AnalyzeMessage(ctx context.Context, text string) (*Analysis, error)

	// AnswerQuestion answers question using data as the only source of facts.
	AnswerQuestion(ctx context.Context, data any, question string) (string, error)
}

// generateFunc matches genai's Models.GenerateContent.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type sdkClient struct {
	generate           generateFunc
	log                *slog.Logger
	modelName          string
	temperature        float32
	queryTemperature   float32
	maxOutputTokens    int32
	timeout            time.Duration
	maxRetries         int
	retryDelay         time.Duration
	analyzeInstruction string
	queryInstruction   string
}

// NewClient creates a new Gemini AI client with the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.NewCredentialError("gemini API key is required", nil)
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := newClient(gi.Models.GenerateContent, cfg, log)
	c.log.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return c, nil
}

func newClient(generate generateFunc, cfg config.GeminiConfig, log *slog.Logger) *sdkClient {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	analyze := cfg.AnalyzeInstruction
	if analyze == "" {
		analyze = AnalyzeSystemInstruction
	}
	query := cfg.QueryInstruction
	if query == "" {
		query = QuerySystemInstruction
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultGeminiTimeout
	}
	return &sdkClient{
		generate:           generate,
		log:                log.With("component", "gemini_client"),
		modelName:          cfg.ModelName,
		temperature:        cfg.Temperature,
		queryTemperature:   cfg.QueryTemperature,
		maxOutputTokens:    cfg.MaxOutputTokens,
		timeout:            timeout,
		maxRetries:         cfg.MaxRetries,
		retryDelay:         time.Duration(cfg.RetryDelaySeconds) * time.Second,
		analyzeInstruction: analyze,
		queryInstruction:   query,
	}
}

func (c *sdkClient) contentConfig(instruction string, temperature float32) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(temperature),
		MaxOutputTokens:   c.maxOutputTokens,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
	}
}

// generateContentWithRetries retries 500 and 503 API errors up to maxRetries times.
func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.generate(ctx, c.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr genai.APIError
		var apiErrPtr *genai.APIError
		code := 0
		switch {
		case errors.As(err, &apiErr):
			code = apiErr.Code
		case errors.As(err, &apiErrPtr):
			code = apiErrPtr.Code
		}
		if code != 500 && code != 503 {
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i == c.maxRetries {
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, code, err)
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError", "delay", c.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gemini API call aborted while waiting to retry: %w", ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
	return nil, err
}

// AnalyzeMessage asks the model for the structured form of text. Any failure,
// including the time limit, is reported as an analysis error.
func (c *sdkClient) AnalyzeMessage(ctx context.Context, text string) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	c.log.DebugContext(ctx, "Analyzing message", "length", len(text), "preview", logger.Truncate(text, 200))

	cfg := c.contentConfig(c.analyzeInstruction, c.temperature)
	cfg.ResponseMIMEType = "application/json"
	contents := []*genai.Content{genai.NewContentFromText(fmt.Sprintf(AnalyzeUserPrompt, text), genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.ErrorContext(ctx, "Gemini analysis timed out", "timeout", c.timeout)
			return nil, errs.NewAnalysisError(fmt.Sprintf("gemini timed out after %s", c.timeout), err)
		}
		return nil, errs.NewAnalysisError("gemini analysis failed", err)
	}

	raw, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, errs.NewAnalysisError("gemini returned no usable analysis", err)
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to parse analysis JSON", "error", err, "response_text", logger.Truncate(raw, 500))
		return nil, errs.NewAnalysisError("gemini returned malformed JSON", err)
	}

	c.log.InfoContext(ctx, "Message analyzed successfully",
		"items", len(analysis.Items()), "duration_ms", time.Since(start).Milliseconds())
	return analysis, nil
}

// AnswerQuestion asks the model to answer question from the serialized data.
func (c *sdkClient) AnswerQuestion(ctx context.Context, data any, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", errs.NewAnalysisError("failed to encode query context", err)
	}

	c.log.DebugContext(ctx, "Answering question", "question", question, "context_bytes", len(payload))

	cfg := c.contentConfig(c.queryInstruction, c.queryTemperature)
	contents := []*genai.Content{genai.NewContentFromText(fmt.Sprintf(QueryUserPrompt, payload, question), genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errs.NewAnalysisError(fmt.Sprintf("gemini timed out after %s", c.timeout), err)
		}
		return "", errs.NewAnalysisError("gemini query failed", err)
	}

	answer, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return "", errs.NewAnalysisError("gemini returned no answer", err)
	}
	return answer, nil
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("no content, finish reason: %s", finishReason)
	}

	return resp.Text(), nil
}
