package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Request is one call to the generation capability.
type Request struct {
	System          string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
}

// Response carries the raw generated text plus usage accounting.
type Response struct {
	Text       string
	TokensUsed int
}

// Client is the opaque generation capability.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Gemini API request/response types (unexported).

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *geminiFeedback   `json:"promptFeedback,omitempty"`
	UsageMetadata  *geminiUsage      `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

// GeminiClient implements Client against the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGeminiClient(apiKey, model string, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

// NewGeminiClientWithBase is used by tests to point at a local server.
func NewGeminiClientWithBase(apiKey, model, baseURL string, logger *zap.Logger) *GeminiClient {
	c := NewGeminiClient(apiKey, model, logger)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Generate performs one generateContent call. Failures come back as
// *CallError so callers can branch on the classification.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
		GenerationConfig: &geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &CallError{Kind: KindOther, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Kind: KindOther, Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, &CallError{Kind: KindOther, Message: "parse response", Err: err}
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return nil, &CallError{Kind: KindRefused,
			Message: "prompt blocked: " + genResp.PromptFeedback.BlockReason}
	}
	if len(genResp.Candidates) == 0 {
		return nil, &CallError{Kind: KindOther, Message: "no completion returned"}
	}

	cand := genResp.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return nil, &CallError{Kind: KindRefused, Message: "completion refused: " + cand.FinishReason}
	case "MAX_TOKENS":
		return nil, &CallError{Kind: KindTruncated, Message: "completion truncated at output limit"}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, &CallError{Kind: KindOther, Message: "empty completion"}
	}

	tokens := 0
	if genResp.UsageMetadata != nil {
		tokens = genResp.UsageMetadata.TotalTokenCount
	}

	c.logger.Debug("gemini completion",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(text)),
		zap.Int("tokens", tokens))

	return &Response{Text: text, TokensUsed: tokens}, nil
}

// classifyStatus maps an HTTP failure onto the error taxonomy. Gemini
// reports both billing exhaustion and short-term throttling as 429, so the
// body text decides between the two.
func classifyStatus(status int, body []byte) *CallError {
	msg := strings.TrimSpace(string(body))
	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusTooManyRequests &&
		(strings.Contains(lower, "quota") || strings.Contains(lower, "billing") || strings.Contains(lower, "plan")):
		return &CallError{Kind: KindQuota, Message: msg}
	case status == http.StatusPaymentRequired:
		return &CallError{Kind: KindQuota, Message: msg}
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return &CallError{Kind: KindRateLimited, Message: fmt.Sprintf("status %d: %s", status, msg)}
	default:
		return &CallError{Kind: KindOther, Message: fmt.Sprintf("status %d: %s", status, msg)}
	}
}
