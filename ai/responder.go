package ai

import (
	apperrors "chat-bridge/errors"

	"bytes"
	"chat-bridge/contract"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Responder calls an OpenAI-compatible chat-completion endpoint. It makes
// exactly one attempt per Reply call; windowing and retry policy live in
// the service above.
type Responder struct {
	client      *http.Client
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

func NewResponder(url, apiKey, model string, timeout time.Duration, log *slog.Logger) *Responder {
	return &Responder{
		client:      &http.Client{Timeout: timeout},
		url:         url,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.7,
		maxTokens:   2000,
		log:         log,
	}
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// apiError carries the HTTP status so the caller can recognize
// token-limit-shaped rejections.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("completion request failed: %d - %s", e.status, e.message)
}

func (s *Responder) Reply(ctx context.Context, turns []contract.Turn) (string, error) {
	payload := completionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	for _, t := range turns {
		payload.Messages = append(payload.Messages, completionMessage{Role: t.Role, Content: t.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var completion completionResponse
	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &completion) == nil && completion.Error != nil {
			message = completion.Error.Message
		}
		return "", &apiError{status: resp.StatusCode, message: message}
	}
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", apperrors.ErrEmptyReply
	}
	if completion.Choices[0].FinishReason == "length" {
		s.log.Warn("reply may have been truncated by the token limit")
	}
	return completion.Choices[0].Message.Content, nil
}

// IsTokenLimit recognizes the token-limit-shaped failures that warrant
// one retry with a shrunk history window.
func IsTokenLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.status == http.StatusBadRequest {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "token") || strings.Contains(lower, "length") ||
		strings.Contains(lower, "context")
}
