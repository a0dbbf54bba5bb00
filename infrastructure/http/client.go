package http

import (
	"bytes"
	"chat-bridge/contract"
	"chat-bridge/domain"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// GatewayClient is the remote implementation of the room gateway,
// talking to a bridge server over its participant API.
type GatewayClient struct {
	client  *http.Client
	baseURL string
	log     *slog.Logger
}

func NewGatewayClient(baseURL string, timeout time.Duration, log *slog.Logger) *GatewayClient {
	return &GatewayClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		log:     log,
	}
}

// Status polls the room status. Transport failures downgrade to the
// unknown report; the poll loop retries on the next tick.
func (g *GatewayClient) Status(ctx context.Context, code string) domain.StatusReport {
	var report domain.StatusReport
	err := g.get(ctx, fmt.Sprintf("/api/rooms/%s/status", url.PathEscape(code)), &report)
	if err != nil {
		g.log.Warn("status poll failed", "room", code, "err", err)
		return domain.UnknownStatus()
	}
	return report
}

func (g *GatewayClient) VisibleMessages(ctx context.Context, code, userID string) ([]domain.Message, error) {
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/rooms/%s/messages?userId=%s", url.PathEscape(code), url.QueryEscape(userID))
	if err := g.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func (g *GatewayClient) Dispatch(ctx context.Context, code string) contract.DispatchResult {
	var result contract.DispatchResult
	err := g.post(ctx, fmt.Sprintf("/api/rooms/%s/dispatch", url.PathEscape(code)), nil, &result)
	if err != nil {
		g.log.Warn("dispatch call failed", "room", code, "err", err)
		return contract.DispatchResult{Reason: "error"}
	}
	return result
}

// Allocate asks the server for a fresh room code and user identity.
func (g *GatewayClient) Allocate(ctx context.Context) (code, userID string, err error) {
	var body struct {
		Code   string `json:"code"`
		UserID string `json:"userId"`
	}
	if err := g.post(ctx, "/api/rooms", nil, &body); err != nil {
		return "", "", err
	}
	return body.Code, body.UserID, nil
}

// Join enters a user into a room through the remote API.
func (g *GatewayClient) Join(ctx context.Context, code, userID string, model domain.ConversationModel, role domain.Role) error {
	payload := map[string]string{
		"code":   code,
		"userId": userID,
		"model":  string(model),
		"role":   string(role),
	}
	return g.post(ctx, "/api/rooms/join", payload, nil)
}

// Send submits a user message.
func (g *GatewayClient) Send(ctx context.Context, code, userID, text string) ([]domain.Message, error) {
	payload := map[string]string{"userId": userID, "text": text}
	var body struct {
		Replies []domain.Message `json:"replies"`
	}
	path := fmt.Sprintf("/api/rooms/%s/messages", url.PathEscape(code))
	if err := g.post(ctx, path, payload, &body); err != nil {
		return nil, err
	}
	return body.Replies, nil
}

func (g *GatewayClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *GatewayClient) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *GatewayClient) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("%s %s: %d - %s", req.Method, req.URL.Path, resp.StatusCode, failure.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
