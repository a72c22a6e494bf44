package zalo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/edgard/zalobot/internal/errs"
)

const groupMessagePath = "/v3.0/oa/group/message"

// Credentials are the configured token values passed to the token cache.
type Credentials struct {
	RefreshToken string
	AccessToken  string
}

// Client calls the Zalo OA open API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      *TokenCache
	credentials Credentials
	logger      *slog.Logger
}

// NewClient creates an API client authenticating through tokens.
func NewClient(baseURL string, timeout time.Duration, tokens *TokenCache, creds Credentials, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		tokens:      tokens,
		credentials: creds,
		logger:      logger.With("component", "zalo_client"),
	}
}

// AccessToken returns a valid token using the configured credentials.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.tokens.GetValidToken(ctx, c.credentials.RefreshToken, c.credentials.AccessToken)
}

type groupMessageRequest struct {
	Recipient struct {
		GroupID string `json:"group_id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// APIResponse is the common Zalo OA response envelope.
type APIResponse struct {
	Error   int             `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SendGroupMessage posts a text message to a GMF group.
func (c *Client) SendGroupMessage(ctx context.Context, groupID, text string) error {
	if groupID == "" {
		return errs.NewValidationError("group id is required to send a message", nil)
	}
	if strings.TrimSpace(text) == "" {
		return errs.NewValidationError("message text is empty", nil)
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	var body groupMessageRequest
	body.Recipient.GroupID = groupID
	body.Message.Text = text

	resp, err := c.post(ctx, groupMessagePath, token, body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to send group message", "group_id", groupID, "error", err)
		return err
	}

	c.logger.InfoContext(ctx, "Group message sent", "group_id", groupID, "api_message", resp.Message)
	return nil
}

func (c *Client) post(ctx context.Context, path, token string, payload any) (*APIResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewNetworkError("zalo api request failed", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, errs.NewNetworkError("failed to read zalo api response", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, errs.NewNetworkError(fmt.Sprintf("zalo api returned HTTP %d", httpResp.StatusCode), nil)
	}

	var resp APIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errs.NewNetworkError("failed to decode zalo api response", err)
	}
	if resp.Error != 0 {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return &resp, errs.NewNetworkError(fmt.Sprintf("zalo api error %d: %s", resp.Error, msg), nil)
	}
	return &resp, nil
}
