package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// BotClient implements Gateway over an HTTP bot API that speaks the
// usual sendMessage shape: POST JSON, { ok, result, description } back.
type BotClient struct {
	baseURL    string
	token      string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewBotClient creates a gateway pointed at a bot API endpoint
func NewBotClient(baseURL, token string, client *http.Client) *BotClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &BotClient{
		baseURL:    baseURL,
		token:      token,
		client:     client,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

type sendRequest struct {
	ChatID string  `json:"chat_id"`
	Text   string  `json:"text"`
	Action *Action `json:"action,omitempty"`
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters"`
}

// Send delivers a plain text message
func (c *BotClient) Send(ctx context.Context, channel, text string) (string, error) {
	return c.send(ctx, channel, sendRequest{ChatID: channel, Text: text})
}

// SendWithAction delivers a message with one interactive button
func (c *BotClient) SendWithAction(ctx context.Context, channel, text string, action Action) (string, error) {
	return c.send(ctx, channel, sendRequest{ChatID: channel, Text: text, Action: &action})
}

func (c *BotClient) send(ctx context.Context, channel string, payload sendRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling send request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	deliveryID := uuid.New().String()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("building send request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Delivery-ID", deliveryID)

		resp, err := c.client.Do(req)
		if err != nil {
			return "", &DeliveryError{Kind: KindUnknown, Channel: channel, Err: err}
		}

		var out sendResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK && decodeErr == nil && out.OK {
			return fmt.Sprintf("%d", out.Result.MessageID), nil
		}

		kind := classifyResponse(resp.StatusCode, out.Description)
		lastErr = &DeliveryError{
			Kind:    kind,
			Channel: channel,
			Err:     fmt.Errorf("bot api %d: %s", resp.StatusCode, out.Description),
		}

		// Only throttling is worth retrying; everything else is a
		// property of the recipient or the request.
		if kind != KindRateLimited || attempt == c.maxRetries {
			return "", lastErr
		}

		delay := c.retryDelay
		if out.Parameters.RetryAfter > 0 {
			delay = time.Duration(out.Parameters.RetryAfter) * time.Second
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", lastErr
}
