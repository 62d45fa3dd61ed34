package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lucasvieira/zapcamp/internal/config"
)

// SendResult is the structured outcome of one gateway send. Transport
// failures, timeouts and provider rejections all land in Error so callers
// can keep iterating; the client never panics or returns a fatal error for
// a single message.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SessionState struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	QRCode      string `json:"qrcode,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
	ProfilePic  string `json:"profile_pic,omitempty"`
}

// Client talks to a WAHA-style WhatsApp gateway. All connection settings
// come from the config struct at construction time.
type Client struct {
	baseURL     string
	apiKey      string
	countryCode string
	client      *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		countryCode: cfg.CountryCode,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// NormalizePhone strips everything but digits and prepends the default
// country code when the number does not already start with it. The returned
// value is the digits-only form the gateway expects, without the chat suffix.
func (c *Client) NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if c.countryCode != "" && !strings.HasPrefix(digits, c.countryCode) {
		digits = c.countryCode + digits
	}
	return digits
}

// SendText delivers one text message through the given session.
func (c *Client) SendText(ctx context.Context, session, phone, text string) *SendResult {
	chatID := c.NormalizePhone(phone) + "@c.us"

	body, err := c.request(ctx, http.MethodPost, "/api/sendText", map[string]interface{}{
		"session": session,
		"chatId":  chatID,
		"text":    text,
	})
	if err != nil {
		return &SendResult{Success: false, Error: err.Error()}
	}

	var resp struct {
		ID string `json:"id"`
	}
	json.Unmarshal(body, &resp)

	return &SendResult{Success: true, MessageID: resp.ID}
}

// CreateSession registers a new session with the gateway.
func (c *Client) CreateSession(ctx context.Context, name string) (string, error) {
	body, err := c.request(ctx, http.MethodPost, "/api/sessions", map[string]interface{}{
		"name": name,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Name string `json:"name"`
	}
	json.Unmarshal(body, &resp)
	if resp.Name == "" {
		resp.Name = name
	}
	return resp.Name, nil
}

// StartSession starts the session and fetches the pairing QR code.
func (c *Client) StartSession(ctx context.Context, name string) (string, error) {
	if _, err := c.request(ctx, http.MethodPost, "/api/sessions/"+name+"/start", nil); err != nil {
		return "", err
	}

	body, err := c.request(ctx, http.MethodGet, "/api/"+name+"/auth/qr?format=raw", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Value string `json:"value"`
	}
	json.Unmarshal(body, &resp)
	if resp.Value == "" {
		resp.Value = string(body)
	}
	return resp.Value, nil
}

// SessionStatus fetches the current state of a session from the gateway.
func (c *Client) SessionStatus(ctx context.Context, name string) (*SessionState, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/sessions/"+name, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status string `json:"status"`
		Me     struct {
			PushName      string `json:"pushName"`
			ProfilePicURL string `json:"profilePicUrl"`
		} `json:"me"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid gateway response: %w", err)
	}

	state := &SessionState{
		Name:        name,
		Status:      mapSessionStatus(resp.Status),
		ProfileName: resp.Me.PushName,
		ProfilePic:  resp.Me.ProfilePicURL,
	}
	return state, nil
}

// StopSession disconnects the session at the gateway.
func (c *Client) StopSession(ctx context.Context, name string) error {
	_, err := c.request(ctx, http.MethodPost, "/api/sessions/"+name+"/stop", nil)
	return err
}

func mapSessionStatus(s string) string {
	switch strings.ToUpper(s) {
	case "WORKING":
		return "connected"
	case "STARTING":
		return "connecting"
	case "SCAN_QR_CODE":
		return "qrcode"
	default:
		return "disconnected"
	}
}

func (c *Client) request(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr struct {
			Message string `json:"message"`
		}
		json.Unmarshal(body, &gwErr)
		if gwErr.Message != "" {
			return nil, fmt.Errorf("gateway error: %s", gwErr.Message)
		}
		return nil, fmt.Errorf("gateway error: status %d", resp.StatusCode)
	}

	return body, nil
}
