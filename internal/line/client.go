// Package line is a minimal LINE Messaging API client for the push endpoints
// used by campaign delivery plus the read-only quota endpoints.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ignite/line-broadcast/internal/config"
	"github.com/ignite/line-broadcast/internal/domain"
)

// Per-call limits enforced by the provider.
const (
	MaxRecipients = 500
	MaxMessages   = 5
)

var (
	ErrNoRecipients      = errors.New("line: no recipients")
	ErrTooManyRecipients = fmt.Errorf("line: more than %d recipients", MaxRecipients)
	ErrNoMessages        = errors.New("line: no messages")
	ErrTooManyMessages   = fmt.Errorf("line: more than %d messages", MaxMessages)
	ErrNoCredential      = errors.New("line: no channel access token or client credentials configured")
)

var userIDPattern = regexp.MustCompile(`^U[0-9a-f]{32}$`)

// ValidUserID reports whether id has the shape of a LINE user id.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// Client is a LINE Messaging API client. Calls are never retried; each one
// carries a fresh X-Line-Retry-Key so a caller-driven retry stays idempotent.
type Client struct {
	baseURL    string
	httpClient *http.Client
	newKey     func() string
}

// NewClient builds a client from config. A static channel access token wins
// over channel id/secret, which are exchanged with client credentials.
func NewClient(cfg config.LINEConfig) (*Client, error) {
	var ts oauth2.TokenSource
	switch {
	case cfg.ChannelAccessToken != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.ChannelAccessToken, TokenType: "Bearer"})
	case cfg.ChannelID != "" && cfg.ChannelSecret != "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ChannelID,
			ClientSecret: cfg.ChannelSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		ts = cc.TokenSource(context.Background())
	default:
		return nil, ErrNoCredential
	}
	return newClient(cfg.BaseURL, ts, cfg.Timeout()), nil
}

func newClient(baseURL string, ts oauth2.TokenSource, timeout time.Duration) *Client {
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = timeout
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		newKey:     uuid.NewString,
	}
}

// ValidRecipientID implements the delivery provider contract.
func (c *Client) ValidRecipientID(id string) bool {
	return ValidUserID(id)
}

type broadcastRequest struct {
	Messages             []domain.ProviderMessage `json:"messages"`
	NotificationDisabled bool                     `json:"notificationDisabled"`
}

type multicastRequest struct {
	To                   []string                 `json:"to"`
	Messages             []domain.ProviderMessage `json:"messages"`
	NotificationDisabled bool                     `json:"notificationDisabled"`
}

type pushRequest struct {
	To                   string                   `json:"to"`
	Messages             []domain.ProviderMessage `json:"messages"`
	NotificationDisabled bool                     `json:"notificationDisabled"`
}

// Broadcast sends messages to every follower of the channel.
func (c *Client) Broadcast(ctx context.Context, messages []domain.ProviderMessage, silent bool) error {
	if err := checkMessages(messages); err != nil {
		return err
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/v2/bot/message/broadcast", broadcastRequest{
		Messages:             messages,
		NotificationDisabled: silent,
	}, true)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	return nil
}

// Multicast sends messages to up to MaxRecipients user ids.
func (c *Client) Multicast(ctx context.Context, to []string, messages []domain.ProviderMessage, silent bool) error {
	switch {
	case len(to) == 0:
		return ErrNoRecipients
	case len(to) > MaxRecipients:
		return ErrTooManyRecipients
	}
	if err := checkMessages(messages); err != nil {
		return err
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/v2/bot/message/multicast", multicastRequest{
		To:                   to,
		Messages:             messages,
		NotificationDisabled: silent,
	}, true)
	if err != nil {
		return fmt.Errorf("multicast %d recipients: %w", len(to), err)
	}
	return nil
}

// Push sends messages to a single user.
func (c *Client) Push(ctx context.Context, to string, messages []domain.ProviderMessage, silent bool) error {
	if to == "" {
		return ErrNoRecipients
	}
	if err := checkMessages(messages); err != nil {
		return err
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/v2/bot/message/push", pushRequest{
		To:                   to,
		Messages:             messages,
		NotificationDisabled: silent,
	}, true)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

func checkMessages(messages []domain.ProviderMessage) error {
	switch {
	case len(messages) == 0:
		return ErrNoMessages
	case len(messages) > MaxMessages:
		return ErrTooManyMessages
	}
	return nil
}

// doRequest makes an HTTP request to the Messaging API
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}, retryKey bool) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if retryKey {
		req.Header.Set("X-Line-Retry-Key", c.newKey())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp, respBody)
	}
	return respBody, nil
}
