// Package message validates campaign message content and converts it into
// LINE message objects.
package message

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/ignite/line-broadcast/internal/domain"
)

// Provider limits.
const (
	MaxMessages    = 5
	MaxTextLength  = 5000
	MaxAltText     = 400
	DefaultAltText = "Flex message"
)

type content struct {
	Text       string          `json:"text"`
	URL        string          `json:"url"`
	PreviewURL string          `json:"preview_url"`
	CoverURL   string          `json:"cover_url"`
	AltText    string          `json:"alt_text"`
	Contents   json.RawMessage `json:"contents"`
}

// Build converts content for msgType into provider messages. content is a
// single JSON object or an array of 1..5 objects of the same type.
// Output is deterministic for identical input.
func Build(msgType domain.MessageType, raw json.RawMessage) ([]domain.ProviderMessage, error) {
	items, err := split(raw)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ProviderMessage, 0, len(items))
	for i, item := range items {
		var c content
		if err := json.Unmarshal(item, &c); err != nil {
			return nil, invalid(i, "", "not an object")
		}
		m, err := buildOne(msgType, i, c)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func split(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, invalid(-1, "", "content is empty")
	}
	if raw[0] != '[' {
		return []json.RawMessage{raw}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalid(-1, "", "malformed content array")
	}
	if len(items) == 0 {
		return nil, invalid(-1, "", "content is empty")
	}
	if len(items) > MaxMessages {
		return nil, invalid(-1, "", "at most %d messages per campaign, got %d", MaxMessages, len(items))
	}
	return items, nil
}

func buildOne(msgType domain.MessageType, i int, c content) (domain.ProviderMessage, error) {
	switch msgType {
	case domain.MessageText:
		if strings.TrimSpace(c.Text) == "" {
			return domain.ProviderMessage{}, invalid(i, "text", "required")
		}
		if n := utf8.RuneCountInString(c.Text); n > MaxTextLength {
			return domain.ProviderMessage{}, invalid(i, "text", "%d characters exceeds limit of %d", n, MaxTextLength)
		}
		return domain.ProviderMessage{Type: domain.MessageText, Text: c.Text}, nil

	case domain.MessageImage:
		original, err := NormalizeURL(c.URL)
		if err != nil {
			return domain.ProviderMessage{}, invalid(i, "url", "%v", err)
		}
		preview := original
		if c.PreviewURL != "" {
			if preview, err = NormalizeURL(c.PreviewURL); err != nil {
				return domain.ProviderMessage{}, invalid(i, "preview_url", "%v", err)
			}
		}
		return domain.ProviderMessage{Type: domain.MessageImage, OriginalContentURL: original, PreviewImageURL: preview}, nil

	case domain.MessageVideo:
		original, err := NormalizeURL(c.URL)
		if err != nil {
			return domain.ProviderMessage{}, invalid(i, "url", "%v", err)
		}
		if c.CoverURL == "" {
			return domain.ProviderMessage{}, invalid(i, "cover_url", "required")
		}
		cover, err := NormalizeURL(c.CoverURL)
		if err != nil {
			return domain.ProviderMessage{}, invalid(i, "cover_url", "%v", err)
		}
		return domain.ProviderMessage{Type: domain.MessageVideo, OriginalContentURL: original, PreviewImageURL: cover}, nil

	case domain.MessageFlex:
		contents, err := flexContents(c.Contents)
		if err != nil {
			return domain.ProviderMessage{}, invalid(i, "contents", "%v", err)
		}
		alt := strings.TrimSpace(c.AltText)
		if alt == "" {
			alt = DefaultAltText
		}
		if utf8.RuneCountInString(alt) > MaxAltText {
			return domain.ProviderMessage{}, invalid(i, "alt_text", "exceeds %d characters", MaxAltText)
		}
		return domain.ProviderMessage{Type: domain.MessageFlex, AltText: alt, Contents: contents}, nil
	}
	return domain.ProviderMessage{}, invalid(-1, "", "unsupported message type %q", msgType)
}

type contentError string

func (e contentError) Error() string { return string(e) }

// flexContents requires a non-empty JSON object and compacts it so repeated
// builds are byte-identical.
func flexContents(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, contentError("must be a JSON object")
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, contentError("malformed JSON object")
	}
	if len(keys) == 0 {
		return nil, contentError("required")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, contentError("malformed JSON object")
	}
	return buf.Bytes(), nil
}
