package message

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/line-broadcast/internal/domain"
)

func TestBuildText(t *testing.T) {
	got, err := Build(domain.MessageText, json.RawMessage(`{"text":"Hello"}`))
	require.NoError(t, err)

	want := []domain.ProviderMessage{{Type: domain.MessageText, Text: "Hello"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTextLimit(t *testing.T) {
	ok := `{"text":"` + strings.Repeat("あ", MaxTextLength) + `"}`
	_, err := Build(domain.MessageText, json.RawMessage(ok))
	require.NoError(t, err)

	tooLong := `{"text":"` + strings.Repeat("あ", MaxTextLength+1) + `"}`
	_, err = Build(domain.MessageText, json.RawMessage(tooLong))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "text", verr.Field)
	assert.Equal(t, 0, verr.Index)
}

func TestBuildArray(t *testing.T) {
	got, err := Build(domain.MessageText, json.RawMessage(`[{"text":"one"},{"text":"two"}]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[1].Text)
}

func TestBuildRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		msgType domain.MessageType
		content string
	}{
		{"empty", domain.MessageText, ``},
		{"null", domain.MessageText, `null`},
		{"empty array", domain.MessageText, `[]`},
		{"too many", domain.MessageText, `[{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"},{"text":"6"}]`},
		{"blank text", domain.MessageText, `{"text":"  "}`},
		{"second unit invalid", domain.MessageText, `[{"text":"ok"},{"text":""}]`},
		{"relative image", domain.MessageImage, `{"url":"/img/a.png"}`},
		{"ftp image", domain.MessageImage, `{"url":"ftp://example.com/a.png"}`},
		{"video without cover", domain.MessageVideo, `{"url":"https://example.com/a.mp4"}`},
		{"flex without contents", domain.MessageFlex, `{"alt_text":"hi"}`},
		{"flex empty object", domain.MessageFlex, `{"contents":{}}`},
		{"flex array contents", domain.MessageFlex, `{"contents":[1,2]}`},
		{"unknown type", domain.MessageType("sticker"), `{"text":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.msgType, json.RawMessage(tt.content))
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestBuildImageDefaultsPreview(t *testing.T) {
	got, err := Build(domain.MessageImage, json.RawMessage(`{"url":"https://cdn.example.com/商品/a b.png"}`))
	require.NoError(t, err)

	want := "https://cdn.example.com/%E5%95%86%E5%93%81/a%20b.png"
	assert.Equal(t, want, got[0].OriginalContentURL)
	assert.Equal(t, want, got[0].PreviewImageURL)
}

func TestBuildVideo(t *testing.T) {
	got, err := Build(domain.MessageVideo, json.RawMessage(`{"url":"https://example.com/v.mp4","cover_url":"https://example.com/c.jpg"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v.mp4", got[0].OriginalContentURL)
	assert.Equal(t, "https://example.com/c.jpg", got[0].PreviewImageURL)
}

func TestBuildFlex(t *testing.T) {
	got, err := Build(domain.MessageFlex, json.RawMessage(`{"contents": { "type": "bubble",  "body": {"type":"box"} }}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultAltText, got[0].AltText)
	assert.JSONEq(t, `{"type":"bubble","body":{"type":"box"}}`, string(got[0].Contents))
	assert.Equal(t, `{"type":"bubble","body":{"type":"box"}}`, string(got[0].Contents))
}

func TestBuildIsIdempotent(t *testing.T) {
	inputs := []struct {
		msgType domain.MessageType
		content string
	}{
		{domain.MessageText, `[{"text":"Hi {{name}}"},{"text":"bye"}]`},
		{domain.MessageImage, `{"url":"https://example.com/画像/x.jpg?q=東京&n=1","preview_url":"https://example.com/p.jpg"}`},
		{domain.MessageFlex, `{"alt_text":"sale","contents":{"type":"bubble","hero":{"url":"https://e.com/a.png"}}}`},
	}
	for _, in := range inputs {
		first, err := Build(in.msgType, json.RawMessage(in.content))
		require.NoError(t, err)
		second, err := Build(in.msgType, json.RawMessage(in.content))
		require.NoError(t, err)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.Equal(t, string(a), string(b))
	}
}
