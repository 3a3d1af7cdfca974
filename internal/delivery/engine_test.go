package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/line-broadcast/internal/audience"
	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/line"
)

type pushCall struct {
	to       string
	messages []domain.ProviderMessage
}

type fakeProvider struct {
	mu sync.Mutex

	broadcasts int
	multicasts [][]string
	pushes     []pushCall

	broadcastErr  error
	failChunks    map[int]error // by multicast call index
	failRecipient map[string]error
}

func (f *fakeProvider) Broadcast(_ context.Context, _ []domain.ProviderMessage, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts++
	return f.broadcastErr
}

func (f *fakeProvider) Multicast(_ context.Context, to []string, _ []domain.ProviderMessage, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.multicasts)
	f.multicasts = append(f.multicasts, append([]string(nil), to...))
	return f.failChunks[idx]
}

func (f *fakeProvider) Push(_ context.Context, to string, messages []domain.ProviderMessage, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, pushCall{to: to, messages: messages})
	return f.failRecipient[to]
}

func (f *fakeProvider) ValidRecipientID(id string) bool {
	return line.ValidUserID(id)
}

type nameSubstituter map[string]string

func (n nameSubstituter) Replace(_ context.Context, text, id string) (string, error) {
	name, ok := n[id]
	if !ok {
		return "", errors.New("no such recipient")
	}
	return strings.ReplaceAll(text, "{{name}}", name), nil
}

func userID(i int) string {
	return fmt.Sprintf("U%032x", i)
}

func recipients(n int) []domain.RecipientRef {
	out := make([]domain.RecipientRef, n)
	for i := range out {
		out[i] = domain.RecipientRef{SubscriberID: fmt.Sprint(i), UserID: userID(i)}
	}
	return out
}

func text(s string) []domain.ProviderMessage {
	return []domain.ProviderMessage{{Type: domain.MessageText, Text: s}}
}

func TestBroadcastAll(t *testing.T) {
	p := &fakeProvider{}
	res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{BroadcastAll: true}, text("Hello"), false)

	require.NoError(t, err)
	assert.Equal(t, 1, p.broadcasts)
	assert.Empty(t, p.multicasts)
	assert.Equal(t, ModeBroadcast, res.Mode)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, domain.ExecutionSuccess, res.Status)
	assert.Nil(t, res.ErrorPayload())
}

func TestBroadcastFailureIsTerminal(t *testing.T) {
	p := &fakeProvider{broadcastErr: errors.New("quota exceeded")}
	res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{BroadcastAll: true}, text("Hello"), false)

	assert.ErrorIs(t, err, ErrAllUnitsFailed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, domain.ExecutionFailed, res.Status)
	require.NotNil(t, res.ErrorPayload())
	assert.Equal(t, domain.FailureBroadcast, res.Failures[0].Kind)
	assert.Equal(t, "quota exceeded", res.Failures[0].Reason)
}

func TestMulticastSmallAudience(t *testing.T) {
	p := &fakeProvider{}
	res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: recipients(3)}, text("Hello"), false)

	require.NoError(t, err)
	require.Len(t, p.multicasts, 1)
	assert.Equal(t, []string{userID(0), userID(1), userID(2)}, p.multicasts[0])
	assert.Empty(t, p.pushes)
	assert.Equal(t, 3, res.Success)
	assert.Equal(t, domain.ExecutionSuccess, res.Status)
}

func TestSingleRecipientWithoutPlaceholderUsesMulticast(t *testing.T) {
	p := &fakeProvider{}
	_, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: recipients(1)}, text("Hi {name}"), false)

	require.NoError(t, err)
	assert.Len(t, p.multicasts, 1)
	assert.Empty(t, p.pushes)
}

func TestPersonalizedPush(t *testing.T) {
	p := &fakeProvider{}
	subst := nameSubstituter{userID(0): "Aiko", userID(1): "Ben", userID(2): "Chie"}
	msgs := append(text("Hi {{name}}"), domain.ProviderMessage{Type: domain.MessageImage, OriginalContentURL: "https://e.com/a.png", PreviewImageURL: "https://e.com/a.png"})

	res, err := NewEngine(p, subst, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: recipients(3)}, msgs, false)

	require.NoError(t, err)
	assert.Empty(t, p.multicasts)
	require.Len(t, p.pushes, 3)
	assert.Equal(t, "Hi Aiko", p.pushes[0].messages[0].Text)
	assert.Equal(t, "Hi Ben", p.pushes[1].messages[0].Text)
	assert.Equal(t, "Hi Chie", p.pushes[2].messages[0].Text)
	assert.Equal(t, domain.MessageImage, p.pushes[2].messages[1].Type)
	// The shared template is never mutated.
	assert.Equal(t, "Hi {{name}}", msgs[0].Text)
	assert.Equal(t, ModePush, res.Mode)
	assert.Equal(t, 3, res.Success)
}

func TestChunkFailureContinues(t *testing.T) {
	p := &fakeProvider{failChunks: map[int]error{1: errors.New("502 bad gateway")}}
	res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: recipients(1200)}, text("Sale"), true)

	require.NoError(t, err)
	require.Len(t, p.multicasts, 3)
	assert.Len(t, p.multicasts[0], 500)
	assert.Len(t, p.multicasts[1], 500)
	assert.Len(t, p.multicasts[2], 200)
	assert.Equal(t, 700, res.Success)
	assert.Equal(t, 500, res.Failed)
	assert.Equal(t, domain.ExecutionPartial, res.Status)

	payload := res.ErrorPayload()
	require.NotNil(t, payload)
	require.Len(t, payload.Failures, 1)
	assert.Equal(t, domain.FailureChunk, payload.Failures[0].Kind)
	assert.Equal(t, 1, payload.Failures[0].ChunkIndex)
	assert.Equal(t, 500, payload.Failures[0].Size)
	assert.Equal(t, "500 of 1200 units failed", payload.Message)
}

func TestChunkCountAndInvalidIDs(t *testing.T) {
	for _, n := range []int{1, 499, 500, 501, 1000, 1001, 2345} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			rs := recipients(n)
			rs = append(rs, domain.RecipientRef{UserID: "not-a-line-id"}, domain.RecipientRef{UserID: ""})

			p := &fakeProvider{}
			res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: rs}, text("x"), false)
			require.NoError(t, err)

			assert.Len(t, p.multicasts, (n+499)/500)
			total := 0
			for _, chunk := range p.multicasts {
				assert.LessOrEqual(t, len(chunk), 500)
				for _, id := range chunk {
					assert.True(t, line.ValidUserID(id))
				}
				total += len(chunk)
			}
			assert.Equal(t, n, total)
			assert.Equal(t, 2, res.Skipped)
			assert.Equal(t, n, res.Success)
		})
	}
}

func TestAllChunksFailed(t *testing.T) {
	boom := errors.New("401 unauthorized")
	p := &fakeProvider{failChunks: map[int]error{0: boom, 1: boom}}
	res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: recipients(600)}, text("x"), false)

	assert.ErrorIs(t, err, ErrAllUnitsFailed)
	assert.Equal(t, 600, res.Failed)
	assert.Equal(t, domain.ExecutionFailed, res.Status)
	assert.Len(t, res.Failures, 2)
}

func TestOnlyInvalidIDsFailsWithoutCalls(t *testing.T) {
	p := &fakeProvider{}
	res, err := NewEngine(p, nil, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: []domain.RecipientRef{{UserID: "bogus"}}}, text("x"), false)

	require.NoError(t, err)
	assert.Empty(t, p.multicasts)
	assert.Equal(t, domain.ExecutionFailed, res.Status)
}

func TestPushRecipientFailureContinues(t *testing.T) {
	p := &fakeProvider{failRecipient: map[string]error{userID(1): errors.New("blocked")}}
	subst := nameSubstituter{userID(0): "A", userID(1): "B", userID(3): "D"}

	res, err := NewEngine(p, subst, Options{}).Deliver(context.Background(), audience.Resolution{Recipients: recipients(4)}, text("Hi {{name}}"), false)

	require.NoError(t, err)
	// userID(2) fails substitution and is never pushed.
	assert.Len(t, p.pushes, 3)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, domain.ExecutionPartial, res.Status)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, userID(1), res.Failures[0].RecipientID)
	assert.Equal(t, "blocked", res.Failures[0].Reason)
	assert.Contains(t, res.Failures[1].Reason, "personalize")
}

func TestPushPacingAboveThreshold(t *testing.T) {
	subst := nameSubstituter{}
	for i := 0; i < 4; i++ {
		subst[userID(i)] = "x"
	}
	eng := NewEngine(&fakeProvider{}, subst, Options{PersonalizeThreshold: 3, PacingDelay: 30 * time.Millisecond})

	start := time.Now()
	res, err := eng.Deliver(context.Background(), audience.Resolution{Recipients: recipients(4)}, text("Hi {{name}}"), false)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Success)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestChunk(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, Chunk(ids, 2))
	assert.Nil(t, Chunk(nil, 2))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{ChunkSize: 900}.withDefaults()
	assert.Equal(t, 500, o.ChunkSize)
	assert.Equal(t, 10, o.PersonalizeThreshold)
	assert.Equal(t, 100*time.Millisecond, o.PacingDelay)
}
