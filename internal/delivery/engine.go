// Package delivery sends built messages to a resolved audience through the
// provider, honoring per-call caps and tracking partial failure.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/line-broadcast/internal/audience"
	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/personalize"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// ErrAllUnitsFailed is returned when at least one unit was attempted and none
// succeeded. The Result is still populated.
var ErrAllUnitsFailed = errors.New("delivery: every unit failed")

// Provider is the push-messaging backend. *line.Client implements it.
type Provider interface {
	Broadcast(ctx context.Context, messages []domain.ProviderMessage, silent bool) error
	Multicast(ctx context.Context, to []string, messages []domain.ProviderMessage, silent bool) error
	Push(ctx context.Context, to string, messages []domain.ProviderMessage, silent bool) error
	ValidRecipientID(id string) bool
}

// Substituter renders per-recipient parameters into text.
type Substituter interface {
	Replace(ctx context.Context, text, recipientID string) (string, error)
}

// Mode is the provider operation a delivery used.
type Mode string

const (
	ModeBroadcast Mode = "broadcast"
	ModeMulticast Mode = "multicast"
	ModePush      Mode = "push"
)

// Options tunes delivery. Zero values fall back to the defaults.
type Options struct {
	ChunkSize            int
	PersonalizeThreshold int
	PacingDelay          time.Duration
}

const (
	DefaultChunkSize            = 500
	DefaultPersonalizeThreshold = 10
	DefaultPacingDelay          = 100 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 || o.ChunkSize > DefaultChunkSize {
		o.ChunkSize = DefaultChunkSize
	}
	if o.PersonalizeThreshold <= 0 {
		o.PersonalizeThreshold = DefaultPersonalizeThreshold
	}
	if o.PacingDelay <= 0 {
		o.PacingDelay = DefaultPacingDelay
	}
	return o
}

// Result accumulates the outcome of one delivery.
type Result struct {
	Mode     Mode
	Success  int
	Failed   int
	Skipped  int // recipient ids dropped by the provider id check
	Status   domain.ExecutionStatus
	Failures []domain.DeliveryFailure
}

// ErrorPayload summarizes failures for the execution log, nil when clean.
func (r Result) ErrorPayload() *domain.ExecutionError {
	if len(r.Failures) == 0 {
		return nil
	}
	return &domain.ExecutionError{
		Message:  fmt.Sprintf("%d of %d units failed", r.Failed, r.Success+r.Failed),
		Failures: r.Failures,
	}
}

// Engine delivers one execution at a time. It is safe for concurrent use by
// independent executions; each call keeps its own state.
type Engine struct {
	provider Provider
	subst    Substituter
	opts     Options
}

// NewEngine creates a delivery engine.
func NewEngine(provider Provider, subst Substituter, opts Options) *Engine {
	return &Engine{provider: provider, subst: subst, opts: opts.withDefaults()}
}

// Deliver sends messages to the resolved audience. Units are processed
// serially in resolution order and a failed unit never stops the rest.
func (e *Engine) Deliver(ctx context.Context, aud audience.Resolution, messages []domain.ProviderMessage, silent bool) (Result, error) {
	var res Result
	if aud.BroadcastAll {
		e.broadcast(ctx, messages, silent, &res)
	} else {
		ids := e.validIDs(aud.Recipients, &res)
		if NeedsPersonalization(messages) {
			e.push(ctx, ids, messages, silent, &res)
		} else {
			e.multicast(ctx, ids, messages, silent, &res)
		}
	}

	res.Status = domain.DeriveStatus(res.Success, res.Failed)
	logger.Info("delivery finished",
		"component", "delivery",
		"mode", string(res.Mode),
		"success", res.Success,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"status", string(res.Status),
	)
	if res.Success == 0 && res.Failed > 0 {
		return res, ErrAllUnitsFailed
	}
	return res, nil
}

// NeedsPersonalization reports whether any text unit carries a placeholder.
func NeedsPersonalization(messages []domain.ProviderMessage) bool {
	for _, m := range messages {
		if m.Type == domain.MessageText && personalize.HasPlaceholder(m.Text) {
			return true
		}
	}
	return false
}

func (e *Engine) validIDs(recipients []domain.RecipientRef, res *Result) []string {
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if !e.provider.ValidRecipientID(r.UserID) {
			res.Skipped++
			continue
		}
		ids = append(ids, r.UserID)
	}
	if res.Skipped > 0 {
		logger.Warn("dropped malformed recipient ids", "component", "delivery", "count", res.Skipped)
	}
	return ids
}

func (e *Engine) broadcast(ctx context.Context, messages []domain.ProviderMessage, silent bool, res *Result) {
	res.Mode = ModeBroadcast
	if err := e.provider.Broadcast(ctx, messages, silent); err != nil {
		logger.Error("broadcast failed", "component", "delivery", "error", err)
		res.Failed = 1
		res.Failures = append(res.Failures, domain.DeliveryFailure{Kind: domain.FailureBroadcast, Size: 1, Reason: err.Error()})
		return
	}
	res.Success = 1
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}

func (e *Engine) multicast(ctx context.Context, ids []string, messages []domain.ProviderMessage, silent bool, res *Result) {
	res.Mode = ModeMulticast
	for i, chunk := range Chunk(ids, e.opts.ChunkSize) {
		if err := e.provider.Multicast(ctx, chunk, messages, silent); err != nil {
			logger.Warn("multicast chunk failed",
				"component", "delivery",
				"chunk", i,
				"size", len(chunk),
				"error", err,
			)
			res.Failed += len(chunk)
			res.Failures = append(res.Failures, domain.DeliveryFailure{
				Kind:       domain.FailureChunk,
				ChunkIndex: i,
				Size:       len(chunk),
				Reason:     err.Error(),
			})
			continue
		}
		res.Success += len(chunk)
	}
}

func (e *Engine) push(ctx context.Context, ids []string, messages []domain.ProviderMessage, silent bool, res *Result) {
	res.Mode = ModePush

	var limiter *rate.Limiter
	if len(ids) > e.opts.PersonalizeThreshold {
		limiter = rate.NewLimiter(rate.Every(e.opts.PacingDelay), 1)
	}

	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				res.recipientFailed(id, fmt.Errorf("pacing: %w", err))
				continue
			}
		}
		personal, err := e.personalize(ctx, messages, id)
		if err != nil {
			res.recipientFailed(id, err)
			continue
		}
		if err := e.provider.Push(ctx, id, personal, silent); err != nil {
			res.recipientFailed(id, err)
			continue
		}
		res.Success++
	}
}

func (r *Result) recipientFailed(id string, err error) {
	logger.Warn("push failed", "component", "delivery", "recipient", id, "error", err)
	r.Failed++
	r.Failures = append(r.Failures, domain.DeliveryFailure{
		Kind:        domain.FailureRecipient,
		Size:        1,
		RecipientID: id,
		Reason:      err.Error(),
	})
}

func (e *Engine) personalize(ctx context.Context, messages []domain.ProviderMessage, id string) ([]domain.ProviderMessage, error) {
	out := make([]domain.ProviderMessage, len(messages))
	copy(out, messages)
	for i := range out {
		if out[i].Type != domain.MessageText || !personalize.HasPlaceholder(out[i].Text) {
			continue
		}
		text, err := e.subst.Replace(ctx, out[i].Text, id)
		if err != nil {
			return nil, fmt.Errorf("personalize: %w", err)
		}
		out[i].Text = text
	}
	return out, nil
}
