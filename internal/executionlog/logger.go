// Package executionlog records one auditable row per campaign execution.
//
// A row is written as pending before any provider call so that a crash
// mid-delivery still leaves a trace, then closed exactly once with the
// final counters.
package executionlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

var (
	// ErrLogClosed is returned when closing a log that already left pending.
	ErrLogClosed = errors.New("execution log already closed")
	// ErrInvalidStatus is returned for a non-terminal or inconsistent close status.
	ErrInvalidStatus = errors.New("invalid execution status")
)

// Store persists execution logs.
type Store interface {
	Insert(ctx context.Context, log *domain.ExecutionLog) error
	// Close moves a pending row to its terminal state. It reports false if
	// the row was not pending.
	Close(ctx context.Context, id string, success, failed int, status domain.ExecutionStatus, payload *domain.ExecutionError, closedAt time.Time) (bool, error)
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]domain.ExecutionLog, error)
}

// Handle identifies an open execution log.
type Handle struct {
	ID         string
	CampaignID string

	mu     sync.Mutex
	closed bool
}

// Logger opens and closes execution logs.
type Logger struct {
	store Store
	now   func() time.Time
}

// New creates a Logger backed by store.
func New(store Store) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Open persists a pending log with a snapshot of the campaign as it is now.
func (l *Logger) Open(ctx context.Context, c *domain.Campaign, targetCount int, execType domain.ExecutionType, executedBy string) (*Handle, error) {
	entry := &domain.ExecutionLog{
		ID:            uuid.NewString(),
		CampaignID:    c.ID,
		ExecutedAt:    l.now().UTC(),
		ExecutedBy:    executedBy,
		ExecutionType: execType,
		Snapshot:      Snapshot(c),
		TargetCount:   targetCount,
		Status:        domain.ExecutionPending,
	}
	if err := l.store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}
	logger.Info("execution log opened",
		"component", "executionlog",
		"log_id", entry.ID,
		"campaign_id", c.ID,
		"type", string(execType),
		"target", targetCount,
	)
	return &Handle{ID: entry.ID, CampaignID: c.ID}, nil
}

// Close records the outcome. A second close on the same handle, or on a row
// that is no longer pending, returns ErrLogClosed.
func (l *Logger) Close(ctx context.Context, h *Handle, success, failed int, status domain.ExecutionStatus, payload *domain.ExecutionError) error {
	if !status.IsTerminal() || status != domain.DeriveStatus(success, failed) {
		return fmt.Errorf("%w: %s for %d/%d", ErrInvalidStatus, status, success, failed)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrLogClosed
	}

	ok, err := l.store.Close(ctx, h.ID, success, failed, status, payload, l.now().UTC())
	if err != nil {
		return fmt.Errorf("close execution log: %w", err)
	}
	h.closed = true
	if !ok {
		return ErrLogClosed
	}
	logger.Info("execution log closed",
		"component", "executionlog",
		"log_id", h.ID,
		"campaign_id", h.CampaignID,
		"status", string(status),
		"success", success,
		"failed", failed,
	)
	return nil
}

// List returns the most recent logs of a campaign.
func (l *Logger) List(ctx context.Context, campaignID string, limit, offset int) ([]domain.ExecutionLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.store.ListByCampaign(ctx, campaignID, limit, offset)
}

// Snapshot copies the fields that must stay readable after the campaign is edited.
func Snapshot(c *domain.Campaign) domain.ExecutionSnapshot {
	tree := make(domain.FilterTree, len(c.FilterTree))
	for gid, conds := range c.FilterTree {
		tree[gid] = append([]domain.FilterCondition(nil), conds...)
	}
	return domain.ExecutionSnapshot{
		CampaignName:   c.Name,
		AudienceType:   c.AudienceType,
		FilterTree:     tree,
		MessageType:    c.MessageType,
		MessageContent: append([]byte(nil), c.MessageContent...),
	}
}
