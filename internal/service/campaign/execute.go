package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/line-broadcast/internal/delivery"
	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/executionlog"
	"github.com/ignite/line-broadcast/internal/message"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// Execute runs one campaign execution end to end and returns its closed log.
//
// Delivery runs on a context detached from ctx: once the log is open the
// execution always reaches a terminal status, even if the caller goes away.
// When every unit failed the log is still returned together with
// delivery.ErrAllUnitsFailed.
func (s *Service) Execute(ctx context.Context, campaignID string, execType domain.ExecutionType, executedBy string) (*domain.ExecutionLog, error) {
	if s.deps.Delivery == nil {
		return nil, fmt.Errorf("delivery: %w", ErrNotConfigured)
	}
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	aud, err := s.deps.Resolver.Resolve(ctx, c)
	if err != nil {
		s.markFailed(ctx, c.ID, "resolve", err)
		return nil, fmt.Errorf("resolve audience: %w", err)
	}

	msgs, err := message.Build(c.MessageType, c.MessageContent)
	if err != nil {
		s.markFailed(ctx, c.ID, "build", err)
		return nil, fmt.Errorf("build messages: %w", err)
	}

	executedAt := s.now().UTC()
	h, err := s.deps.Logs.Open(ctx, c, aud.TargetCount(), execType, executedBy)
	if err != nil {
		s.markFailed(ctx, c.ID, "open log", err)
		return nil, err
	}

	dctx := context.WithoutCancel(ctx)
	res, deliverErr := s.deps.Delivery.Deliver(dctx, aud, msgs, c.NotifySilently)
	payload := res.ErrorPayload()

	if err := s.deps.Logs.Close(dctx, h, res.Success, res.Failed, res.Status, payload); err != nil {
		logger.Error("close execution log failed",
			"component", "campaign",
			"campaign_id", c.ID,
			"execution_id", h.ID,
			"error", err)
		s.markFailed(dctx, c.ID, "close log", err)
		return nil, err
	}

	s.recordOutcome(dctx, c, execType, res.Status)

	entry := &domain.ExecutionLog{
		ID:            h.ID,
		CampaignID:    c.ID,
		ExecutedAt:    executedAt,
		ExecutedBy:    executedBy,
		ExecutionType: execType,
		Snapshot:      executionlog.Snapshot(c),
		TargetCount:   aud.TargetCount(),
		SuccessCount:  res.Success,
		FailedCount:   res.Failed,
		Status:        res.Status,
		Error:         payload,
	}

	logger.Info("campaign executed",
		"component", "campaign",
		"campaign_id", c.ID,
		"execution_id", h.ID,
		"execution_type", string(execType),
		"mode", string(res.Mode),
		"target_count", aud.TargetCount(),
		"success", res.Success,
		"failed", res.Failed,
		"status", string(res.Status))

	if deliverErr != nil {
		if errors.Is(deliverErr, delivery.ErrAllUnitsFailed) {
			return entry, deliverErr
		}
		return entry, fmt.Errorf("deliver: %w", deliverErr)
	}
	return entry, nil
}

// Executions returns the execution history of a campaign, newest first.
func (s *Service) Executions(ctx context.Context, campaignID string, limit, offset int) ([]domain.ExecutionLog, error) {
	if _, err := s.repo.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.deps.Logs.List(ctx, campaignID, limit, offset)
}

// markFailed flags an execution that never reached delivery. Its own failure
// is only logged.
func (s *Service) markFailed(ctx context.Context, id, stage string, cause error) {
	logger.Warn("campaign execution aborted",
		"component", "campaign",
		"campaign_id", id,
		"stage", stage,
		"error", cause)
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.UpdateLastExecutionStatus(bctx, id, domain.ExecutionFailed); err != nil {
		logger.Error("update last execution status failed", "component", "campaign", "campaign_id", id, "error", err)
	}
}

func (s *Service) recordOutcome(ctx context.Context, c *domain.Campaign, execType domain.ExecutionType, status domain.ExecutionStatus) {
	bctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.repo.UpdateLastExecutionStatus(bctx, c.ID, status); err != nil {
		logger.Error("update last execution status failed", "component", "campaign", "campaign_id", c.ID, "error", err)
	}
	if execType != domain.ExecutionScheduled {
		return
	}
	next := domain.CampaignCompleted
	if status == domain.ExecutionFailed {
		next = domain.CampaignFailed
	}
	if err := s.repo.UpdateStatus(bctx, c.ID, next); err != nil {
		logger.Error("update campaign status failed", "component", "campaign", "campaign_id", c.ID, "error", err)
	}
}
