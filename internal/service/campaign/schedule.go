package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/line"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// ScheduleInput overrides the campaign's stored schedule. With FireAt set the
// civil fields are ignored; with everything empty the campaign's own
// scheduled_at and scheduled_timezone are used.
type ScheduleInput struct {
	FireAt   *time.Time `json:"fire_at,omitempty"`
	Civil    string     `json:"scheduled_at,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
}

// Schedule registers a deferred execution and marks the campaign scheduled.
func (s *Service) Schedule(ctx context.Context, id string, in ScheduleInput) (string, error) {
	if s.deps.Scheduler == nil {
		return "", fmt.Errorf("scheduler: %w", ErrNotConfigured)
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	var taskID string
	switch {
	case in.FireAt != nil:
		taskID, err = s.deps.Scheduler.Schedule(ctx, c.ID, *in.FireAt)
	case in.Civil != "":
		taskID, err = s.deps.Scheduler.ScheduleLocal(ctx, c.ID, in.Civil, in.Timezone)
	case c.ScheduledAt != "":
		taskID, err = s.deps.Scheduler.ScheduleLocal(ctx, c.ID, c.ScheduledAt, c.ScheduledTimezone)
	default:
		return "", ErrNoScheduleTime
	}
	if err != nil {
		return "", err
	}

	if err := s.repo.UpdateStatus(ctx, c.ID, domain.CampaignScheduled); err != nil {
		logger.Error("update campaign status failed", "component", "campaign", "campaign_id", c.ID, "error", err)
	}
	return taskID, nil
}

// Cancel removes every pending scheduled execution of the campaign and
// returns how many were removed. Calling it with nothing pending succeeds.
func (s *Service) Cancel(ctx context.Context, id string) (int, error) {
	if s.deps.Scheduler == nil {
		return 0, fmt.Errorf("scheduler: %w", ErrNotConfigured)
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := s.deps.Scheduler.Cancel(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 && c.Status == domain.CampaignScheduled {
		if err := s.repo.UpdateStatus(ctx, c.ID, domain.CampaignCancelled); err != nil {
			logger.Error("update campaign status failed", "component", "campaign", "campaign_id", c.ID, "error", err)
		}
	}
	return n, nil
}

// Estimate previews an execution without sending anything.
type Estimate struct {
	CampaignID   string              `json:"campaign_id"`
	AudienceType domain.AudienceType `json:"audience_type"`
	BroadcastAll bool                `json:"broadcast_all"`
	// TargetCount is nil for broadcasts; the follower count is not known locally.
	TargetCount *int        `json:"target_count"`
	Quota       *line.Quota `json:"quota,omitempty"`
	Used        *int64      `json:"used,omitempty"`
	Remaining   *int64      `json:"remaining,omitempty"`
}

// Estimate counts the campaign's audience and reads the channel quota.
// Quota lookups are best effort.
func (s *Service) Estimate(ctx context.Context, id string) (*Estimate, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	est := &Estimate{CampaignID: c.ID, AudienceType: c.AudienceType}
	n, ok, err := s.deps.Resolver.Estimate(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("estimate audience: %w", err)
	}
	if ok {
		est.TargetCount = &n
	} else {
		est.BroadcastAll = true
	}

	if s.deps.Quota == nil {
		return est, nil
	}
	q, err := s.deps.Quota.Quota(ctx)
	if err != nil {
		logger.Warn("quota lookup failed", "component", "campaign", "error", err)
		return est, nil
	}
	est.Quota = q
	used, err := s.deps.Quota.Consumption(ctx)
	if err != nil {
		logger.Warn("quota consumption lookup failed", "component", "campaign", "error", err)
		return est, nil
	}
	est.Used = &used
	if q.Limited() {
		remaining := q.Value - used
		est.Remaining = &remaining
	}
	return est, nil
}
