package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// OperationExecute is the task operation that runs a campaign execution.
const OperationExecute = "campaign.execute"

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "line-campaigns"

// civilLayouts are the accepted local datetime formats, most specific first.
var civilLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04"}

// PastTimeError is returned when a fire instant is not in the future.
type PastTimeError struct {
	FireAt time.Time
	Now    time.Time
}

func (e *PastTimeError) Error() string {
	return fmt.Sprintf("scheduled time %s is not in the future (now %s)",
		e.FireAt.UTC().Format(time.RFC3339), e.Now.UTC().Format(time.RFC3339))
}

// SchedulingError wraps invalid scheduling input or a backend failure.
type SchedulingError struct {
	Input string
	Err   error
}

func (e *SchedulingError) Error() string {
	if e.Input == "" {
		return "scheduling: " + e.Err.Error()
	}
	return fmt.Sprintf("scheduling %q: %v", e.Input, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// Service registers and cancels deferred campaign executions.
type Service struct {
	backend Backend
	queue   string
	now     func() time.Time
}

// NewService creates a scheduling service writing to queue.
func NewService(backend Backend, queue string) *Service {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Service{backend: backend, queue: queue, now: time.Now}
}

// Schedule enqueues one execution of campaignID at fireAt.
func (s *Service) Schedule(ctx context.Context, campaignID string, fireAt time.Time) (string, error) {
	now := s.now()
	if !fireAt.After(now) {
		return "", &PastTimeError{FireAt: fireAt, Now: now}
	}
	id, err := s.backend.ScheduleSingle(ctx, fireAt.UTC(), OperationExecute, campaignID, s.queue)
	if err != nil {
		return "", &SchedulingError{Err: err}
	}
	logger.Info("campaign scheduled",
		"component", "scheduler",
		"campaign_id", campaignID,
		"task_id", id,
		"fire_at", fireAt.UTC().Format(time.RFC3339))
	return id, nil
}

// ScheduleLocal converts a civil datetime in an IANA zone to UTC and schedules it.
func (s *Service) ScheduleLocal(ctx context.Context, campaignID, civil, tz string) (string, error) {
	fireAt, err := ParseLocal(civil, tz)
	if err != nil {
		return "", err
	}
	return s.Schedule(ctx, campaignID, fireAt)
}

// ParseLocal interprets civil ("2006-01-02 15:04[:05]") in zone tz. An empty
// tz means UTC.
func ParseLocal(civil, tz string) (time.Time, error) {
	loc := time.UTC
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, &SchedulingError{Input: tz, Err: fmt.Errorf("unknown timezone: %w", err)}
		}
		loc = l
	}
	civil = strings.TrimSpace(civil)
	for _, layout := range civilLayouts {
		if t, err := time.ParseInLocation(layout, civil, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &SchedulingError{Input: civil, Err: errors.New("expected YYYY-MM-DD HH:MM[:SS]")}
}

// Cancel removes every pending task for campaignID and returns how many were
// removed. Nothing pending is not an error.
func (s *Service) Cancel(ctx context.Context, campaignID string) (int, error) {
	ids, err := s.backend.ListPending(ctx, OperationExecute, campaignID, s.queue)
	if err != nil {
		return 0, &SchedulingError{Err: err}
	}
	removed := 0
	for _, id := range ids {
		if err := s.backend.Delete(ctx, id); err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				continue
			}
			return removed, &SchedulingError{Err: err}
		}
		removed++
	}
	if removed > 0 {
		logger.Info("campaign schedule cancelled",
			"component", "scheduler",
			"campaign_id", campaignID,
			"tasks", removed)
	}
	return removed, nil
}

// Pending returns the ids of unfired tasks for campaignID.
func (s *Service) Pending(ctx context.Context, campaignID string) ([]string, error) {
	return s.backend.ListPending(ctx, OperationExecute, campaignID, s.queue)
}
