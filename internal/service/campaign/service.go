package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/line-broadcast/internal/audience"
	"github.com/ignite/line-broadcast/internal/delivery"
	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/executionlog"
	"github.com/ignite/line-broadcast/internal/line"
	"github.com/ignite/line-broadcast/internal/message"
	"github.com/ignite/line-broadcast/internal/segmentation"
)

// Resolver turns a campaign into its execution-time audience.
type Resolver interface {
	Resolve(ctx context.Context, c *domain.Campaign) (audience.Resolution, error)
	Estimate(ctx context.Context, c *domain.Campaign) (count int, ok bool, err error)
}

// Deliverer sends built messages to a resolved audience.
type Deliverer interface {
	Deliver(ctx context.Context, aud audience.Resolution, messages []domain.ProviderMessage, silent bool) (delivery.Result, error)
}

// Scheduler defers executions to the task queue.
type Scheduler interface {
	Schedule(ctx context.Context, campaignID string, fireAt time.Time) (string, error)
	ScheduleLocal(ctx context.Context, campaignID, civil, tz string) (string, error)
	Cancel(ctx context.Context, campaignID string) (int, error)
}

// QuotaSource reports the channel's monthly message allowance.
type QuotaSource interface {
	Quota(ctx context.Context) (*line.Quota, error)
	Consumption(ctx context.Context) (int64, error)
}

// Catalog lists the registered condition types.
type Catalog interface {
	Types() []segmentation.TypeInfo
}

// Deps are the collaborators of the service. Scheduler, Quota and Catalog
// are optional; the operations that need them return ErrNotConfigured.
type Deps struct {
	Resolver  Resolver
	Delivery  Deliverer
	Logs      *executionlog.Logger
	Scheduler Scheduler
	Quota     QuotaSource
	Catalog   Catalog
}

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
	deps Deps
	now  func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, deps Deps) *Service {
	return &Service{repo: repo, deps: deps, now: time.Now}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	AudienceType      domain.AudienceType `json:"audience_type"`
	FilterTree        domain.FilterTree   `json:"filter_tree"`
	MessageType       domain.MessageType  `json:"message_type"`
	MessageContent    json.RawMessage     `json:"message_content"`
	NotifySilently    bool                `json:"notify_silently"`
	ScheduleType      domain.ScheduleType `json:"schedule_type"`
	ScheduledAt       string              `json:"scheduled_at"`
	ScheduledTimezone string              `json:"scheduled_timezone"`
	Category          string              `json:"category"`
	Tags              []string            `json:"tags"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	if in.ScheduleType == "" {
		in.ScheduleType = domain.ScheduleImmediate
	}
	c := &domain.Campaign{
		ID:                uuid.New().String(),
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		AudienceType:      in.AudienceType,
		FilterTree:        in.FilterTree,
		MessageType:       in.MessageType,
		MessageContent:    in.MessageContent,
		NotifySilently:    in.NotifySilently,
		ScheduleType:      in.ScheduleType,
		ScheduledAt:       in.ScheduledAt,
		ScheduledTimezone: in.ScheduledTimezone,
		Status:            domain.CampaignDraft,
		Category:          in.Category,
		Tags:              in.Tags,
	}
	if err := Validate(c); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// Update applies u to the campaign after validating the merged result.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := *c
	apply(&merged, u)
	if err := Validate(&merged); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Delete cancels pending scheduled runs and removes the campaign.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if s.deps.Scheduler != nil {
		if _, err := s.deps.Scheduler.Cancel(ctx, id); err != nil {
			return fmt.Errorf("cancel schedule: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

// ConditionTypes lists the registered condition types and their operators.
func (s *Service) ConditionTypes() []segmentation.TypeInfo {
	if s.deps.Catalog == nil {
		return nil
	}
	return s.deps.Catalog.Types()
}

// Validate checks the fields every campaign must carry. Filter conditions are
// not checked here; unusable ones are dropped at resolution time.
func Validate(c *domain.Campaign) error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCampaign)
	}
	if !c.AudienceType.Valid() {
		return fmt.Errorf("%w: unknown audience_type %q", ErrInvalidCampaign, c.AudienceType)
	}
	switch c.ScheduleType {
	case domain.ScheduleImmediate, domain.ScheduleDeferred:
	default:
		return fmt.Errorf("%w: unknown schedule_type %q", ErrInvalidCampaign, c.ScheduleType)
	}
	if _, err := message.Build(c.MessageType, c.MessageContent); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCampaign, err)
	}
	return nil
}

func apply(c *domain.Campaign, u UpdateFields) {
	if u.Name != nil {
		c.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.AudienceType != nil {
		c.AudienceType = *u.AudienceType
	}
	if u.FilterTree != nil {
		c.FilterTree = *u.FilterTree
	}
	if u.MessageType != nil {
		c.MessageType = *u.MessageType
	}
	if u.MessageContent != nil {
		c.MessageContent = *u.MessageContent
	}
	if u.NotifySilently != nil {
		c.NotifySilently = *u.NotifySilently
	}
	if u.ScheduleType != nil {
		c.ScheduleType = *u.ScheduleType
	}
	if u.ScheduledAt != nil {
		c.ScheduledAt = *u.ScheduledAt
	}
	if u.ScheduledTimezone != nil {
		c.ScheduledTimezone = *u.ScheduledTimezone
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.Tags != nil {
		c.Tags = *u.Tags
	}
}
