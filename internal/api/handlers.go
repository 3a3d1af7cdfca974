package api

import (
	"context"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/segmentation"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

// CampaignService is the campaign surface the handlers call.
// *campaign.Service implements it.
type CampaignService interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Create(ctx context.Context, in campaign.CreateInput) (*domain.Campaign, error)
	Update(ctx context.Context, id string, u campaign.UpdateFields) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error

	Execute(ctx context.Context, id string, execType domain.ExecutionType, executedBy string) (*domain.ExecutionLog, error)
	Schedule(ctx context.Context, id string, in campaign.ScheduleInput) (string, error)
	Cancel(ctx context.Context, id string) (int, error)
	Estimate(ctx context.Context, id string) (*campaign.Estimate, error)
	Executions(ctx context.Context, id string, limit, offset int) ([]domain.ExecutionLog, error)
	ConditionTypes() []segmentation.TypeInfo
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	campaigns CampaignService
	health    *HealthChecker
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(campaigns CampaignService, health *HealthChecker) *Handlers {
	if health == nil {
		health = NewHealthChecker(nil, nil, nil)
	}
	return &Handlers{campaigns: campaigns, health: health}
}
