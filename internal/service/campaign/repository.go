package campaign

import (
	"context"
	"encoding/json"

	"github.com/ignite/line-broadcast/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// UpdateStatus sets the campaign's lifecycle status.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// UpdateLastExecutionStatus records the outcome of the latest execution.
	UpdateLastExecutionStatus(ctx context.Context, id string, status domain.ExecutionStatus) error
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status   string
	Category string
	Search   string
	Limit    int
	Offset   int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name              *string
	Description       *string
	AudienceType      *domain.AudienceType
	FilterTree        *domain.FilterTree
	MessageType       *domain.MessageType
	MessageContent    *json.RawMessage
	NotifySilently    *bool
	ScheduleType      *domain.ScheduleType
	ScheduledAt       *string
	ScheduledTimezone *string
	Category          *string
	Tags              *[]string
}
