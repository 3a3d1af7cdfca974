package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound        = errors.New("campaign not found")
	ErrInvalidCampaign = errors.New("invalid campaign")
	ErrNoScheduleTime  = errors.New("campaign has no scheduled time")
	ErrNotConfigured   = errors.New("dependency not configured")
)
