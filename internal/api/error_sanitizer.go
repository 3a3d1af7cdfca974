package api

import (
	"errors"
	"net/http"

	"github.com/ignite/line-broadcast/internal/audience"
	"github.com/ignite/line-broadcast/internal/delivery"
	"github.com/ignite/line-broadcast/internal/message"
	"github.com/ignite/line-broadcast/internal/pkg/httputil"
	"github.com/ignite/line-broadcast/internal/scheduler"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

// respondServiceError maps service errors to status codes. Anything
// unrecognised is logged and answered with a generic 500, so internal
// details never reach API consumers.
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		verr  *message.ValidationError
		past  *scheduler.PastTimeError
		sched *scheduler.SchedulingError
	)
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.As(err, &verr):
		httputil.Unprocessable(w, "invalid_message", verr.Error(), verr)
	case errors.Is(err, campaign.ErrInvalidCampaign):
		httputil.Unprocessable(w, "invalid_campaign", err.Error(), nil)
	case errors.Is(err, audience.ErrAudienceEmpty):
		httputil.Unprocessable(w, "audience_empty", "the campaign audience resolved to no recipients", nil)
	case errors.As(err, &past):
		httputil.Unprocessable(w, "past_time", past.Error(), nil)
	case errors.As(err, &sched) && sched.Input != "":
		httputil.Unprocessable(w, "invalid_schedule", sched.Error(), nil)
	case errors.Is(err, campaign.ErrNoScheduleTime):
		httputil.Unprocessable(w, "no_schedule_time", err.Error(), nil)
	case errors.Is(err, campaign.ErrNotConfigured):
		httputil.Error(w, http.StatusServiceUnavailable, "not_configured", err.Error(), nil)
	case errors.Is(err, delivery.ErrAllUnitsFailed):
		httputil.Error(w, http.StatusBadGateway, "delivery_failed", "every delivery unit failed", nil)
	default:
		httputil.InternalError(w, err)
	}
}
