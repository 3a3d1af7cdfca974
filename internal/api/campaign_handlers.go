package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/line-broadcast/internal/delivery"
	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/pkg/httputil"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

// ExecutedByHeader names the operator recorded on manual execution logs.
const ExecutedByHeader = "X-Executed-By"

// ListCampaigns returns campaigns.
//
//	GET /api/campaigns?status=&category=&search=&limit=&offset=
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	list, total, err := h.campaigns.List(r.Context(), campaign.ListFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	httputil.OK(w, map[string]interface{}{"campaigns": list, "total": total})
}

// CreateCampaign creates a draft campaign.
//
//	POST /api/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, c)
}

// GetCampaign returns one campaign.
//
//	GET /api/campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

type updateCampaignRequest struct {
	Name              *string              `json:"name"`
	Description       *string              `json:"description"`
	AudienceType      *domain.AudienceType `json:"audience_type"`
	FilterTree        *domain.FilterTree   `json:"filter_tree"`
	MessageType       *domain.MessageType  `json:"message_type"`
	MessageContent    *json.RawMessage     `json:"message_content"`
	NotifySilently    *bool                `json:"notify_silently"`
	ScheduleType      *domain.ScheduleType `json:"schedule_type"`
	ScheduledAt       *string              `json:"scheduled_at"`
	ScheduledTimezone *string              `json:"scheduled_timezone"`
	Category          *string              `json:"category"`
	Tags              *[]string            `json:"tags"`
}

// UpdateCampaign patches a campaign.
//
//	PUT /api/campaigns/{id}
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req updateCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.campaigns.Update(r.Context(), chi.URLParam(r, "id"), campaign.UpdateFields(req))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a campaign and its pending schedule.
//
//	DELETE /api/campaigns/{id}
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ExecuteCampaign runs the campaign now and returns its execution log.
// The request blocks until delivery finishes.
//
//	POST /api/campaigns/{id}/execute
func (h *Handlers) ExecuteCampaign(w http.ResponseWriter, r *http.Request) {
	executedBy := r.Header.Get(ExecutedByHeader)
	if executedBy == "" {
		executedBy = "api"
	}
	entry, err := h.campaigns.Execute(r.Context(), chi.URLParam(r, "id"), domain.ExecutionManual, executedBy)
	if errors.Is(err, delivery.ErrAllUnitsFailed) && entry != nil {
		httputil.Error(w, http.StatusBadGateway, "delivery_failed", "every delivery unit failed", entry)
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, entry)
}

// ScheduleCampaign registers a deferred execution. An empty body uses the
// campaign's stored scheduled_at and scheduled_timezone.
//
//	POST /api/campaigns/{id}/schedule
func (h *Handlers) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.ScheduleInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	taskID, err := h.campaigns.Schedule(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Accepted(w, map[string]string{"task_id": taskID})
}

// CancelSchedule removes every pending scheduled execution.
//
//	DELETE /api/campaigns/{id}/schedule
func (h *Handlers) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	n, err := h.campaigns.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"removed": n})
}

// EstimateCampaign previews the audience size and channel quota.
//
//	GET /api/campaigns/{id}/estimate
func (h *Handlers) EstimateCampaign(w http.ResponseWriter, r *http.Request) {
	est, err := h.campaigns.Estimate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, est)
}

// ListExecutions returns the campaign's execution history.
//
//	GET /api/campaigns/{id}/executions?limit=&offset=
func (h *Handlers) ListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	logs, err := h.campaigns.Executions(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.ExecutionLog{}
	}
	httputil.OK(w, map[string]interface{}{"executions": logs})
}

// ConditionTypes lists the filter condition catalogue.
//
//	GET /api/condition-types
func (h *Handlers) ConditionTypes(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{"condition_types": h.campaigns.ConditionTypes()})
}

func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
