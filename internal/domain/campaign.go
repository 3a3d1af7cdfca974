package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// AudienceType selects how recipients are resolved at execution time.
type AudienceType string

const (
	// AudienceAll broadcasts to every follower of the channel; no list is computed.
	AudienceAll AudienceType = "all"
	// AudienceImported targets every active subscriber known to the local store.
	AudienceImported AudienceType = "imported"
	// AudienceFiltered targets subscribers matching the campaign's filter tree.
	AudienceFiltered AudienceType = "filtered"
)

// Valid reports whether t is a known audience type.
func (t AudienceType) Valid() bool {
	switch t {
	case AudienceAll, AudienceImported, AudienceFiltered:
		return true
	}
	return false
}

// MessageType enumerates the supported message payload kinds.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFlex  MessageType = "flex"
)

// ScheduleType selects immediate or deferred execution.
type ScheduleType string

const (
	ScheduleImmediate ScheduleType = "immediate"
	ScheduleDeferred  ScheduleType = "scheduled"
)

// FilterCondition is one atomic predicate inside a filter group. Value is
// strategy specific: a scalar, a list, or an object such as {tag_name,count}.
type FilterCondition struct {
	Type     string          `json:"type"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// FilterTree maps a group id to its ordered conditions. Conditions inside a
// group are AND-combined; groups are OR-combined.
type FilterTree map[string][]FilterCondition

// GroupIDs returns the group ids in a stable order so composed queries are
// deterministic.
func (t FilterTree) GroupIDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Campaign represents a configured messaging intent: audience, message and schedule.
type Campaign struct {
	ID                  string          `json:"id" db:"id"`
	Name                string          `json:"name" db:"name"`
	Description         string          `json:"description" db:"description"`
	AudienceType        AudienceType    `json:"audience_type" db:"audience_type"`
	FilterTree          FilterTree      `json:"filter_tree" db:"filter_tree"`
	MessageType         MessageType     `json:"message_type" db:"message_type"`
	MessageContent      json.RawMessage `json:"message_content" db:"message_content"`
	NotifySilently      bool            `json:"notify_silently" db:"notify_silently"`
	ScheduleType        ScheduleType    `json:"schedule_type" db:"schedule_type"`
	ScheduledAt         string          `json:"scheduled_at,omitempty" db:"scheduled_at"`
	ScheduledTimezone   string          `json:"scheduled_timezone,omitempty" db:"scheduled_timezone"`
	Status              CampaignStatus  `json:"status" db:"status"`
	LastExecutionStatus ExecutionStatus `json:"last_execution_status,omitempty" db:"last_execution_status"`
	Category            string          `json:"category" db:"category"`
	Tags                []string        `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsDeferred returns true if the campaign is meant to run at a future instant.
func (c *Campaign) IsDeferred() bool {
	return c.ScheduleType == ScheduleDeferred
}
