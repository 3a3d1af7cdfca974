package domain

import (
	"encoding/json"
	"time"
)

// ExecutionType records what triggered an execution.
type ExecutionType string

const (
	ExecutionManual    ExecutionType = "manual"
	ExecutionScheduled ExecutionType = "scheduled"
)

// ExecutionStatus enumerates the lifecycle of one execution log row. A row is
// created pending and transitions exactly once to a terminal state.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionPartial ExecutionStatus = "partial"
	ExecutionFailed  ExecutionStatus = "failed"
)

// IsTerminal returns true if the status can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionPartial || s == ExecutionFailed
}

// DeriveStatus maps delivery counters to the terminal execution status.
// Nothing delivered (including 0/0) is a failure.
func DeriveStatus(success, failed int) ExecutionStatus {
	switch {
	case success > 0 && failed == 0:
		return ExecutionSuccess
	case success > 0 && failed > 0:
		return ExecutionPartial
	default:
		return ExecutionFailed
	}
}

// ProviderMessage is one provider-ready message unit. Field names follow the
// LINE Messaging API message object.
type ProviderMessage struct {
	Type               MessageType     `json:"type"`
	Text               string          `json:"text,omitempty"`
	OriginalContentURL string          `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string          `json:"previewImageUrl,omitempty"`
	AltText            string          `json:"altText,omitempty"`
	Contents           json.RawMessage `json:"contents,omitempty"`
}

// FailureKind tells whether a delivery failure covers a multicast chunk, a
// single recipient, or the whole broadcast.
type FailureKind string

const (
	FailureBroadcast FailureKind = "broadcast"
	FailureChunk     FailureKind = "chunk"
	FailureRecipient FailureKind = "recipient"
)

// DeliveryFailure records one failed provider call.
type DeliveryFailure struct {
	Kind        FailureKind `json:"kind"`
	ChunkIndex  int         `json:"chunk_index,omitempty"`
	Size        int         `json:"size"`
	RecipientID string      `json:"recipient_id,omitempty"`
	Reason      string      `json:"reason"`
}

// ExecutionError is the structured error payload stored on an execution log.
type ExecutionError struct {
	Message  string            `json:"message"`
	Failures []DeliveryFailure `json:"failures,omitempty"`
}

// ExecutionSnapshot freezes the campaign fields an execution was run with so
// later edits to the campaign never rewrite history.
type ExecutionSnapshot struct {
	CampaignName   string          `json:"campaign_name"`
	AudienceType   AudienceType    `json:"audience_type"`
	FilterTree     FilterTree      `json:"filter_tree"`
	MessageType    MessageType     `json:"message_type"`
	MessageContent json.RawMessage `json:"message_content"`
}

// ExecutionLog is the auditable record of one campaign execution.
type ExecutionLog struct {
	ID            string            `json:"id" db:"id"`
	CampaignID    string            `json:"campaign_id" db:"campaign_id"`
	ExecutedAt    time.Time         `json:"executed_at" db:"executed_at"`
	ExecutedBy    string            `json:"executed_by" db:"executed_by"`
	ExecutionType ExecutionType     `json:"execution_type" db:"execution_type"`
	Snapshot      ExecutionSnapshot `json:"snapshot" db:"snapshot"`
	TargetCount   int               `json:"target_count" db:"target_count"`
	SuccessCount  int               `json:"success_count" db:"success_count"`
	FailedCount   int               `json:"failed_count" db:"failed_count"`
	Status        ExecutionStatus   `json:"status" db:"status"`
	Error         *ExecutionError   `json:"error,omitempty" db:"error_payload"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty" db:"closed_at"`
}

// ScheduledTask is a deferred execution waiting in the task queue.
type ScheduledTask struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	FireAt     time.Time `json:"fire_at"`
	Queue      string    `json:"queue"`
	Operation  string    `json:"operation"`
}
