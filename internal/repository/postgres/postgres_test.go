package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var campaignCols = []string{
	"id", "name", "description", "audience_type", "filter_tree",
	"message_type", "message_content", "notify_silently", "schedule_type",
	"scheduled_at", "scheduled_timezone", "status",
	"last_execution_status", "category", "tags",
	"created_at", "updated_at",
}

func TestCampaignRepoGet(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM campaigns WHERE id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			"c1", "Spring", "", "filtered", []byte(`{"g1":[{"type":"tag","operator":"any_of","value":["vip"]}]}`),
			"text", []byte(`{"text":"Hello"}`), true, "scheduled",
			"2030-01-02 09:00", "Asia/Tokyo", "scheduled",
			"partial", "promo", []byte(`{vip,spring}`),
			now, now,
		))

	c, err := NewCampaignRepo(db).Get(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, domain.AudienceFiltered, c.AudienceType)
	require.Len(t, c.FilterTree["g1"], 1)
	assert.Equal(t, "tag", c.FilterTree["g1"][0].Type)
	assert.JSONEq(t, `{"text":"Hello"}`, string(c.MessageContent))
	assert.True(t, c.NotifySilently)
	assert.Equal(t, domain.ExecutionPartial, c.LastExecutionStatus)
	assert.Equal(t, []string{"vip", "spring"}, c.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepoGetNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("FROM campaigns").WillReturnError(sql.ErrNoRows)

	_, err := NewCampaignRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestCampaignRepoList(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM campaigns WHERE 1=1 AND status = $1 AND name ILIKE $2")).
		WithArgs("draft", "%sale%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("draft", "%sale%", 50, 0).
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			"c1", "Big sale", "", "all", []byte(`{}`),
			"text", []byte(`{"text":"hi"}`), false, "immediate",
			"", "", "draft", "", "", nil, now, now,
		))

	list, total, err := NewCampaignRepo(db).List(context.Background(), campaign.ListFilter{Status: "draft", Search: "sale"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].FilterTree)
	assert.Nil(t, list[0].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepoCreate(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs(sqlmock.AnyArg(), "Spring", "", domain.AudienceAll, []byte("{}"), domain.MessageText,
			[]byte(`{"text":"hi"}`), false, domain.ScheduleImmediate, "", "", domain.CampaignDraft, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := NewCampaignRepo(db).Create(context.Background(), &domain.Campaign{
		Name:           "Spring",
		AudienceType:   domain.AudienceAll,
		MessageType:    domain.MessageText,
		MessageContent: json.RawMessage(`{"text":"hi"}`),
		ScheduleType:   domain.ScheduleImmediate,
		Status:         domain.CampaignDraft,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepoUpdate(t *testing.T) {
	db, mock := setupTestDB(t)
	name := "Renamed"
	silent := true

	mock.ExpectExec(regexp.QuoteMeta("UPDATE campaigns SET name = $1, notify_silently = $2, updated_at = NOW() WHERE id = $3")).
		WithArgs("Renamed", true, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewCampaignRepo(db).Update(context.Background(), "c1", campaign.UpdateFields{Name: &name, NotifySilently: &silent})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepoUpdateNoFields(t *testing.T) {
	db, mock := setupTestDB(t)
	require.NoError(t, NewCampaignRepo(db).Update(context.Background(), "c1", campaign.UpdateFields{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepoMissingRows(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCampaignRepo(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM campaigns").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, "c1"), campaign.ErrNotFound)

	mock.ExpectExec("UPDATE campaigns SET status").WithArgs(domain.CampaignScheduled, "c1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "c1", domain.CampaignScheduled), campaign.ErrNotFound)

	mock.ExpectExec("UPDATE campaigns SET last_execution_status").WithArgs(domain.ExecutionFailed, "c1").WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateLastExecutionStatus(ctx, "c1", domain.ExecutionFailed))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionLogRepoInsert(t *testing.T) {
	db, mock := setupTestDB(t)
	at := time.Now().UTC()

	mock.ExpectExec("INSERT INTO execution_logs").
		WithArgs("l1", "c1", at, "ops", domain.ExecutionManual, sqlmock.AnyArg(), 3, domain.ExecutionPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewExecutionLogRepo(db).Insert(context.Background(), &domain.ExecutionLog{
		ID: "l1", CampaignID: "c1", ExecutedAt: at, ExecutedBy: "ops",
		ExecutionType: domain.ExecutionManual, TargetCount: 3, Status: domain.ExecutionPending,
		Snapshot: domain.ExecutionSnapshot{CampaignName: "Spring"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionLogRepoCloseOnlyPending(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewExecutionLogRepo(db)
	closedAt := time.Now().UTC()
	payload := &domain.ExecutionError{Message: "1 of 2 units failed"}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $6 AND status = 'pending'")).
		WithArgs(1, 1, domain.ExecutionPartial, sqlmock.AnyArg(), closedAt, "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Close(context.Background(), "l1", 1, 1, domain.ExecutionPartial, payload, closedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE execution_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Close(context.Background(), "l1", 1, 1, domain.ExecutionPartial, payload, closedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionLogRepoList(t *testing.T) {
	db, mock := setupTestDB(t)
	at := time.Now().UTC()

	mock.ExpectQuery("FROM execution_logs").
		WithArgs("c1", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "executed_at", "executed_by", "execution_type",
			"snapshot", "target_count", "success_count", "failed_count", "status",
			"error_payload", "closed_at",
		}).
			AddRow("l2", "c1", at, "scheduler", "scheduled", []byte(`{"campaign_name":"Spring"}`), 1200, 700, 500, "partial",
				[]byte(`{"message":"500 of 1200 units failed","failures":[{"kind":"chunk","chunk_index":1,"size":500,"reason":"boom"}]}`), at).
			AddRow("l1", "c1", at, "ops", "manual", []byte(`{"campaign_name":"Spring"}`), 0, 0, 0, "pending", nil, nil))

	logs, err := NewExecutionLogRepo(db).ListByCampaign(context.Background(), "c1", 50, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "Spring", logs[0].Snapshot.CampaignName)
	require.NotNil(t, logs[0].Error)
	require.Len(t, logs[0].Error.Failures, 1)
	assert.Equal(t, domain.FailureChunk, logs[0].Error.Failures[0].Kind)
	require.NotNil(t, logs[0].ClosedAt)

	assert.Nil(t, logs[1].Error)
	assert.Nil(t, logs[1].ClosedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientDirectory(t *testing.T) {
	db, mock := setupTestDB(t)
	dir := NewRecipientDirectory(db)
	ctx := context.Background()

	mock.ExpectQuery("FROM subscribers").
		WithArgs("Uaaa").
		WillReturnRows(sqlmock.NewRows([]string{"name", "display_name", "picture_url"}).AddRow("", "Aiko", ""))
	attrs, err := dir.Attributes(ctx, "Uaaa")
	require.NoError(t, err)
	assert.Equal(t, "Aiko", attrs["name"], "falls back to display name")

	mock.ExpectQuery("FROM subscribers").WillReturnError(sql.ErrNoRows)
	attrs, err = dir.Attributes(ctx, "Ubbb")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	mock.ExpectQuery("FROM subscribers").WillReturnError(errors.New("timeout"))
	_, err = dir.Attributes(ctx, "Uccc")
	assert.ErrorContains(t, err, "lookup recipient")
}
