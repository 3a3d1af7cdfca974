package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/service/campaign"
)

const campaignColumns = `
	id, name, COALESCE(description,''), audience_type, filter_tree,
	message_type, message_content, notify_silently, schedule_type,
	COALESCE(scheduled_at,''), COALESCE(scheduled_timezone,''), status,
	COALESCE(last_execution_status,''), COALESCE(category,''), tags,
	created_at, updated_at`

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var (
		c             domain.Campaign
		tree, content []byte
		lastExecution string
	)
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.AudienceType, &tree,
		&c.MessageType, &content, &c.NotifySilently, &c.ScheduleType,
		&c.ScheduledAt, &c.ScheduledTimezone, &c.Status,
		&lastExecution, &c.Category, pq.Array(&c.Tags),
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.LastExecutionStatus = domain.ExecutionStatus(lastExecution)
	if len(tree) > 0 && string(tree) != "null" {
		if err := json.Unmarshal(tree, &c.FilterTree); err != nil {
			return nil, fmt.Errorf("decode filter_tree: %w", err)
		}
	}
	if len(content) > 0 {
		c.MessageContent = json.RawMessage(content)
	}
	return &c, nil
}

func encodeTree(t domain.FilterTree) ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"1=1"}
	args := []interface{}{}
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Search != "" {
		add("name ILIKE $%d", "%"+f.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM campaigns WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		campaignColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return out, total, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	tree, err := encodeTree(c.FilterTree)
	if err != nil {
		return "", fmt.Errorf("encode filter_tree: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, description, audience_type, filter_tree, message_type,
			 message_content, notify_silently, schedule_type, scheduled_at,
			 scheduled_timezone, status, category, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10,''), NULLIF($11,''), $12, $13, $14, NOW(), NOW())
	`, c.ID, c.Name, c.Description, c.AudienceType, tree, c.MessageType,
		[]byte(c.MessageContent), c.NotifySilently, c.ScheduleType, c.ScheduledAt,
		c.ScheduledTimezone, c.Status, c.Category, pq.Array(c.Tags))
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.AudienceType != nil {
		add("audience_type", *u.AudienceType)
	}
	if u.FilterTree != nil {
		tree, err := encodeTree(*u.FilterTree)
		if err != nil {
			return fmt.Errorf("encode filter_tree: %w", err)
		}
		add("filter_tree", tree)
	}
	if u.MessageType != nil {
		add("message_type", *u.MessageType)
	}
	if u.MessageContent != nil {
		add("message_content", []byte(*u.MessageContent))
	}
	if u.NotifySilently != nil {
		add("notify_silently", *u.NotifySilently)
	}
	if u.ScheduleType != nil {
		add("schedule_type", *u.ScheduleType)
	}
	if u.ScheduledAt != nil {
		add("scheduled_at", *u.ScheduledAt)
	}
	if u.ScheduledTimezone != nil {
		add("scheduled_timezone", *u.ScheduledTimezone)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.Tags != nil {
		add("tags", pq.Array(*u.Tags))
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateLastExecutionStatus(ctx context.Context, id string, status domain.ExecutionStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET last_execution_status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update last execution status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
