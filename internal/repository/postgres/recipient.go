package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RecipientDirectory implements personalize.Directory against the
// subscribers table.
type RecipientDirectory struct{ db *sql.DB }

// NewRecipientDirectory creates a Postgres-backed recipient directory.
func NewRecipientDirectory(db *sql.DB) *RecipientDirectory { return &RecipientDirectory{db: db} }

// Attributes returns the template bindings for a LINE user id. An unknown
// recipient yields an empty map.
func (r *RecipientDirectory) Attributes(ctx context.Context, recipientID string) (map[string]interface{}, error) {
	var name, displayName, picture string
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(name,''), COALESCE(display_name,''), COALESCE(picture_url,'')
		FROM subscribers
		WHERE line_user_id = $1
		ORDER BY is_active DESC, id
		LIMIT 1
	`, recipientID).Scan(&name, &displayName, &picture)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup recipient: %w", err)
	}
	if name == "" {
		name = displayName
	}
	return map[string]interface{}{
		"name":         name,
		"display_name": displayName,
		"picture_url":  picture,
	}, nil
}
