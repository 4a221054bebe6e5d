package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/halcyonsec/triage-console/internal/api"
)

// EnsureTag returns the tag with the given name, creating it if missing.
// Names are normalized to lowercase.
func (s *Store) EnsureTag(ctx context.Context, name, color string) (api.Tag, error) {
	var tag api.Tag
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return tag, fmt.Errorf("tag name is required")
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(color, '') FROM tags WHERE name = ?`, name,
	).Scan(&tag.ID, &tag.Name, &tag.Color)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return tag, fmt.Errorf("lookup tag %s: %w", name, err)
	}

	tag = api.Tag{ID: uuid.New().String(), Name: name, Color: color}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`,
		tag.ID, tag.Name, tag.Color,
	); err != nil {
		return api.Tag{}, fmt.Errorf("create tag %s: %w", name, err)
	}
	return tag, nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]api.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(color, '') FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []api.Tag
	for rows.Next() {
		var tag api.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// TagAlert attaches a tag to an alert. Re-tagging is a no-op.
func (s *Store) TagAlert(ctx context.Context, alertID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alert_tags (alert_id, tag_id) VALUES (?, ?)`,
		alertID, tagID)
	if err != nil {
		return fmt.Errorf("tag alert %s: %w", alertID, err)
	}
	return nil
}

// UntagAlert detaches a tag from an alert.
func (s *Store) UntagAlert(ctx context.Context, alertID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM alert_tags WHERE alert_id = ? AND tag_id = ?`,
		alertID, tagID)
	if err != nil {
		return fmt.Errorf("untag alert %s: %w", alertID, err)
	}
	return nil
}

// TagCase attaches a tag to a case. Re-tagging is a no-op.
func (s *Store) TagCase(ctx context.Context, caseID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO case_tags (case_id, tag_id) VALUES (?, ?)`,
		caseID, tagID)
	if err != nil {
		return fmt.Errorf("tag case %s: %w", caseID, err)
	}
	return nil
}

// UntagCase detaches a tag from a case.
func (s *Store) UntagCase(ctx context.Context, caseID, tagID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM case_tags WHERE case_id = ? AND tag_id = ?`,
		caseID, tagID)
	if err != nil {
		return fmt.Errorf("untag case %s: %w", caseID, err)
	}
	return nil
}

// Reset clears all rows from every table. Used by the reset command.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"alert_tags", "case_tags", "alerts", "cases", "tags"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
