package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/pagination"
)

// CaseInput holds the fields for creating a local case.
type CaseInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	Severity    string
	CreatedAt   time.Time // zero means now
}

// CreateCase inserts a new case and returns its read model.
func (s *Store) CreateCase(ctx context.Context, in CaseInput) (api.Case, error) {
	var c api.Case
	if in.Title == "" {
		return c, fmt.Errorf("case title is required")
	}
	if in.Status == "" {
		in.Status = api.StatusNew
	}
	if in.Priority == "" {
		in.Priority = api.PriorityMedium
	}
	if in.Severity == "" {
		in.Severity = api.SeverityLow
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}

	id := uuid.New().String()

	var number int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(case_number), 0) + 1 FROM cases`).Scan(&number); err != nil {
		return c, fmt.Errorf("failed to allocate case number: %w", err)
	}

	created := in.CreatedAt.UnixNano()
	query := `INSERT INTO cases (
		id, case_number, title, description, status, priority, severity, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		id, number, in.Title, in.Description, in.Status, in.Priority, in.Severity,
		created, created,
	)
	if err != nil {
		return c, fmt.Errorf("failed to save case: %w", err)
	}

	c = api.Case{
		ID:        id,
		ShortID:   fmt.Sprintf("CASE-%04d", number),
		Title:     in.Title,
		Status:    in.Status,
		Priority:  in.Priority,
		Severity:  in.Severity,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.CreatedAt,
	}
	return c, nil
}

// UpdateCase applies a sparse update to one case.
func (s *Store) UpdateCase(ctx context.Context, caseID string, update api.CaseUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UnixNano()}

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *update.Priority)
	}
	if update.Severity != nil {
		sets = append(sets, "severity = ?")
		args = append(args, *update.Severity)
	}

	args = append(args, caseID)
	query := "UPDATE cases SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update case %s: %w", caseID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("case %s not found", caseID)
	}
	return nil
}

// DeleteCases removes cases by id, along with their tag links, in a single
// transaction.
func (s *Store) DeleteCases(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	rollback := func(e error) error {
		_ = tx.Rollback()
		return e
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM case_tags WHERE case_id IN ("+placeholders+")", args...); err != nil {
		return rollback(fmt.Errorf("delete case tags: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cases WHERE id IN ("+placeholders+")", args...); err != nil {
		return rollback(fmt.Errorf("delete cases: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListCases fetches one cursor-paginated page of cases. It satisfies
// pagination.QueryFunc[api.Case].
func (s *Store) ListCases(ctx context.Context, req pagination.PageRequest) (pagination.Page[api.Case], error) {
	var page pagination.Page[api.Case]

	if err := validateSearchTerm(req.Filters.SearchTerm); err != nil {
		return page, err
	}
	if req.Limit <= 0 {
		return page, &pagination.ValidationError{Reason: "limit must be positive"}
	}

	var estimate int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM cases`).Scan(&estimate); err != nil {
		return page, &pagination.FetchError{Err: fmt.Errorf("count cases: %w", err)}
	}

	base := `SELECT id, case_number, title, status, priority, severity, created_at, updated_at
		FROM cases WHERE 1=1`
	args := []interface{}{}

	if term := req.Filters.SearchTerm; term != "" {
		pattern := "%" + term + "%"
		base += " AND (title LIKE ? OR description LIKE ?)"
		args = append(args, pattern, pattern)
	}
	if req.Filters.Status != "" {
		base += " AND status = ?"
		args = append(args, req.Filters.Status)
	}
	if req.Filters.Priority != "" {
		base += " AND priority = ?"
		args = append(args, req.Filters.Priority)
	}
	if req.Filters.Severity != "" {
		base += " AND severity = ?"
		args = append(args, req.Filters.Severity)
	}
	for _, tag := range req.Filters.Tags {
		base += ` AND id IN (
			SELECT ct.case_id FROM case_tags ct
			JOIN tags t ON t.id = ct.tag_id WHERE t.name = ?)`
		args = append(args, strings.ToLower(strings.TrimSpace(tag)))
	}

	if req.Cursor != pagination.FirstPageCursor {
		cur, err := decodeCursor(req.Cursor)
		if err != nil {
			return page, err
		}
		base += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		args = append(args, cur.CreatedAt, cur.CreatedAt, cur.ID)
	}

	base += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, req.Limit+1)

	rows, err := s.db.QueryContext(ctx, base, args...)
	if err != nil {
		return page, &pagination.FetchError{Err: fmt.Errorf("query cases: %w", err)}
	}
	defer rows.Close()

	type caseRow struct {
		c       api.Case
		created int64
	}
	var scanned []caseRow
	for rows.Next() {
		var r caseRow
		var number int
		var updated int64
		if err := rows.Scan(&r.c.ID, &number, &r.c.Title, &r.c.Status,
			&r.c.Priority, &r.c.Severity, &r.created, &updated); err != nil {
			return page, &pagination.FetchError{Err: fmt.Errorf("scan case: %w", err)}
		}
		r.c.ShortID = fmt.Sprintf("CASE-%04d", number)
		r.c.CreatedAt = time.Unix(0, r.created)
		r.c.UpdatedAt = time.Unix(0, updated)
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return page, &pagination.FetchError{Err: fmt.Errorf("iterate cases: %w", err)}
	}

	hasMore := len(scanned) > req.Limit
	if hasMore {
		scanned = scanned[:req.Limit]
	}

	items := make([]api.Case, len(scanned))
	ids := make([]string, len(scanned))
	for i, r := range scanned {
		items[i] = r.c
		ids[i] = r.c.ID
	}
	if err := s.attachTags(ctx, "case_tags", "case_id", ids, func(i int, tag api.Tag) {
		items[i].Tags = append(items[i].Tags, tag)
	}); err != nil {
		return page, &pagination.FetchError{Err: err}
	}

	page.Items = items
	page.HasMore = hasMore
	page.HasPrevious = req.Cursor != pagination.FirstPageCursor
	page.TotalEstimate = estimate
	if hasMore && len(scanned) > 0 {
		last := scanned[len(scanned)-1]
		page.NextCursor = encodeCursor(last.created, last.c.ID)
	}
	if page.HasPrevious && len(scanned) > 0 {
		first := scanned[0]
		page.PrevCursor = encodeCursor(first.created, first.c.ID)
	}
	return page, nil
}
