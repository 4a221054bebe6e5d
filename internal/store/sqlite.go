package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/pagination"
)

// Store is the local SQLite implementation of the alert/case page contract.
// It exists for offline and demo use: the same list views that page a remote
// workspace can page a local database, because ListAlerts/ListCases satisfy
// the pagination query-adapter signature with identical cursor semantics
// (keyset on created_at DESC, id DESC; limit+1 look-ahead; approximate
// totals).
type Store struct {
	db *sql.DB
}

const maxSearchTermLen = 1000

// NewStore opens (creating if needed) the database at dbPath and applies
// migrations. Use ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	// Ensure target directory exists (e.g. ./data)
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite is single-writer, and ":memory:" databases exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate performs database migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			alert_number INTEGER NOT NULL,
			summary TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'new',
			priority TEXT NOT NULL DEFAULT 'medium',
			severity TEXT NOT NULL DEFAULT 'low',
			payload TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS cases (
			id TEXT PRIMARY KEY,
			case_number INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'new',
			priority TEXT NOT NULL DEFAULT 'medium',
			severity TEXT NOT NULL DEFAULT 'low',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			color TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS alert_tags (
			alert_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			PRIMARY KEY (alert_id, tag_id),
			FOREIGN KEY (alert_id) REFERENCES alerts(id),
			FOREIGN KEY (tag_id) REFERENCES tags(id)
		)`,

		`CREATE TABLE IF NOT EXISTS case_tags (
			case_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			PRIMARY KEY (case_id, tag_id),
			FOREIGN KEY (case_id) REFERENCES cases(id),
			FOREIGN KEY (tag_id) REFERENCES tags(id)
		)`,

		// Indexes for keyset pagination and filtering
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_priority ON alerts(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_created_at ON cases(created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_tags_tag_id ON alert_tags(tag_id)`,
		`CREATE INDEX IF NOT EXISTS idx_case_tags_tag_id ON case_tags(tag_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// AlertInput holds the fields for creating a local alert.
type AlertInput struct {
	Summary     string
	Description string
	Status      string
	Priority    string
	Severity    string
	CreatedAt   time.Time // zero means now
}

// CreateAlert inserts a new alert and returns its read model.
func (s *Store) CreateAlert(ctx context.Context, in AlertInput) (api.Alert, error) {
	var alert api.Alert
	if in.Summary == "" {
		return alert, fmt.Errorf("alert summary is required")
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
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(alert_number), 0) + 1 FROM alerts`).Scan(&number); err != nil {
		return alert, fmt.Errorf("failed to allocate alert number: %w", err)
	}

	created := in.CreatedAt.UnixNano()
	query := `INSERT INTO alerts (
		id, alert_number, summary, description, status, priority, severity, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		id, number, in.Summary, in.Description, in.Status, in.Priority, in.Severity,
		created, created,
	)
	if err != nil {
		return alert, fmt.Errorf("failed to save alert: %w", err)
	}

	alert = api.Alert{
		ID:        id,
		ShortID:   fmt.Sprintf("ALERT-%04d", number),
		Summary:   in.Summary,
		Status:    in.Status,
		Priority:  in.Priority,
		Severity:  in.Severity,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.CreatedAt,
	}
	return alert, nil
}

// UpdateAlert applies a sparse update to one alert.
func (s *Store) UpdateAlert(ctx context.Context, alertID string, update api.AlertUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UnixNano()}

	if update.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *update.Summary)
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

	args = append(args, alertID)
	query := "UPDATE alerts SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", alertID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s not found", alertID)
	}
	return nil
}

// DeleteAlerts removes alerts by id, along with their tag links, in a single
// transaction.
func (s *Store) DeleteAlerts(ctx context.Context, ids []string) error {
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM alert_tags WHERE alert_id IN ("+placeholders+")", args...); err != nil {
		return rollback(fmt.Errorf("delete alert tags: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM alerts WHERE id IN ("+placeholders+")", args...); err != nil {
		return rollback(fmt.Errorf("delete alerts: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListAlerts fetches one cursor-paginated page of alerts. It satisfies
// pagination.QueryFunc[api.Alert] and mirrors the remote service's cursor
// semantics so the two adapters are interchangeable.
func (s *Store) ListAlerts(ctx context.Context, req pagination.PageRequest) (pagination.Page[api.Alert], error) {
	var page pagination.Page[api.Alert]

	if err := validateSearchTerm(req.Filters.SearchTerm); err != nil {
		return page, err
	}
	if req.Limit <= 0 {
		return page, &pagination.ValidationError{Reason: "limit must be positive"}
	}

	// Approximate total: unfiltered row count, the local stand-in for the
	// server's table statistics estimate.
	var estimate int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM alerts`).Scan(&estimate); err != nil {
		return page, &pagination.FetchError{Err: fmt.Errorf("count alerts: %w", err)}
	}

	base := `SELECT id, alert_number, summary, status, priority, severity, created_at, updated_at
		FROM alerts WHERE 1=1`
	args := []interface{}{}

	if term := req.Filters.SearchTerm; term != "" {
		pattern := "%" + term + "%"
		base += " AND (summary LIKE ? OR description LIKE ?)"
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
	// Tag filters are AND logic: the alert must carry every named tag.
	for _, tag := range req.Filters.Tags {
		base += ` AND id IN (
			SELECT at.alert_id FROM alert_tags at
			JOIN tags t ON t.id = at.tag_id WHERE t.name = ?)`
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
		return page, &pagination.FetchError{Err: fmt.Errorf("query alerts: %w", err)}
	}
	defer rows.Close()

	type alertRow struct {
		alert   api.Alert
		created int64
	}
	var scanned []alertRow
	for rows.Next() {
		var r alertRow
		var number int
		var updated int64
		if err := rows.Scan(&r.alert.ID, &number, &r.alert.Summary, &r.alert.Status,
			&r.alert.Priority, &r.alert.Severity, &r.created, &updated); err != nil {
			return page, &pagination.FetchError{Err: fmt.Errorf("scan alert: %w", err)}
		}
		r.alert.ShortID = fmt.Sprintf("ALERT-%04d", number)
		r.alert.CreatedAt = time.Unix(0, r.created)
		r.alert.UpdatedAt = time.Unix(0, updated)
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return page, &pagination.FetchError{Err: fmt.Errorf("iterate alerts: %w", err)}
	}

	// limit+1 look-ahead: an extra row means another page exists.
	hasMore := len(scanned) > req.Limit
	if hasMore {
		scanned = scanned[:req.Limit]
	}

	items := make([]api.Alert, len(scanned))
	ids := make([]string, len(scanned))
	for i, r := range scanned {
		items[i] = r.alert
		ids[i] = r.alert.ID
	}
	if err := s.attachTags(ctx, "alert_tags", "alert_id", ids, func(i int, tag api.Tag) {
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
		page.NextCursor = encodeCursor(last.created, last.alert.ID)
	}
	if page.HasPrevious && len(scanned) > 0 {
		first := scanned[0]
		page.PrevCursor = encodeCursor(first.created, first.alert.ID)
	}
	return page, nil
}

// attachTags loads tags for a page of records in one query and hands them to
// assign keyed by the record's index in ids.
func (s *Store) attachTags(ctx context.Context, joinTable, joinColumn string, ids []string, assign func(i int, tag api.Tag)) error {
	if len(ids) == 0 {
		return nil
	}

	index := make(map[string]int, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		index[id] = i
		args[i] = id
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")

	query := fmt.Sprintf(`SELECT jt.%s, t.id, t.name, COALESCE(t.color, '')
		FROM %s jt JOIN tags t ON t.id = jt.tag_id
		WHERE jt.%s IN (%s)
		ORDER BY t.name`, joinColumn, joinTable, joinColumn, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID string
		var tag api.Tag
		if err := rows.Scan(&recordID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		if i, ok := index[recordID]; ok {
			assign(i, tag)
		}
	}
	return rows.Err()
}

func validateSearchTerm(term string) error {
	if len(term) > maxSearchTermLen {
		return &pagination.ValidationError{Reason: "search term cannot exceed 1000 characters"}
	}
	if strings.ContainsRune(term, '\x00') {
		return &pagination.ValidationError{Reason: "search term cannot contain null bytes"}
	}
	return nil
}
