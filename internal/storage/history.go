package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribedesk/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// History logs saved summaries, uploads and collection mutations locally.
type History struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewHistory(db *sql.DB, driver string) (*History, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	d := normalizeDriver(driver)
	if d == "" {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	return &History{db: db, driver: d, now: func() time.Time { return time.Now().UTC() }}, nil
}

// RecordSummary inserts a saved summary or bumps its revision when the id is
// already known.
func (h *History) RecordSummary(ctx context.Context, rec models.SummaryRecord) error {
	if rec.ID == "" {
		return errors.New("summary id required")
	}
	now := h.now()
	var stmt string
	switch h.driver {
	case "mysql":
		stmt = `INSERT INTO saved_summaries (id, workspace_id, title, content, source_file, revisions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			ON DUPLICATE KEY UPDATE title = VALUES(title), content = VALUES(content),
				revisions = revisions + 1, updated_at = VALUES(updated_at)`
	default:
		stmt = `INSERT INTO saved_summaries (id, workspace_id, title, content, source_file, revisions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, content = excluded.content,
				revisions = saved_summaries.revisions + 1, updated_at = excluded.updated_at`
	}
	if _, err := h.db.ExecContext(ctx, stmt, rec.ID, rec.WorkspaceID, rec.Title, rec.Content, rec.SourceFile, now, now); err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	return nil
}

// GetSummary returns one logged summary.
func (h *History) GetSummary(ctx context.Context, id string) (*models.SummaryRecord, error) {
	row := h.db.QueryRowContext(ctx, `SELECT id, workspace_id, title, content, source_file, revisions, created_at, updated_at
		FROM saved_summaries WHERE id = ?`, id)
	var rec models.SummaryRecord
	if err := row.Scan(&rec.ID, &rec.WorkspaceID, &rec.Title, &rec.Content, &rec.SourceFile, &rec.Revisions, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &rec, nil
}

// ListSummaries returns the most recently saved summaries first.
func (h *History) ListSummaries(ctx context.Context, limit int) ([]*models.SummaryRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx, `SELECT id, workspace_id, title, content, source_file, revisions, created_at, updated_at
		FROM saved_summaries ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()
	var out []*models.SummaryRecord
	for rows.Next() {
		var rec models.SummaryRecord
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.Title, &rec.Content, &rec.SourceFile, &rec.Revisions, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// RecordUpload logs an acknowledged upload.
func (h *History) RecordUpload(ctx context.Context, rec models.UploadRecord) (int64, error) {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = h.now()
	}
	res, err := h.db.ExecContext(ctx, `INSERT INTO upload_log (workspace_id, document_id, file_name, synthesized, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`, rec.WorkspaceID, rec.DocumentID, rec.FileName, rec.Synthesized, rec.UploadedAt)
	if err != nil {
		return 0, fmt.Errorf("record upload: %w", err)
	}
	return res.LastInsertId()
}

// ListUploads returns the uploads logged for a workspace, oldest first. An
// empty workspace id lists every upload.
func (h *History) ListUploads(ctx context.Context, workspaceID string) ([]*models.UploadRecord, error) {
	query := `SELECT id, workspace_id, document_id, file_name, synthesized, uploaded_at FROM upload_log`
	var args []any
	if workspaceID != "" {
		query += ` WHERE workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY id ASC`
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()
	var out []*models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.DocumentID, &rec.FileName, &rec.Synthesized, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// RecordMutation appends a collection audit entry.
func (h *History) RecordMutation(ctx context.Context, rec models.MutationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = h.now()
	}
	_, err := h.db.ExecContext(ctx, `INSERT INTO collection_events (workspace_id, collection_id, action, outcome, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, rec.WorkspaceID, rec.CollectionID, rec.Action, string(rec.Outcome), rec.Message, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("record mutation: %w", err)
	}
	return nil
}

// ListMutations returns the audit entries for a collection, newest first.
func (h *History) ListMutations(ctx context.Context, collectionID string, limit int) ([]*models.MutationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `SELECT id, workspace_id, collection_id, action, outcome, message, created_at
		FROM collection_events WHERE collection_id = ? ORDER BY id DESC LIMIT ?`, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	defer rows.Close()
	var out []*models.MutationRecord
	for rows.Next() {
		var (
			rec     models.MutationRecord
			outcome string
		)
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.CollectionID, &rec.Action, &outcome, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		rec.Outcome = models.MutationOutcome(outcome)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
