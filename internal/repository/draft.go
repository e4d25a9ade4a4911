// Package repository persists client-side records in SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/examdesk/internal/db"
	"github.com/alexanderramin/examdesk/internal/domain"
)

var ErrNotFound = errors.New("not found")

type DraftRepo interface {
	Save(ctx context.Context, d *domain.ExamDraft) error
	GetByID(ctx context.Context, id string) (*domain.ExamDraft, error)
	List(ctx context.Context) ([]*domain.ExamDraft, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteDraftRepo implements DraftRepo on the exam_drafts table.
type SQLiteDraftRepo struct {
	db db.DBTX
}

// NewSQLiteDraftRepo creates a new SQLiteDraftRepo.
func NewSQLiteDraftRepo(conn db.DBTX) *SQLiteDraftRepo {
	return &SQLiteDraftRepo{db: conn}
}

// Save inserts d, or overwrites the draft with the same ID.
func (r *SQLiteDraftRepo) Save(ctx context.Context, d *domain.ExamDraft) error {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("encoding draft payload: %w", err)
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}
	query := `INSERT INTO exam_drafts (id, title, status, payload, last_error, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			payload = excluded.payload,
			last_error = excluded.last_error,
			saved_at = excluded.saved_at`
	_, err = r.db.ExecContext(ctx, query,
		d.ID,
		d.Title,
		string(d.Status),
		string(payload),
		d.LastError,
		d.SavedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving exam draft: %w", err)
	}
	return nil
}

func (r *SQLiteDraftRepo) GetByID(ctx context.Context, id string) (*domain.ExamDraft, error) {
	query := `SELECT id, title, status, payload, last_error, saved_at FROM exam_drafts WHERE id = ?`
	d, err := scanDraft(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exam draft %s: %w", id, ErrNotFound)
	}
	return d, err
}

// List returns drafts newest first.
func (r *SQLiteDraftRepo) List(ctx context.Context) ([]*domain.ExamDraft, error) {
	query := `SELECT id, title, status, payload, last_error, saved_at
		FROM exam_drafts ORDER BY saved_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing exam drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*domain.ExamDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (r *SQLiteDraftRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exam_drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting exam draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exam draft %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (*domain.ExamDraft, error) {
	var d domain.ExamDraft
	var status, payload, savedAt string
	if err := row.Scan(&d.ID, &d.Title, &status, &payload, &d.LastError, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning exam draft: %w", err)
	}
	d.Status = domain.ExamStatus(status)
	if err := json.Unmarshal([]byte(payload), &d.Payload); err != nil {
		return nil, fmt.Errorf("decoding draft %s payload: %w", d.ID, err)
	}
	t, err := time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing draft %s saved_at: %w", d.ID, err)
	}
	d.SavedAt = t
	return &d, nil
}
