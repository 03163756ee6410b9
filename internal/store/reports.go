package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/hunter/internal/model"
)

const reportColumns = `id, asset, target_json, title, status, findings_json, fingerprint,
	submission_note, submission_ref, attempts, created_at, updated_at`

// CreateReport inserts a new report.
func (s *DB) CreateReport(ctx context.Context, r *model.Report) error {
	targetJSON, err := json.Marshal(r.Target)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}
	findingsJSON, err := json.Marshal(r.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO reports (
		id, asset, target_json, title, status, findings_json, priority_score, fingerprint,
		submission_note, submission_ref, attempts, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Asset), string(targetJSON), r.Title, string(r.Status), string(findingsJSON),
		r.Findings.PriorityScore, r.Fingerprint, r.SubmissionNote, r.SubmissionRef, r.Attempts,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// UpdateReportStatus writes r's lifecycle fields, provided the stored status is
// still from. It returns model.ErrConflict otherwise.
func (s *DB) UpdateReportStatus(ctx context.Context, r *model.Report, from model.ReportStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer s.rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE reports
		SET status = ?, submission_note = ?, submission_ref = ?, attempts = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(r.Status), r.SubmissionNote, r.SubmissionRef, r.Attempts, formatTime(r.UpdatedAt),
		r.ID, string(from))
	if err != nil {
		return fmt.Errorf("update report %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM reports WHERE id = ?`, r.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("report %s: %w", r.ID, model.ErrNotFound)
		}
		return fmt.Errorf("report %s is no longer %s: %w", r.ID, from, model.ErrConflict)
	}
	return tx.Commit()
}

// GetReport loads a report by id.
func (s *DB) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, model.ErrNotFound)
	}
	return r, err
}

// LatestReportForAsset returns the most recently created report for asset.
func (s *DB) LatestReportForAsset(ctx context.Context, asset model.Asset) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports
		WHERE asset = ? ORDER BY created_at DESC LIMIT 1`, string(asset))
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for %s: %w", asset, model.ErrNotFound)
	}
	return r, err
}

// ListReports returns reports newest first.
func (s *DB) ListReports(ctx context.Context, f model.ReportFilter) ([]*model.Report, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Asset != "" {
		where = append(where, "asset = ?")
		args = append(args, string(f.Asset))
	}
	q := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*model.Report, error) {
	var (
		r                    model.Report
		asset, status        string
		targetJSON, findJSON string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &asset, &targetJSON, &r.Title, &status, &findJSON, &r.Fingerprint,
		&r.SubmissionNote, &r.SubmissionRef, &r.Attempts, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	r.Asset = model.Asset(asset)
	r.Status = model.ReportStatus(status)
	if err := json.Unmarshal([]byte(targetJSON), &r.Target); err != nil {
		return nil, fmt.Errorf("decode target of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(findJSON), &r.Findings); err != nil {
		return nil, fmt.Errorf("decode findings of %s: %w", r.ID, err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}
