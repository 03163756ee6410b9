package store

import (
	"context"
	"fmt"

	"github.com/raysh454/hunter/internal/model"
)

// LoadFingerprints returns every recorded fingerprint.
func (s *DB) LoadFingerprints(ctx context.Context) ([]model.Fingerprint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT digest FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	var out []model.Fingerprint
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		fp, err := model.ParseFingerprint(digest)
		if err != nil {
			return nil, fmt.Errorf("corrupt fingerprint row %q: %w", digest, err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// AppendFingerprint records fp. Appending a known fingerprint is a no-op.
func (s *DB) AppendFingerprint(ctx context.Context, fp model.Fingerprint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fingerprints (digest, recorded_at) VALUES (?, ?)`,
		fp.String(), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}
