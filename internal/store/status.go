package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/raysh454/hunter/internal/model"
)

const cycleStatusKey = "cycle_status"

// SaveCycleStatus replaces the persisted cycle status.
func (s *DB) SaveCycleStatus(ctx context.Context, st model.CycleStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal cycle status: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		cycleStatusKey, string(b), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save cycle status: %w", err)
	}
	return nil
}

// LoadCycleStatus returns the persisted cycle status, or an idle status when
// nothing has been saved yet.
func (s *DB) LoadCycleStatus(ctx context.Context) (model.CycleStatus, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, cycleStatusKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CycleStatus{Phase: model.PhaseIdle}, nil
	}
	if err != nil {
		return model.CycleStatus{}, fmt.Errorf("load cycle status: %w", err)
	}
	var st model.CycleStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return model.CycleStatus{}, fmt.Errorf("decode cycle status: %w", err)
	}
	return st, nil
}

// IncrementCounter adds delta to the named counter.
func (s *DB) IncrementCounter(ctx context.Context, name string, delta int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`, name, delta)
	if err != nil {
		return fmt.Errorf("increment counter %s: %w", name, err)
	}
	return nil
}

// LoadCounters returns every counter, with zero for the ones never incremented.
func (s *DB) LoadCounters(ctx context.Context) (model.Counters, error) {
	out := make(model.Counters, len(model.CounterNames))
	for _, name := range model.CounterNames {
		out[name] = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}
