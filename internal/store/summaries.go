package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindClusterSummary returns the cached summary for a cluster id, or nil.
func (s *Store) FindClusterSummary(ctx context.Context, id string) (*ClusterSummary, error) {
	var cs ClusterSummary
	err := s.readDB.QueryRowContext(ctx,
		s.rebind("SELECT id, summary, created_at FROM cluster_summaries WHERE id = ?"), id).
		Scan(&cs.ID, &cs.Summary, &cs.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding cluster summary %s: %w", id, err)
	}
	return &cs, nil
}

// CreateClusterSummary writes a summary once. An existing id returns ErrDuplicate
// and leaves the stored text untouched.
func (s *Store) CreateClusterSummary(ctx context.Context, id, summary string) (ClusterSummary, error) {
	cs := ClusterSummary{ID: id, Summary: summary, CreatedAt: time.Now().UTC()}
	res, err := s.writeDB.ExecContext(ctx, s.rebind(`
		INSERT INTO cluster_summaries (id, summary, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`), cs.ID, cs.Summary, cs.CreatedAt)
	if err != nil {
		return ClusterSummary{}, fmt.Errorf("creating cluster summary %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ClusterSummary{}, err
	}
	if n == 0 {
		return ClusterSummary{}, ErrDuplicate
	}
	return cs, nil
}

// ClusterSummaries maps the requested ids to their summary text. Ids without
// a summary are absent from the result.
func (s *Store) ClusterSummaries(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.readDB.QueryContext(ctx,
		s.rebind("SELECT id, summary FROM cluster_summaries WHERE id IN ("+placeholders(len(ids))+")"), args...)
	if err != nil {
		return nil, fmt.Errorf("querying cluster summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, summary string
		if err := rows.Scan(&id, &summary); err != nil {
			return nil, err
		}
		out[id] = summary
	}
	return out, rows.Err()
}

func (s *Store) ListClusterSummaries(ctx context.Context) ([]ClusterSummary, error) {
	rows, err := s.readDB.QueryContext(ctx, "SELECT id, summary, created_at FROM cluster_summaries ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing cluster summaries: %w", err)
	}
	defer rows.Close()

	var out []ClusterSummary
	for rows.Next() {
		var cs ClusterSummary
		if err := rows.Scan(&cs.ID, &cs.Summary, &cs.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// DeleteClusterSummariesExcept removes every cached summary whose id is not in keep.
func (s *Store) DeleteClusterSummariesExcept(ctx context.Context, keep []string) (int64, error) {
	query := "DELETE FROM cluster_summaries"
	args := make([]any, len(keep))
	for i, id := range keep {
		args[i] = id
	}
	if len(keep) > 0 {
		query += " WHERE id NOT IN (" + placeholders(len(keep)) + ")"
	}

	res, err := s.writeDB.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("pruning cluster summaries: %w", err)
	}
	return res.RowsAffected()
}
