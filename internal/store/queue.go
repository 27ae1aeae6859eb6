package store

import (
	"fmt"
	"strings"

	"github.com/scribeq/scribeq/internal/domain"
)

func (s *Store) SaveItem(item *domain.Item) error {
	var dbo itemDBO
	dbo.FromDomain(item)

	query := `INSERT OR REPLACE INTO queue_items (id, name, source, source_kind, status, progress, result, error, local_path, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		dbo.ID,
		dbo.Name,
		dbo.Source,
		dbo.SourceKind,
		dbo.Status,
		dbo.Progress,
		dbo.Result,
		dbo.Error,
		dbo.LocalPath,
		dbo.CreatedAt,
	)
	return err
}

func (s *Store) Items() ([]*domain.Item, error) {
	// created_at carries nanoseconds, so this restores enqueue order even
	// for items submitted in the same second. The id is just a tiebreaker.
	query := `
		SELECT id, name, source, source_kind, status, progress, result, error, local_path, created_at
		FROM queue_items
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queue items: %w", err)
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		var dbo itemDBO
		err := rows.Scan(
			&dbo.ID, &dbo.Name, &dbo.Source, &dbo.SourceKind, &dbo.Status,
			&dbo.Progress, &dbo.Result, &dbo.Error, &dbo.LocalPath, &dbo.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, dbo.ToDomain())
	}

	return items, rows.Err()
}

func (s *Store) DeleteItem(id string) error {
	_, err := s.db.Exec(`DELETE FROM queue_items WHERE id = ?`, id)
	return err
}

func (s *Store) DeleteByStatus(statuses ...domain.ItemStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}

	query := fmt.Sprintf(`DELETE FROM queue_items WHERE status IN (%s)`, placeholders)
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM queue_items`)
	return err
}
