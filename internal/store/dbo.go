package store

import (
	"database/sql"
	"time"

	"github.com/scribeq/scribeq/internal/domain"
)

// itemDBO maps to the queue_items table. CreatedAt is unix nanoseconds:
// KSUID timestamps only resolve to the second, so restoring enqueue order
// needs a finer clock than the id alone.
type itemDBO struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Source     string         `db:"source"`
	SourceKind string         `db:"source_kind"`
	Status     string         `db:"status"`
	Progress   float64        `db:"progress"`
	Result     sql.NullString `db:"result"`
	Error      sql.NullString `db:"error"`
	LocalPath  sql.NullString `db:"local_path"`
	CreatedAt  int64          `db:"created_at"`
}

// Mapper: DBO to Domain Item
func (d *itemDBO) ToDomain() *domain.Item {
	return &domain.Item{
		ID:   d.ID,
		Name: d.Name,
		Source: domain.SourceRef{
			Kind: domain.SourceKind(d.SourceKind),
			Raw:  d.Source,
		},
		Status:    domain.ItemStatus(d.Status),
		Progress:  d.Progress,
		Result:    d.Result.String,
		Error:     d.Error.String,
		LocalPath: d.LocalPath.String,
		CreatedAt: time.Unix(0, d.CreatedAt),
	}
}

// Mapper: Domain Item to DBO
func (d *itemDBO) FromDomain(item *domain.Item) {
	d.ID = item.ID
	d.Name = item.Name
	d.Source = item.Source.Raw
	d.SourceKind = string(item.Source.Kind)
	d.Status = string(item.Status)
	d.Progress = item.Progress
	d.Result = sql.NullString{String: item.Result, Valid: item.Result != ""}
	d.Error = sql.NullString{String: item.Error, Valid: item.Error != ""}
	d.LocalPath = sql.NullString{String: item.LocalPath, Valid: item.LocalPath != ""}

	if !item.CreatedAt.IsZero() {
		d.CreatedAt = item.CreatedAt.UnixNano()
	} else {
		d.CreatedAt = 0
	}
}
