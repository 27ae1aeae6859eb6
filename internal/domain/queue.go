package domain

import (
	"context"
	"time"
)

type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
	StatusCancelled  ItemStatus = "cancelled" // transient: a cancelled item is removed from the queue
)

// Item represents one unit of submitted transcription work
type Item struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Source SourceRef  `json:"source"`
	Status ItemStatus `json:"status"`

	// Progress is a fraction in [0,1]. It only moves backwards on retry.
	Progress float64 `json:"progress"`

	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	LocalPath string `json:"local_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	CancelFunc context.CancelFunc `json:"-"`
}

// Snapshot returns a copy safe to hand outside the queue's lock.
func (i *Item) Snapshot() Item {
	cp := *i
	cp.CancelFunc = nil
	return cp
}

// Stats are the derived per-status counts of the live queue.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
