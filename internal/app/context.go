package app

import (
	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/infra/config"
	"github.com/scribeq/scribeq/internal/infra/logger"
)

// Store is the persistence contract for queue items.
// This allows the scheduler to save state without importing the store package.
type Store interface {
	SaveItem(item *domain.Item) error
	Items() ([]*domain.Item, error)
	DeleteItem(id string) error
	DeleteByStatus(statuses ...domain.ItemStatus) error
	Clear() error
	Close() error
}

// Queue is the slice of the scheduler the HTTP layer can reach.
type Queue interface {
	Enqueue(sources, names []string) ([]domain.Item, error)
	Items() []domain.Item
	Item(id string) (domain.Item, bool)
	Cancel(id string) bool
	CancelAll() int
	Remove(id string) bool
	RetryFailed() int
	ClearCompleted() error
	ClearAll() error
	Stats() domain.Stats
	IsProcessing() bool
	Current() (domain.Item, bool)
}

// Cache is the slice of the download cache the HTTP layer can reach.
type Cache interface {
	SweepExpired()
	PurgeAll() error
	Len() int
}

// Context holds the core environment and shared resources for scribeq.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	// High-level interfaces for services to use
	Queue Queue
	Cache Cache
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
