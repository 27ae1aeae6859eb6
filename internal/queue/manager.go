package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/scribeq/scribeq/internal/app"
	"github.com/scribeq/scribeq/internal/domain"
	"github.com/scribeq/scribeq/internal/infra/logger"
	"github.com/scribeq/scribeq/internal/resolve"
)

const (
	// progressInterval is how often the worker samples runner progress
	// into the active item.
	progressInterval = 100 * time.Millisecond

	// interItemDelay is a small pause between items so a long queue does
	// not hammer remote hosts back to back.
	interItemDelay = 100 * time.Millisecond
)

// Outcome is what a successful run hands back to the scheduler.
type Outcome struct {
	// Text is the finished transcript. It is also set alongside an error
	// when transcription succeeded but a sink failed.
	Text string

	// Name replaces the item's display name when non-empty, e.g. with a
	// resolved video title.
	Name string

	// LocalPath is the audio file the transcript came from.
	LocalPath string
}

// Runner executes one queue item start to finish.
type Runner interface {
	Run(ctx context.Context, item *domain.Item) (*Outcome, error)

	// Progress reports the in-flight download fraction in [0, 1].
	Progress() float64
}

type Manager struct {
	mu     sync.RWMutex
	runner Runner
	store  app.Store
	log    *logger.Logger

	queue  []*domain.Item
	active *domain.Item

	newJobChan chan struct{}

	obsMu     sync.Mutex
	observers []func()
}

// NewManager initializes the scheduler. When loadExisting is true the
// queue is restored from the database; items caught mid-processing by a
// previous shutdown are reset to pending so they run again.
func NewManager(store app.Store, runner Runner, log *logger.Logger, loadExisting bool) *Manager {
	if log == nil {
		log = logger.Nop()
	}

	var items []*domain.Item
	if loadExisting {
		restored, err := store.Items()
		if err != nil {
			log.Warn("failed to restore queue: %v", err)
		}
		for _, item := range restored {
			if item.Status == domain.StatusProcessing {
				item.Status = domain.StatusPending
				item.Progress = 0
				_ = store.SaveItem(item)
			}
			items = append(items, item)
		}
	}

	return &Manager{
		runner:     runner,
		store:      store,
		log:        log,
		queue:      items,
		newJobChan: make(chan struct{}, 1),
	}
}

// Enqueue appends one item per source and notifies the worker loop.
// names is a parallel slice of optional display names.
func (m *Manager) Enqueue(sources, names []string) ([]domain.Item, error) {
	created := make([]domain.Item, 0, len(sources))

	m.mu.Lock()
	for i, raw := range sources {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		src := domain.ClassifySource(raw, resolve.IsRemoteSource)

		name := ""
		if i < len(names) {
			name = strings.TrimSpace(names[i])
		}
		if name == "" {
			name = src.DefaultName()
		}

		item := &domain.Item{
			ID:        ksuid.New().String(),
			Name:      name,
			Source:    src,
			Status:    domain.StatusPending,
			CreatedAt: time.Now(),
		}

		if err := m.store.SaveItem(item); err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to save queue item: %w", err)
		}

		m.queue = append(m.queue, item)
		created = append(created, item.Snapshot())
	}
	m.mu.Unlock()

	if len(created) == 0 {
		return nil, errors.New("no usable sources given")
	}

	m.signal()
	m.notify()
	return created, nil
}

// Start launches the worker loop. The returned channel closes once the
// loop has fully unwound after ctx is cancelled; by then an interrupted
// item has finished its requeue, so callers that own the store should
// wait on it before closing.
func (m *Manager) Start(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		m.loop(ctx)
	}()
	return stopped
}

// loop claims items strictly in queue order, one at a time.
func (m *Manager) loop(ctx context.Context) {
	for {
		next, jobCtx, cancel := m.claimNext(ctx)
		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}
		m.notify()

		done := make(chan struct{})
		go m.trackProgress(jobCtx, next, done)

		outcome, err := m.runner.Run(jobCtx, next)

		// Distinguish a per-item cancel from a full shutdown before the
		// cleanup cancel below muddies the context state.
		userCancelled := jobCtx.Err() != nil && ctx.Err() == nil
		cancel()
		<-done

		if ctx.Err() != nil {
			// Shutting down: hand the item back to the next run
			m.requeue(next)
			return
		}

		if userCancelled || errors.Is(err, context.Canceled) {
			m.removeCancelled(next)
		} else {
			m.finalize(next, outcome, err)
		}

		select {
		case <-time.After(interItemDelay):
		case <-ctx.Done():
			return
		}
	}
}

// claimNext picks the first pending item and marks it processing in the
// same critical section, so a concurrent removal cannot race the claim.
func (m *Manager) claimNext(ctx context.Context) (*domain.Item, context.Context, context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.queue {
		if item.Status != domain.StatusPending {
			continue
		}

		jobCtx, cancel := context.WithCancel(ctx)
		item.Status = domain.StatusProcessing
		item.Progress = 0
		item.Error = ""
		item.CancelFunc = cancel
		m.active = item
		_ = m.store.SaveItem(item)
		return item, jobCtx, cancel
	}
	return nil, nil, nil
}

// trackProgress copies runner progress into the item until the job
// context ends. Progress never moves backwards within one run.
func (m *Manager) trackProgress(ctx context.Context, item *domain.Item, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frac := m.runner.Progress()
			m.mu.Lock()
			changed := frac > item.Progress
			if changed {
				item.Progress = frac
			}
			m.mu.Unlock()
			if changed {
				m.notify()
			}
		}
	}
}

func (m *Manager) finalize(item *domain.Item, outcome *Outcome, err error) {
	m.mu.Lock()

	if outcome != nil {
		// Keep whatever the run produced even when it ultimately failed,
		// so a sink failure does not throw the transcript away.
		if outcome.Text != "" {
			item.Result = outcome.Text
		}
		if outcome.Name != "" {
			item.Name = outcome.Name
		}
		if outcome.LocalPath != "" {
			item.LocalPath = outcome.LocalPath
		}
	}

	if err != nil {
		item.Status = domain.StatusFailed
		item.Error = err.Error()
	} else {
		item.Status = domain.StatusCompleted
		item.Progress = 1
		item.Error = ""
	}

	_ = m.store.SaveItem(item)
	item.CancelFunc = nil
	m.active = nil
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("queue item %s failed: %v", item.ID, err)
	} else {
		m.log.Info("queue item %s completed", item.ID)
	}
	m.notify()
}

// removeCancelled drops a cancelled item entirely. Cancellation is not
// an error: the item just disappears.
func (m *Manager) removeCancelled(item *domain.Item) {
	m.mu.Lock()
	_ = m.store.DeleteItem(item.ID)
	item.CancelFunc = nil
	m.active = nil
	m.removeLocked(item.ID)
	m.mu.Unlock()

	m.log.Info("queue item %s cancelled and removed", item.ID)
	m.notify()
}

// requeue returns an interrupted item to pending for the next process
// start.
func (m *Manager) requeue(item *domain.Item) {
	m.mu.Lock()
	item.Status = domain.StatusPending
	item.Progress = 0
	item.CancelFunc = nil
	_ = m.store.SaveItem(item)
	m.active = nil
	m.mu.Unlock()
}

// Cancel stops the item with the given id. A processing item is aborted
// and removed by the worker; a pending item is dropped immediately.
// Unknown or finished ids are a no-op.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()

	var cancelled, removed bool
	for _, item := range m.queue {
		if item.ID != id {
			continue
		}

		switch item.Status {
		case domain.StatusProcessing:
			if item.CancelFunc != nil {
				item.CancelFunc()
			}
			cancelled = true
		case domain.StatusPending:
			_ = m.store.DeleteItem(id)
			m.removeLocked(id)
			cancelled, removed = true, true
		}
		break
	}
	m.mu.Unlock()

	if removed {
		m.notify()
	}
	return cancelled
}

// CancelAll cancels the active item and drops every pending one.
func (m *Manager) CancelAll() int {
	m.mu.Lock()

	count := 0
	kept := make([]*domain.Item, 0, len(m.queue))
	for _, item := range m.queue {
		switch item.Status {
		case domain.StatusProcessing:
			if item.CancelFunc != nil {
				item.CancelFunc()
			}
			count++
			kept = append(kept, item)
		case domain.StatusPending:
			_ = m.store.DeleteItem(item.ID)
			count++
		default:
			kept = append(kept, item)
		}
	}
	m.queue = kept
	m.mu.Unlock()

	if count > 0 {
		m.notify()
	}
	return count
}

// RetryFailed resets every failed item to pending. Retried items move
// behind anything already waiting, so the pick order is their position
// at retry time, not at original enqueue time.
func (m *Manager) RetryFailed() int {
	m.mu.Lock()

	var retried []*domain.Item
	kept := make([]*domain.Item, 0, len(m.queue))
	for _, item := range m.queue {
		if item.Status != domain.StatusFailed {
			kept = append(kept, item)
			continue
		}
		item.Status = domain.StatusPending
		item.Progress = 0
		item.Error = ""
		item.Result = ""
		_ = m.store.SaveItem(item)
		retried = append(retried, item)
	}
	m.queue = append(kept, retried...)
	m.mu.Unlock()

	if len(retried) > 0 {
		m.signal()
		m.notify()
	}
	return len(retried)
}

// Remove deletes an item from the queue. A processing item is cancelled
// first; the worker then removes it once the run unwinds.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()

	var found, removed bool
	for _, item := range m.queue {
		if item.ID != id {
			continue
		}
		found = true
		if item.Status == domain.StatusProcessing {
			if item.CancelFunc != nil {
				item.CancelFunc()
			}
			break
		}
		_ = m.store.DeleteItem(id)
		m.removeLocked(id)
		removed = true
		break
	}
	m.mu.Unlock()

	if removed {
		m.notify()
	}
	return found
}

// ClearCompleted drops every completed item.
func (m *Manager) ClearCompleted() error {
	m.mu.Lock()
	kept := make([]*domain.Item, 0, len(m.queue))
	for _, item := range m.queue {
		if item.Status != domain.StatusCompleted {
			kept = append(kept, item)
		}
	}
	m.queue = kept
	err := m.store.DeleteByStatus(domain.StatusCompleted)
	m.mu.Unlock()

	m.notify()
	return err
}

// ClearAll empties the queue. The active item, if any, is cancelled and
// stays visible until the worker removes it.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	kept := make([]*domain.Item, 0, 1)
	for _, item := range m.queue {
		if item.Status == domain.StatusProcessing {
			if item.CancelFunc != nil {
				item.CancelFunc()
			}
			kept = append(kept, item)
		}
	}
	m.queue = kept
	err := m.store.Clear()
	m.mu.Unlock()

	m.notify()
	return err
}

// Items returns snapshots of the whole queue in order.
func (m *Manager) Items() []domain.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Snapshots, so the caller can never touch live worker state
	items := make([]domain.Item, 0, len(m.queue))
	for _, item := range m.queue {
		items = append(items, item.Snapshot())
	}
	return items
}

// Item returns a snapshot of one queue item.
func (m *Manager) Item(id string) (domain.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.queue {
		if item.ID == id {
			return item.Snapshot(), true
		}
	}
	return domain.Item{}, false
}

// Current returns the item being processed right now.
func (m *Manager) Current() (domain.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == nil {
		return domain.Item{}, false
	}
	return m.active.Snapshot(), true
}

func (m *Manager) IsProcessing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil
}

func (m *Manager) Stats() domain.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats domain.Stats
	for _, item := range m.queue {
		switch item.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// OnChange registers a callback invoked after every observable queue
// mutation. Callbacks must not block.
func (m *Manager) OnChange(fn func()) {
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

func (m *Manager) notify() {
	m.obsMu.Lock()
	observers := make([]func(), len(m.observers))
	copy(observers, m.observers)
	m.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// signal wakes the worker loop without blocking.
func (m *Manager) signal() {
	select {
	case m.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}
}

// removeLocked drops an item from the live slice. Caller holds mu.
func (m *Manager) removeLocked(id string) {
	for i, item := range m.queue {
		if item.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
