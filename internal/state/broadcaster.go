package state

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/arbor-dev/arbor/internal/repos"
)

// subscriberBuffer bounds each subscriber channel. A slow subscriber loses
// intermediate snapshots but always receives the latest one eventually.
const subscriberBuffer = 16

// Broadcaster owns the ephemeral progress map and fans full-state snapshots
// out to subscribers. Snapshots are recomputed from the store on every
// notification, never cached.
type Broadcaster struct {
	store  *repos.Store
	logger *zap.Logger

	progressMu  sync.RWMutex
	progress    map[string]string
	subscribers map[uint64]chan FullState
	nextID      uint64
}

func NewBroadcaster(store *repos.Store, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		store:  store,
		logger: logger,

		progress:    map[string]string{},
		subscribers: map[uint64]chan FullState{},
	}
}

// SetProgress records the progress text for a resource key.
func (b *Broadcaster) SetProgress(key, message string) {
	b.progressMu.Lock()
	b.progress[key] = message
	b.progressMu.Unlock()

	b.NotifyChanged()
}

// ClearProgress removes the progress entry for a resource key.
func (b *Broadcaster) ClearProgress(key string) {
	b.progressMu.Lock()
	delete(b.progress, key)
	b.progressMu.Unlock()

	b.NotifyChanged()
}

// NotifyChanged recomputes the snapshot and pushes it to every subscriber.
func (b *Broadcaster) NotifyChanged() {
	snapshot, err := b.Snapshot(context.Background())
	if err != nil {
		b.logger.Error("failed to compute snapshot", zap.Error(err))
		return
	}

	b.progressMu.RLock()
	defer b.progressMu.RUnlock()

	for _, ch := range b.subscribers {
		send(ch, snapshot)
	}
}

// Snapshot reads the full state through from the store and merges in the
// current progress map.
func (b *Broadcaster) Snapshot(ctx context.Context) (FullState, error) {
	repositories, err := b.store.ListRepositories(ctx)
	if err != nil {
		return FullState{}, err
	}

	snapshots := make([]RepositorySnapshot, 0, len(repositories))
	for _, repo := range repositories {
		worktrees, err := b.store.ListWorktrees(ctx, repo.ID)
		if err != nil {
			return FullState{}, err
		}
		snapshots = append(snapshots, newRepositorySnapshot(repo, worktrees))
	}

	b.progressMu.RLock()
	progress := maps.Clone(b.progress)
	b.progressMu.RUnlock()

	return FullState{
		Repositories: snapshots,
		Progress:     progress,
	}, nil
}

// Subscribe registers a new snapshot receiver. The returned channel is closed
// by Unsubscribe.
func (b *Broadcaster) Subscribe() (uint64, <-chan FullState) {
	ch := make(chan FullState, subscriberBuffer)

	b.progressMu.Lock()
	defer b.progressMu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers[id] = ch

	return id, ch
}

// Unsubscribe removes a receiver and closes its channel.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.progressMu.Lock()
	defer b.progressMu.Unlock()

	ch, ok := b.subscribers[id]
	if !ok {
		return
	}

	delete(b.subscribers, id)
	close(ch)
}

// send delivers without blocking. When the buffer is full the oldest pending
// snapshot is dropped so the newest always wins.
func send(ch chan FullState, snapshot FullState) {
	select {
	case ch <- snapshot:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- snapshot:
	default:
	}
}
