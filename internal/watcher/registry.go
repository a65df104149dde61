// Package watcher runs confirmation trackers for submitted transactions in
// the background. Watches outlive the request that started them and survive
// until a terminal status arrives or the registry is stopped.
package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/metrics"
	"github.com/certiform/credential-gateway/internal/tracker"
)

const defaultMaxConcurrentWatchers = 32

// Notifier receives the user-facing outcome of a completed watch.
type Notifier interface {
	NotifySuccess(ctx context.Context, message string)
	NotifyFailure(ctx context.Context, message string)
}

// WatchMetadata carries the outcome messages shown when the watched
// transaction completes. Empty messages fall back to a generic one derived
// from the transaction type.
type WatchMetadata struct {
	SuccessMessage string
	FailureMessage string
}

type watchEntry struct {
	txType   entities.TransactionType
	metadata WatchMetadata
	cancel   context.CancelFunc
}

type RegistryOptions struct {
	OpenStream  tracker.StreamOpener
	FetchStatus tracker.StatusFetcher
	Poller      tracker.PollerConfig
	// Notifier may be nil; outcomes are then only logged.
	Notifier       Notifier
	MetricsService metrics.MetricsService
	// MaxConcurrentWatchers bounds the worker pool. Zero means the default.
	MaxConcurrentWatchers int
}

// Registry deduplicates and supervises one confirmation watch per
// transaction hash. Completed hashes are remembered so a late duplicate
// registration cannot restart tracking or re-notify.
type Registry struct {
	openStream     tracker.StreamOpener
	fetchStatus    tracker.StatusFetcher
	pollerConfig   tracker.PollerConfig
	notifier       Notifier
	metricsService metrics.MetricsService
	pool           pond.Pool

	// mu guards active. completed is safe for concurrent use on its own.
	mu        sync.Mutex
	active    map[string]*watchEntry
	completed mapset.Set[string]
}

func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.FetchStatus == nil {
		return nil, fmt.Errorf("status fetcher is required")
	}

	maxWorkers := opts.MaxConcurrentWatchers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxConcurrentWatchers
	}
	pool := pond.NewPool(maxWorkers)
	if opts.MetricsService != nil {
		opts.MetricsService.RegisterPoolMetrics("watcher", pool)
	}

	r := &Registry{
		openStream:     opts.OpenStream,
		fetchStatus:    opts.FetchStatus,
		pollerConfig:   opts.Poller,
		notifier:       opts.Notifier,
		metricsService: opts.MetricsService,
		pool:           pool,
		active:         make(map[string]*watchEntry),
		completed:      mapset.NewSet[string](),
	}
	return r, nil
}

// Watch starts tracking the given transaction hash. It is idempotent: a
// hash that is already being watched, or that already completed, is left
// alone and the call reports whether a new watch was started.
func (r *Registry) Watch(hash string, txType entities.TransactionType, metadata WatchMetadata) (bool, error) {
	if hash == "" {
		return false, fmt.Errorf("transaction hash is required")
	}
	if r.completed.Contains(hash) {
		return false, nil
	}

	r.mu.Lock()
	if _, exists := r.active[hash]; exists {
		r.mu.Unlock()
		return false, nil
	}

	// Watches are detached from any request context: navigating away from
	// the page that started a transaction must not abort its tracking.
	ctx, cancel := context.WithCancel(context.Background())
	ctx = log.Set(ctx, log.DefaultLogger)

	confirmationTracker, err := tracker.NewConfirmationTracker(tracker.ConfirmationTrackerOptions{
		TransactionHash: hash,
		TransactionType: txType,
		OpenStream:      r.openStream,
		FetchStatus:     r.fetchStatus,
		Poller:          r.pollerConfig,
		OnComplete:      func(status entities.TransactionStatus) { r.complete(ctx, status) },
		MetricsService:  r.metricsService,
	})
	if err != nil {
		cancel()
		r.mu.Unlock()
		return false, fmt.Errorf("creating confirmation tracker for %s: %w", hash, err)
	}

	r.active[hash] = &watchEntry{txType: txType, metadata: metadata, cancel: cancel}
	activeCount := len(r.active)
	r.mu.Unlock()

	if r.metricsService != nil {
		r.metricsService.SetActiveWatchers(activeCount)
	}
	log.Ctx(ctx).Infof("watching transaction %s (%s)", hash, txType)

	r.pool.Submit(func() {
		defer cancel()
		confirmationTracker.Track(ctx)
		r.evict(hash)
	})

	return true, nil
}

// IsWatching reports whether the hash has an in-flight watch.
func (r *Registry) IsWatching(hash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.active[hash]
	return exists
}

// ActiveCount returns the number of in-flight watches.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Stop cancels all in-flight watches and waits for their workers to drain.
// Cancelled watches complete silently, so no spurious outcome notifications
// fire during shutdown.
func (r *Registry) Stop() {
	r.mu.Lock()
	for _, entry := range r.active {
		entry.cancel()
	}
	r.mu.Unlock()

	r.pool.StopAndWait()
}

// complete records a terminal status and delivers the outcome notification
// exactly once per hash.
func (r *Registry) complete(ctx context.Context, status entities.TransactionStatus) {
	hash := status.TransactionHash
	if !r.completed.Add(hash) {
		return
	}

	r.mu.Lock()
	entry := r.active[hash]
	delete(r.active, hash)
	activeCount := len(r.active)
	r.mu.Unlock()

	if r.metricsService != nil {
		r.metricsService.SetActiveWatchers(activeCount)
	}

	var metadata WatchMetadata
	txType := status.TransactionType
	if entry != nil {
		metadata = entry.metadata
		txType = entry.txType
	}

	if status.State == entities.UpdatedState {
		message := metadata.SuccessMessage
		if message == "" {
			message = fmt.Sprintf("%s confirmed", txType.DisplayName())
		}
		log.Ctx(ctx).Infof("transaction %s completed: %s", hash, message)
		if r.notifier != nil {
			r.notifier.NotifySuccess(ctx, message)
		}
		return
	}

	message := metadata.FailureMessage
	if message == "" {
		message = fmt.Sprintf("%s did not complete", txType.DisplayName())
	}
	if status.LastError != "" {
		message = fmt.Sprintf("%s: %s", message, status.LastError)
	}
	log.Ctx(ctx).Warnf("transaction %s ended in state %s: %s", hash, status.State, message)
	if r.notifier != nil {
		r.notifier.NotifyFailure(ctx, message)
	}
}

// evict clears a watch whose tracker returned without completing, which
// only happens on cancellation.
func (r *Registry) evict(hash string) {
	r.mu.Lock()
	_, existed := r.active[hash]
	delete(r.active, hash)
	activeCount := len(r.active)
	r.mu.Unlock()

	if existed && r.metricsService != nil {
		r.metricsService.SetActiveWatchers(activeCount)
	}
}
