package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/eventstream"
	"github.com/certiform/credential-gateway/internal/metrics"
	"github.com/certiform/credential-gateway/internal/utils"
)

// StreamOpener opens the confirmation-events stream for a transaction
// hash. Any error is the streaming-failure signal that activates the
// polling fallback.
type StreamOpener func(ctx context.Context, hash string) (io.ReadCloser, error)

const streamReadBufferSize = 4096

type ConfirmationTrackerOptions struct {
	TransactionHash string
	TransactionType entities.TransactionType
	// OpenStream may be nil to force poll-only tracking.
	OpenStream  StreamOpener
	FetchStatus StatusFetcher
	Poller      PollerConfig
	// OnStatus receives every observed status in order, terminal included.
	OnStatus func(entities.TransactionStatus)
	// OnComplete receives the terminal status exactly once.
	OnComplete     func(entities.TransactionStatus)
	MetricsService metrics.MetricsService
}

// ConfirmationTracker tracks one submitted transaction to its terminal
// confirmation state. It prefers the streaming transport and transparently
// falls back to the StatusPoller, exposing the same callback surface either
// way.
type ConfirmationTracker struct {
	hash           string
	txType         entities.TransactionType
	openStream     StreamOpener
	poller         *StatusPoller
	onStatus       func(entities.TransactionStatus)
	onComplete     func(entities.TransactionStatus)
	metricsService metrics.MetricsService

	mu        sync.Mutex
	completed bool
}

func NewConfirmationTracker(opts ConfirmationTrackerOptions) (*ConfirmationTracker, error) {
	if opts.OnComplete == nil {
		return nil, errors.New("onComplete callback is required")
	}

	t := &ConfirmationTracker{
		hash:           opts.TransactionHash,
		txType:         opts.TransactionType,
		openStream:     opts.OpenStream,
		onStatus:       opts.OnStatus,
		onComplete:     opts.OnComplete,
		metricsService: opts.MetricsService,
	}

	poller, err := NewStatusPoller(opts.TransactionHash, opts.TransactionType, opts.FetchStatus, opts.Poller)
	if err != nil {
		return nil, err
	}
	poller.OnStatus = t.emitStatus
	t.poller = poller

	return t, nil
}

// Track blocks until a terminal status has been reported or ctx is
// cancelled. Cancellation terminates tracking silently: no completion
// callback fires and the outcome is "unknown". Track must be called at
// most once per tracker.
func (t *ConfirmationTracker) Track(ctx context.Context) {
	final, done := t.trackViaStream(ctx)
	if ctx.Err() != nil {
		return
	}

	if !done {
		if t.metricsService != nil {
			t.metricsService.IncTrackerTransport("poller")
		}
		status, err := t.poller.Run(ctx)
		if err != nil {
			// Cancelled mid-poll; the caller owns the silence.
			return
		}
		final = status
	}

	t.complete(*final)
}

// trackViaStream consumes the streaming transport until a terminal status
// arrives. It reports done=false whenever the stream cannot be opened,
// returns a non-success response, or ends before a terminal status, so the
// caller can fall back to polling.
func (t *ConfirmationTracker) trackViaStream(ctx context.Context) (*entities.TransactionStatus, bool) {
	if t.openStream == nil {
		return nil, false
	}

	body, err := t.openStream(ctx, t.hash)
	if err != nil {
		log.Ctx(ctx).Warnf("confirmation stream unavailable for %s, falling back to polling: %v", t.hash, err)
		if t.metricsService != nil {
			t.metricsService.IncTrackerFallback()
		}
		return nil, false
	}
	defer utils.DeferredClose(ctx, body, "closing confirmation stream body")

	if t.metricsService != nil {
		t.metricsService.IncTrackerTransport("stream")
	}

	buf := make([]byte, streamReadBufferSize)
	var buffered string
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			buffered += string(buf[:n])
			var complete string
			complete, buffered = eventstream.SplitComplete(buffered)
			if final, ok := t.consumeEvents(ctx, complete); ok {
				return final, true
			}
		}
		if readErr != nil {
			// A stream may end flushing a final block with no trailing
			// blank line.
			if errors.Is(readErr, io.EOF) && buffered != "" {
				if final, ok := t.consumeEvents(ctx, buffered); ok {
					return final, true
				}
			}
			if ctx.Err() == nil {
				log.Ctx(ctx).Warnf("confirmation stream for %s ended without terminal status, falling back to polling: %v", t.hash, readErr)
				if t.metricsService != nil {
					t.metricsService.IncTrackerFallback()
				}
			}
			return nil, false
		}
	}
}

// consumeEvents parses a run of complete blocks and delivers each decoded
// status in order. It returns ok=true with the terminal status as soon as
// one is observed.
func (t *ConfirmationTracker) consumeEvents(ctx context.Context, chunk string) (*entities.TransactionStatus, bool) {
	for _, event := range eventstream.Parse(chunk) {
		var status entities.TransactionStatus
		if err := json.Unmarshal([]byte(event.Data), &status); err != nil {
			log.Ctx(ctx).Debugf("dropping undecodable stream event for %s: %v", t.hash, err)
			continue
		}
		if status.State == "" {
			continue
		}
		if status.TransactionHash == "" {
			status.TransactionHash = t.hash
		}
		if status.TransactionType == "" {
			status.TransactionType = t.txType
		}
		t.emitStatus(status)
		if status.State.IsTerminal() {
			return &status, true
		}
	}
	return nil, false
}

func (t *ConfirmationTracker) emitStatus(status entities.TransactionStatus) {
	if t.onStatus != nil {
		t.onStatus(status)
	}
}

// complete reports the terminal status exactly once, even if both
// transports raced to produce one.
func (t *ConfirmationTracker) complete(final entities.TransactionStatus) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.mu.Unlock()

	if t.metricsService != nil {
		t.metricsService.IncTerminalStatus(string(final.State))
	}
	t.onComplete(final)
}
