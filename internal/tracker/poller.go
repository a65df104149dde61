// Package tracker drives post-submission confirmation tracking for a single
// transaction: streaming-first with a polling fallback, one terminal report
// per transaction, silent on cancellation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/gateway"
)

const (
	DefaultPollInterval = 6 * time.Second
	// DefaultMaxPolls bounds tracking at roughly 15 minutes at the default
	// interval.
	DefaultMaxPolls = 150
	// DefaultStallThreshold is how many consecutive confirmed-with-error
	// polls are tolerated before upstream retries are presumed exhausted.
	DefaultStallThreshold = 5
	// DefaultErrorThreshold is how many consecutive fetch failures are
	// tolerated before the tracking service is presumed unreachable.
	DefaultErrorThreshold = 10
)

const (
	// unreachableMessage deliberately avoids implying the transaction
	// failed: only tracking is known to be broken.
	unreachableMessage = "status updates are unavailable; the transaction may still complete on-chain"
	timeoutMessage     = "confirmation tracking timed out; the transaction may still complete on-chain"
)

// StatusFetcher fetches the confirmation status of a transaction hash.
// A gateway.ErrNotFound means the hash is not registered upstream yet.
type StatusFetcher func(ctx context.Context, hash string) (*entities.TransactionStatus, error)

// PollerConfig carries the polling heuristics. The stall and error
// thresholds encode assumptions about the upstream retry schedule, so they
// are configuration rather than constants.
type PollerConfig struct {
	Interval       time.Duration
	MaxPolls       int
	StallThreshold int
	ErrorThreshold int
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = DefaultMaxPolls
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = DefaultStallThreshold
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = DefaultErrorThreshold
	}
	return c
}

// StatusPoller repeatedly fetches the status of one transaction until a
// terminal state is observed or one of the escalation heuristics collapses
// the poll into a synthetic terminal status.
type StatusPoller struct {
	hash   string
	txType entities.TransactionType
	fetch  StatusFetcher
	config PollerConfig

	// OnStatus, when set, receives every successfully fetched status in
	// observation order, including the terminal one.
	OnStatus func(entities.TransactionStatus)
}

func NewStatusPoller(hash string, txType entities.TransactionType, fetch StatusFetcher, config PollerConfig) (*StatusPoller, error) {
	if hash == "" {
		return nil, errors.New("transaction hash is required")
	}
	if fetch == nil {
		return nil, errors.New("status fetcher is required")
	}
	return &StatusPoller{
		hash:   hash,
		txType: txType,
		fetch:  fetch,
		config: config.withDefaults(),
	}, nil
}

// Run polls until a terminal status is produced or ctx is cancelled. On
// cancellation it returns (nil, ctx.Err()) without any synthetic status:
// an aborted poll means "unknown", not "failed". Every expected failure
// mode (network errors, not-found, stall, exhaustion, timeout) is folded
// into the returned status, never an error.
func (p *StatusPoller) Run(ctx context.Context) (*entities.TransactionStatus, error) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	consecutiveErrors := 0
	stalledPolls := 0
	var lastGood *entities.TransactionStatus

	for attempt := 1; attempt <= p.config.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("poll wait aborted: %w", ctx.Err())
		case <-ticker.C:
		}

		status, err := p.fetch(ctx, p.hash)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("poll fetch aborted: %w", ctx.Err())
		}

		if errors.Is(err, gateway.ErrNotFound) {
			// Not registered upstream yet; a transient non-error.
			consecutiveErrors = 0
			continue
		}
		if err != nil {
			consecutiveErrors++
			log.Ctx(ctx).Warnf("polling status for %s failed (%d/%d consecutive): %v", p.hash, consecutiveErrors, p.config.ErrorThreshold, err)
			if consecutiveErrors >= p.config.ErrorThreshold {
				return p.syntheticFailure(lastGood, unreachableMessage), nil
			}
			continue
		}

		consecutiveErrors = 0
		lastGood = status
		p.emit(*status)

		if status.State.IsTerminal() {
			return status, nil
		}

		if status.State == entities.ConfirmedState && status.LastError != "" {
			stalledPolls++
			if stalledPolls >= p.config.StallThreshold {
				// Confirmed on-chain but the dependent update keeps
				// failing; upstream retries are presumed exhausted.
				return p.syntheticFailure(lastGood, status.LastError), nil
			}
		} else {
			stalledPolls = 0
		}
	}

	return p.syntheticFailure(lastGood, timeoutMessage), nil
}

func (p *StatusPoller) emit(status entities.TransactionStatus) {
	if p.OnStatus != nil {
		p.OnStatus(status)
	}
}

// syntheticFailure builds a terminal "failed" status from the last good
// response, if any, so the caller still sees the upstream retry count.
func (p *StatusPoller) syntheticFailure(lastGood *entities.TransactionStatus, message string) *entities.TransactionStatus {
	status := entities.TransactionStatus{
		TransactionHash: p.hash,
		TransactionType: p.txType,
	}
	if lastGood != nil {
		status = *lastGood
	}
	status.State = entities.FailedState
	status.LastError = message
	return &status
}
