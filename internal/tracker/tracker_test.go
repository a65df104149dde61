package tracker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certiform/credential-gateway/internal/entities"
)

// scriptedStream replays a fixed sequence of read chunks, then EOF. It lets
// tests control exactly where event blocks are split across reads.
type scriptedStream struct {
	chunks []string
	next   int
	closed bool
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if s.next >= len(s.chunks) {
		return 0, io.EOF
	}
	n := copy(p, s.chunks[s.next])
	s.next++
	return n, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func streamOf(chunks ...string) StreamOpener {
	return func(ctx context.Context, hash string) (io.ReadCloser, error) {
		return &scriptedStream{chunks: chunks}, nil
	}
}

func failingFetch(t *testing.T) StatusFetcher {
	return func(ctx context.Context, hash string) (*entities.TransactionStatus, error) {
		t.Error("status fetcher must not be called while the stream delivers")
		return nil, errors.New("unexpected fetch")
	}
}

func TestNewConfirmationTrackerValidation(t *testing.T) {
	fetch := func(ctx context.Context, hash string) (*entities.TransactionStatus, error) { return nil, nil }

	_, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		FetchStatus:     fetch,
	})
	require.ErrorContains(t, err, "onComplete callback is required")

	_, err = NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		OnComplete:      func(entities.TransactionStatus) {},
	})
	require.ErrorContains(t, err, "status fetcher is required")
}

func TestTrackStreamDeliversTerminalStatus(t *testing.T) {
	var statuses []entities.TransactionStatus
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		OpenStream: streamOf(
			"event: status\ndata: {\"state\":\"pending\"}\n\n",
			"event: status\ndata: {\"state\":\"confirmed\"}\n\nevent: status\ndata: {\"state\":\"updated\"}\n\n",
		),
		FetchStatus: failingFetch(t),
		Poller:      testPollerConfig(),
		OnStatus:    func(s entities.TransactionStatus) { statuses = append(statuses, s) },
		OnComplete:  func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	require.Len(t, statuses, 3)
	assert.Equal(t, entities.PendingState, statuses[0].State)
	assert.Equal(t, entities.ConfirmedState, statuses[1].State)
	assert.Equal(t, entities.UpdatedState, statuses[2].State)
	assert.Equal(t, "abc123", statuses[0].TransactionHash, "hash is backfilled on events that omit it")
	assert.Equal(t, entities.TransactionTypeMintCredential, statuses[0].TransactionType)

	require.Len(t, completions, 1)
	assert.Equal(t, entities.UpdatedState, completions[0].State)
}

func TestTrackReassemblesEventsSplitAcrossReads(t *testing.T) {
	var statuses []entities.TransactionStatus
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		OpenStream: streamOf(
			"event: status\nda",
			"ta: {\"state\":\"pend",
			"ing\"}\n\nevent: status\n",
			"data: {\"state\":\"failed\",\"last_error\":\"boom\"}\n\n",
		),
		FetchStatus: failingFetch(t),
		Poller:      testPollerConfig(),
		OnStatus:    func(s entities.TransactionStatus) { statuses = append(statuses, s) },
		OnComplete:  func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	require.Len(t, statuses, 2)
	assert.Equal(t, entities.PendingState, statuses[0].State)
	assert.Equal(t, entities.FailedState, statuses[1].State)
	require.Len(t, completions, 1)
	assert.Equal(t, "boom", completions[0].LastError)
}

func TestTrackFlushesFinalBlockWithoutTrailingSeparator(t *testing.T) {
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		OpenStream:      streamOf("event: status\ndata: {\"state\":\"updated\"}\n"),
		FetchStatus:     failingFetch(t),
		Poller:          testPollerConfig(),
		OnComplete:      func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	require.Len(t, completions, 1)
	assert.Equal(t, entities.UpdatedState, completions[0].State)
}

func TestTrackFallsBackToPollingWhenStreamFailsToOpen(t *testing.T) {
	var opens, fetches atomic.Int64
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		OpenStream: func(ctx context.Context, hash string) (io.ReadCloser, error) {
			opens.Add(1)
			return nil, errors.New("stream unavailable")
		},
		FetchStatus: func(ctx context.Context, hash string) (*entities.TransactionStatus, error) {
			fetches.Add(1)
			return &entities.TransactionStatus{TransactionHash: hash, State: entities.FailedState, LastError: "tx rejected"}, nil
		},
		Poller:     testPollerConfig(),
		OnComplete: func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	assert.Equal(t, int64(1), opens.Load(), "a failed stream is never retried")
	assert.Equal(t, int64(1), fetches.Load())
	require.Len(t, completions, 1)
	assert.Equal(t, entities.FailedState, completions[0].State)
	assert.Equal(t, "tx rejected", completions[0].LastError)
}

func TestTrackFallsBackWhenStreamEndsBeforeTerminal(t *testing.T) {
	var statuses []entities.TransactionStatus
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		OpenStream:      streamOf("event: status\ndata: {\"state\":\"pending\"}\n\n"),
		FetchStatus: func(ctx context.Context, hash string) (*entities.TransactionStatus, error) {
			return &entities.TransactionStatus{TransactionHash: hash, State: entities.UpdatedState}, nil
		},
		Poller:     testPollerConfig(),
		OnStatus:   func(s entities.TransactionStatus) { statuses = append(statuses, s) },
		OnComplete: func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	require.Len(t, statuses, 2)
	assert.Equal(t, entities.PendingState, statuses[0].State)
	assert.Equal(t, entities.UpdatedState, statuses[1].State)
	require.Len(t, completions, 1)
	assert.Equal(t, entities.UpdatedState, completions[0].State)
}

func TestTrackSkipsUndecodableAndEmptyEvents(t *testing.T) {
	var statuses []entities.TransactionStatus
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		OpenStream: streamOf(
			"event: status\ndata: not-json\n\n",
			"event: heartbeat\ndata: {}\n\n",
			"event: status\ndata: {\"state\":\"updated\"}\n\n",
		),
		FetchStatus: failingFetch(t),
		Poller:      testPollerConfig(),
		OnStatus:    func(s entities.TransactionStatus) { statuses = append(statuses, s) },
		OnComplete:  func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	require.Len(t, statuses, 1)
	assert.Equal(t, entities.UpdatedState, statuses[0].State)
	require.Len(t, completions, 1)
}

func TestTrackCancellationIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var completed atomic.Bool
	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		FetchStatus: func(ctx context.Context, hash string) (*entities.TransactionStatus, error) {
			return &entities.TransactionStatus{TransactionHash: hash, State: entities.PendingState}, nil
		},
		Poller: PollerConfig{
			Interval:       50 * time.Millisecond,
			MaxPolls:       DefaultMaxPolls,
			StallThreshold: DefaultStallThreshold,
			ErrorThreshold: DefaultErrorThreshold,
		},
		OnComplete: func(entities.TransactionStatus) { completed.Store(true) },
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tracker.Track(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track did not return after cancellation")
	}
	assert.False(t, completed.Load(), "cancellation must not report a terminal outcome")
}

func TestTrackWithoutStreamOpenerPollsDirectly(t *testing.T) {
	var completions []entities.TransactionStatus

	tracker, err := NewConfirmationTracker(ConfirmationTrackerOptions{
		TransactionHash: "abc123",
		TransactionType: entities.TransactionTypeMintCredential,
		FetchStatus: func(ctx context.Context, hash string) (*entities.TransactionStatus, error) {
			return &entities.TransactionStatus{TransactionHash: hash, State: entities.ExpiredState}, nil
		},
		Poller:     testPollerConfig(),
		OnComplete: func(s entities.TransactionStatus) { completions = append(completions, s) },
	})
	require.NoError(t, err)

	tracker.Track(context.Background())

	require.Len(t, completions, 1)
	assert.Equal(t, entities.ExpiredState, completions[0].State)
}
