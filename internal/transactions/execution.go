// Package transactions drives the build-sign-submit execution flow for one
// transaction at a time, exposing its progress as an explicit state machine.
package transactions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/validators"
	"github.com/certiform/credential-gateway/internal/wallet"
)

// ExecutionState is the internal progress of one execution. It is disjoint
// from the external confirmation lifecycle, which only starts after a
// successful submission.
type ExecutionState string

const (
	ExecutionStateIdle       ExecutionState = "idle"
	ExecutionStateFetching   ExecutionState = "fetching"
	ExecutionStateSigning    ExecutionState = "signing"
	ExecutionStateSubmitting ExecutionState = "submitting"
	ExecutionStateSuccess    ExecutionState = "success"
	ExecutionStateError      ExecutionState = "error"
)

const (
	recordAttempts   = 3
	recordRetryDelay = 2 * time.Second
	recordTimeout    = 30 * time.Second
)

// TransactionBuilder is the slice of the gateway client the executor needs.
type TransactionBuilder interface {
	BuildTransaction(ctx context.Context, txType entities.TransactionType, params entities.BuildParams) (*entities.BuildTransactionResponse, error)
	RecordTransaction(ctx context.Context, handle entities.TransactionHandle) error
}

type ExecutorOptions struct {
	Builder TransactionBuilder
	Wallet  wallet.Wallet
	// Validator may be nil; a default one is constructed.
	Validator *validators.BuildParamsValidator
}

// Executor runs one build-sign-submit flow at a time. A failed execution
// stays in the error state, with the cause inspectable, until Reset.
type Executor struct {
	builder   TransactionBuilder
	wallet    wallet.Wallet
	validator *validators.BuildParamsValidator

	mu      sync.Mutex
	state   ExecutionState
	result  *entities.TransactionHandle
	lastErr error
}

func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Builder == nil {
		return nil, fmt.Errorf("transaction builder is required")
	}
	if opts.Wallet == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	v := opts.Validator
	if v == nil {
		v = validators.NewBuildParamsValidator()
	}
	return &Executor{
		builder:   opts.Builder,
		wallet:    opts.Wallet,
		validator: v,
		state:     ExecutionStateIdle,
	}, nil
}

// State returns the current execution state.
func (e *Executor) State() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result returns the handle of the last successful execution, if any.
func (e *Executor) Result() *entities.TransactionHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Err returns the cause of the last failed execution, if any.
func (e *Executor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Reset returns the executor to idle from any non-running state, clearing
// the previous outcome.
func (e *Executor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case ExecutionStateFetching, ExecutionStateSigning, ExecutionStateSubmitting:
		return fmt.Errorf("cannot reset while an execution is in progress")
	}
	e.state = ExecutionStateIdle
	e.result = nil
	e.lastErr = nil
	return nil
}

// Execute runs the full build-sign-submit flow. On success the returned
// handle carries the assigned transaction hash and the submission is
// recorded upstream on a best-effort basis.
func (e *Executor) Execute(ctx context.Context, txType entities.TransactionType, params entities.BuildParams) (*entities.TransactionHandle, error) {
	if err := e.validator.Validate(txType, params); err != nil {
		return nil, err
	}

	if err := e.begin(); err != nil {
		return nil, err
	}

	handle, err := e.run(ctx, txType, params)
	if err != nil {
		e.fail(err)
		return nil, err
	}

	e.succeed(handle)
	go e.recordSubmission(*handle)
	return handle, nil
}

func (e *Executor) run(ctx context.Context, txType entities.TransactionType, params entities.BuildParams) (*entities.TransactionHandle, error) {
	buildResp, err := e.builder.BuildTransaction(ctx, txType, params)
	if err != nil {
		return nil, fmt.Errorf("building %s transaction: %w", txType, err)
	}

	e.setState(ExecutionStateSigning)
	partial := buildResp.PreSigned || txType.IsSponsored()
	signed, err := e.wallet.SignTransaction(ctx, buildResp.TransactionPayload, partial)
	if err != nil {
		return nil, fmt.Errorf("signing %s transaction: %w", txType, err)
	}

	e.setState(ExecutionStateSubmitting)
	hash, err := e.wallet.SubmitTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("submitting %s transaction: %w", txType, err)
	}

	return &entities.TransactionHandle{
		Hash:      hash,
		Type:      txType,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// recordSubmission registers the submitted transaction with the gateway's
// tracking endpoint. It is fire-and-forget: confirmation tracking works off
// the hash either way, so failures are only logged.
func (e *Executor) recordSubmission(handle entities.TransactionHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	err := retry.Do(
		func() error { return e.builder.RecordTransaction(ctx, handle) },
		retry.Context(ctx),
		retry.Attempts(recordAttempts),
		retry.Delay(recordRetryDelay),
	)
	if err != nil {
		log.Warnf("recording submitted transaction %s failed: %v", handle.Hash, err)
	}
}

func (e *Executor) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case ExecutionStateFetching, ExecutionStateSigning, ExecutionStateSubmitting:
		return fmt.Errorf("an execution is already in progress")
	}
	e.state = ExecutionStateFetching
	e.result = nil
	e.lastErr = nil
	return nil
}

func (e *Executor) setState(state ExecutionState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

func (e *Executor) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = ExecutionStateError
	e.lastErr = err
}

func (e *Executor) succeed(handle *entities.TransactionHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = ExecutionStateSuccess
	e.result = handle
}
