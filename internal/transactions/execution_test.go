package transactions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/certiform/credential-gateway/internal/entities"
	"github.com/certiform/credential-gateway/internal/wallet"
)

func mintParams() entities.BuildParams {
	return entities.BuildParams{CredentialID: "cred-9", RecipientAddress: "GABC"}
}

func newTestExecutor(t *testing.T) (*Executor, *MockTransactionBuilder, *wallet.MockWallet) {
	t.Helper()

	builder := &MockTransactionBuilder{}
	walletMock := &wallet.MockWallet{}
	executor, err := NewExecutor(ExecutorOptions{Builder: builder, Wallet: walletMock})
	require.NoError(t, err)
	return executor, builder, walletMock
}

func TestNewExecutorValidation(t *testing.T) {
	_, err := NewExecutor(ExecutorOptions{Wallet: &wallet.MockWallet{}})
	require.ErrorContains(t, err, "transaction builder is required")

	_, err = NewExecutor(ExecutorOptions{Builder: &MockTransactionBuilder{}})
	require.ErrorContains(t, err, "wallet is required")
}

func TestExecuteSuccess(t *testing.T) {
	executor, builder, walletMock := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeMintCredential, mintParams()).
		Return(&entities.BuildTransactionResponse{TransactionPayload: "dW5zaWduZWQ="}, nil).
		Once()
	walletMock.
		On("SignTransaction", ctx, "dW5zaWduZWQ=", false).
		Return("c2lnbmVk", nil).
		Once()
	walletMock.
		On("SubmitTransaction", ctx, "c2lnbmVk").
		Return("abc123", nil).
		Once()

	recorded := make(chan entities.TransactionHandle, 1)
	builder.
		On("RecordTransaction", mock.Anything, mock.AnythingOfType("entities.TransactionHandle")).
		Run(func(args mock.Arguments) { recorded <- args.Get(1).(entities.TransactionHandle) }).
		Return(nil).
		Once()

	handle, err := executor.Execute(ctx, entities.TransactionTypeMintCredential, mintParams())
	require.NoError(t, err)
	assert.Equal(t, "abc123", handle.Hash)
	assert.Equal(t, entities.TransactionTypeMintCredential, handle.Type)
	assert.False(t, handle.CreatedAt.IsZero())

	assert.Equal(t, ExecutionStateSuccess, executor.State())
	require.NotNil(t, executor.Result())
	assert.Equal(t, "abc123", executor.Result().Hash)
	assert.NoError(t, executor.Err())

	select {
	case got := <-recorded:
		assert.Equal(t, "abc123", got.Hash)
	case <-time.After(time.Second):
		t.Fatal("submission was never recorded")
	}

	builder.AssertExpectations(t)
	walletMock.AssertExpectations(t)
}

func TestExecuteSponsoredUsesPartialSignature(t *testing.T) {
	executor, builder, walletMock := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeSponsoredMintCredential, mintParams()).
		Return(&entities.BuildTransactionResponse{TransactionPayload: "cHJlc2lnbmVk", PreSigned: true}, nil).
		Once()
	walletMock.
		On("SignTransaction", ctx, "cHJlc2lnbmVk", true).
		Return("c2lnbmVk", nil).
		Once()
	walletMock.
		On("SubmitTransaction", ctx, "c2lnbmVk").
		Return("abc123", nil).
		Once()
	builder.
		On("RecordTransaction", mock.Anything, mock.AnythingOfType("entities.TransactionHandle")).
		Return(nil).
		Maybe()

	_, err := executor.Execute(ctx, entities.TransactionTypeSponsoredMintCredential, mintParams())
	require.NoError(t, err)

	walletMock.AssertExpectations(t)
}

func TestExecuteInvalidParamsLeavesExecutorIdle(t *testing.T) {
	executor, builder, _ := newTestExecutor(t)

	_, err := executor.Execute(context.Background(), entities.TransactionTypeMintCredential, entities.BuildParams{})
	require.ErrorContains(t, err, "credential_id is required")
	assert.Equal(t, ExecutionStateIdle, executor.State())

	builder.AssertNotCalled(t, "BuildTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteBuildFailure(t *testing.T) {
	executor, builder, _ := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeMintCredential, mintParams()).
		Return(nil, errors.New("gateway down")).
		Once()

	_, err := executor.Execute(ctx, entities.TransactionTypeMintCredential, mintParams())
	require.ErrorContains(t, err, "building mint_credential transaction")
	assert.Equal(t, ExecutionStateError, executor.State())
	assert.ErrorContains(t, executor.Err(), "gateway down")
	assert.Nil(t, executor.Result())
}

func TestExecuteSignFailure(t *testing.T) {
	executor, builder, walletMock := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeMintCredential, mintParams()).
		Return(&entities.BuildTransactionResponse{TransactionPayload: "dW5zaWduZWQ="}, nil).
		Once()
	walletMock.
		On("SignTransaction", ctx, "dW5zaWduZWQ=", false).
		Return("", errors.New("user declined")).
		Once()

	_, err := executor.Execute(ctx, entities.TransactionTypeMintCredential, mintParams())
	require.ErrorContains(t, err, "signing mint_credential transaction")
	assert.Equal(t, ExecutionStateError, executor.State())

	builder.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
}

func TestExecuteSubmitFailure(t *testing.T) {
	executor, builder, walletMock := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeMintCredential, mintParams()).
		Return(&entities.BuildTransactionResponse{TransactionPayload: "dW5zaWduZWQ="}, nil).
		Once()
	walletMock.
		On("SignTransaction", ctx, "dW5zaWduZWQ=", false).
		Return("c2lnbmVk", nil).
		Once()
	walletMock.
		On("SubmitTransaction", ctx, "c2lnbmVk").
		Return("", errors.New("network congested")).
		Once()

	_, err := executor.Execute(ctx, entities.TransactionTypeMintCredential, mintParams())
	require.ErrorContains(t, err, "submitting mint_credential transaction")
	assert.Equal(t, ExecutionStateError, executor.State())
}

func TestExecuteRejectsConcurrentRuns(t *testing.T) {
	executor, builder, walletMock := newTestExecutor(t)

	release := make(chan struct{})
	started := make(chan struct{})
	builder.
		On("BuildTransaction", mock.Anything, entities.TransactionTypeMintCredential, mintParams()).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&entities.BuildTransactionResponse{TransactionPayload: "dW5zaWduZWQ="}, nil).
		Once()
	walletMock.On("SignTransaction", mock.Anything, "dW5zaWduZWQ=", false).Return("c2lnbmVk", nil).Once()
	walletMock.On("SubmitTransaction", mock.Anything, "c2lnbmVk").Return("abc123", nil).Once()
	builder.On("RecordTransaction", mock.Anything, mock.Anything).Return(nil).Maybe()

	done := make(chan struct{})
	go func() {
		_, err := executor.Execute(context.Background(), entities.TransactionTypeMintCredential, mintParams())
		assert.NoError(t, err)
		close(done)
	}()

	<-started
	_, err := executor.Execute(context.Background(), entities.TransactionTypeMintCredential, mintParams())
	require.ErrorContains(t, err, "already in progress")

	close(release)
	<-done
}

func TestResetClearsOutcome(t *testing.T) {
	executor, builder, _ := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeMintCredential, mintParams()).
		Return(nil, errors.New("gateway down")).
		Once()

	_, err := executor.Execute(ctx, entities.TransactionTypeMintCredential, mintParams())
	require.Error(t, err)
	require.Equal(t, ExecutionStateError, executor.State())

	require.NoError(t, executor.Reset())
	assert.Equal(t, ExecutionStateIdle, executor.State())
	assert.Nil(t, executor.Result())
	assert.NoError(t, executor.Err())
}

func TestRecordFailureDoesNotAffectOutcome(t *testing.T) {
	executor, builder, walletMock := newTestExecutor(t)
	ctx := context.Background()

	builder.
		On("BuildTransaction", ctx, entities.TransactionTypeMintCredential, mintParams()).
		Return(&entities.BuildTransactionResponse{TransactionPayload: "dW5zaWduZWQ="}, nil).
		Once()
	walletMock.On("SignTransaction", ctx, "dW5zaWduZWQ=", false).Return("c2lnbmVk", nil).Once()
	walletMock.On("SubmitTransaction", ctx, "c2lnbmVk").Return("abc123", nil).Once()

	var recordCalls atomic.Int64
	builder.
		On("RecordTransaction", mock.Anything, mock.AnythingOfType("entities.TransactionHandle")).
		Run(func(mock.Arguments) { recordCalls.Add(1) }).
		Return(errors.New("tracking endpoint down"))

	handle, err := executor.Execute(ctx, entities.TransactionTypeMintCredential, mintParams())
	require.NoError(t, err, "recording failures must never fail the execution")
	assert.Equal(t, "abc123", handle.Hash)
	assert.Equal(t, ExecutionStateSuccess, executor.State())

	require.Eventually(t, func() bool { return recordCalls.Load() > 0 }, time.Second, 5*time.Millisecond)
}
