package transactions

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/certiform/credential-gateway/internal/entities"
)

type MockTransactionBuilder struct {
	mock.Mock
}

var _ TransactionBuilder = (*MockTransactionBuilder)(nil)

func (m *MockTransactionBuilder) BuildTransaction(ctx context.Context, txType entities.TransactionType, params entities.BuildParams) (*entities.BuildTransactionResponse, error) {
	args := m.Called(ctx, txType, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BuildTransactionResponse), args.Error(1)
}

func (m *MockTransactionBuilder) RecordTransaction(ctx context.Context, handle entities.TransactionHandle) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}
