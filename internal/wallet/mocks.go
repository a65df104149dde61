package wallet

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockWallet struct {
	mock.Mock
}

var _ Wallet = (*MockWallet)(nil)

func (m *MockWallet) SignTransaction(ctx context.Context, payload string, partial bool) (string, error) {
	args := m.Called(ctx, payload, partial)
	return args.String(0), args.Error(1)
}

func (m *MockWallet) SubmitTransaction(ctx context.Context, signedPayload string) (string, error) {
	args := m.Called(ctx, signedPayload)
	return args.String(0), args.Error(1)
}
