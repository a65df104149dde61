package watcher

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

var _ Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifySuccess(ctx context.Context, message string) {
	m.Called(ctx, message)
}

func (m *MockNotifier) NotifyFailure(ctx context.Context, message string) {
	m.Called(ctx, message)
}
