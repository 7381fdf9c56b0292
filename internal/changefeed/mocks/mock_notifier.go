package mocks

import (
	"context"

	"pos-backend/internal/changefeed"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, ch changefeed.Change) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

type MockMessageWriter struct {
	mock.Mock
}

func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockMessageWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}
