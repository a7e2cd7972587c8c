package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *TransportMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *TransportMock) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *TransportMock) Send(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *TransportMock) Inbound() <-chan *domain.Message {
	args := m.Called()
	if ch, ok := args.Get(0).(<-chan *domain.Message); ok {
		return ch
	}
	return nil
}

type HistorySourceMock struct {
	mock.Mock
}

func (m *HistorySourceMock) LoadHistory(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID)
	msgs, _ := args.Get(0).([]*domain.Message)
	return msgs, args.Error(1)
}

type RosterSourceMock struct {
	mock.Mock
}

func (m *RosterSourceMock) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	args := m.Called(ctx)
	convs, _ := args.Get(0).([]domain.Conversation)
	return convs, args.Error(1)
}
