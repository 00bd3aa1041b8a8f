package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"cotpulse/pkg/contracts/domain"
)

// MockPublisher is a mock for the websocket hub
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) BroadcastDataUpdate(ctx context.Context, dataset domain.DatasetKind, records int, source string) {
	m.Called(dataset, records, source)
}

// MockAnalyst is a mock narrative analyst
type MockAnalyst struct {
	mock.Mock
}

func (m *MockAnalyst) Analyze(ctx context.Context, records []domain.SnapshotRecord, lang string) (*domain.Analysis, error) {
	args := m.Called(records, lang)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Analysis), args.Error(1)
}

func (m *MockAnalyst) Available() bool {
	return m.Called().Bool(0)
}
