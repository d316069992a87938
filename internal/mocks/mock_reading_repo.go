package mocks

import (
	"context"

	"github.com/arcanalabs/arcana/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockReadingRepo struct {
	mock.Mock
	domain.ReadingRepository
}

func (m *MockReadingRepo) Create(ctx context.Context, reading *domain.Reading) error {
	args := m.Called(ctx, reading)
	return args.Error(0)
}

func (m *MockReadingRepo) GetByIdAndUserId(ctx context.Context, id, userID int) (*domain.Reading, error) {
	args := m.Called(ctx, id, userID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reading), args.Error(1)
}

func (m *MockReadingRepo) CreateFollowUp(ctx context.Context, question *domain.FollowUpQuestion) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}
