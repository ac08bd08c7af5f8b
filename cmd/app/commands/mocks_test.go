package commands

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

type MockTitleUseCase struct {
	mock.Mock
}

func (m *MockTitleUseCase) Create(
	ctx context.Context,
	id int64,
	name string,
	initialStock decimal.Decimal,
) (*stockDomain.TitleStock, error) {
	args := m.Called(ctx, id, name, initialStock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockDomain.TitleStock), args.Error(1)
}

func (m *MockTitleUseCase) Get(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockDomain.TitleStock), args.Error(1)
}

func (m *MockTitleUseCase) List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*stockDomain.TitleStock), args.Error(1)
}

func (m *MockTitleUseCase) Restock(
	ctx context.Context,
	id int64,
	quantity decimal.Decimal,
) (*stockDomain.TitleStock, error) {
	args := m.Called(ctx, id, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockDomain.TitleStock), args.Error(1)
}

func (m *MockTitleUseCase) Retire(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockDomain.TitleStock), args.Error(1)
}

type MockReconciliationUseCase struct {
	mock.Mock
}

func (m *MockReconciliationUseCase) Process(
	ctx context.Context,
	event *stockDomain.PurchaseConfirmed,
) (stockDomain.Outcome, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(stockDomain.Outcome), args.Error(1)
}

func (m *MockReconciliationUseCase) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

type MockOutboxUseCase struct {
	mock.Mock
}

func (m *MockOutboxUseCase) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockOutboxUseCase) ForwardPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockOutboxUseCase) CleanProcessed(ctx context.Context, days int, dryRun bool) (int64, error) {
	args := m.Called(ctx, days, dryRun)
	return args.Get(0).(int64), args.Error(1)
}
