package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	ledgerDomain "github.com/almacen/catalog/internal/ledger/domain"
	"github.com/almacen/catalog/internal/metrics"
	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

// fakeStore is an in-memory title stock table and ledger. fakeTxManager snapshots
// it so a failed transaction leaves no trace.
type fakeStore struct {
	mu          sync.Mutex
	titles      map[int64]stockDomain.TitleStock
	ledger      map[string]ledgerDomain.ProcessedEvent
	lockOrder   []int64
	decrements  int
	existsErr   error
	lockErr     error
	recordErr   error
	decrementFn func(id int64) error
}

func newFakeStore(titles ...stockDomain.TitleStock) *fakeStore {
	s := &fakeStore{
		titles: make(map[int64]stockDomain.TitleStock),
		ledger: make(map[string]ledgerDomain.ProcessedEvent),
	}
	for _, title := range titles {
		s.titles[title.ID] = title
	}
	return s
}

func activeTitle(id int64, stock string) stockDomain.TitleStock {
	return stockDomain.TitleStock{
		ID:             id,
		Name:           "title",
		AvailableStock: decimal.RequireFromString(stock),
		IsActive:       true,
		Version:        1,
	}
}

func (s *fakeStore) snapshot() (map[int64]stockDomain.TitleStock, map[string]ledgerDomain.ProcessedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	titles := make(map[int64]stockDomain.TitleStock, len(s.titles))
	for k, v := range s.titles {
		titles[k] = v
	}
	ledger := make(map[string]ledgerDomain.ProcessedEvent, len(s.ledger))
	for k, v := range s.ledger {
		ledger[k] = v
	}
	return titles, ledger
}

func (s *fakeStore) restore(titles map[int64]stockDomain.TitleStock, ledger map[string]ledgerDomain.ProcessedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = titles
	s.ledger = ledger
}

func (s *fakeStore) stock(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titles[id].AvailableStock
}

func (s *fakeStore) ledgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

func (s *fakeStore) Create(ctx context.Context, title *stockDomain.TitleStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.titles[title.ID]; ok {
		return stockDomain.ErrTitleAlreadyExists
	}
	s.titles[title.ID] = *title
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, ok := s.titles[id]
	if !ok {
		return nil, stockDomain.ErrTitleNotFound
	}
	return &title, nil
}

func (s *fakeStore) GetForUpdate(ctx context.Context, id int64) (*stockDomain.TitleStock, error) {
	s.mu.Lock()
	s.lockOrder = append(s.lockOrder, id)
	lockErr := s.lockErr
	s.mu.Unlock()

	if lockErr != nil {
		return nil, lockErr
	}
	return s.GetByID(ctx, id)
}

func (s *fakeStore) List(ctx context.Context, offset, limit int) ([]*stockDomain.TitleStock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make([]*stockDomain.TitleStock, 0, len(s.titles))
	for _, title := range s.titles {
		title := title
		titles = append(titles, &title)
	}
	return titles, nil
}

func (s *fakeStore) DecrementStock(ctx context.Context, id int64, quantity decimal.Decimal) error {
	if s.decrementFn != nil {
		if err := s.decrementFn(id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	title, ok := s.titles[id]
	if !ok || title.AvailableStock.LessThan(quantity) {
		return stockDomain.ErrInsufficientStock
	}
	title.AvailableStock = title.AvailableStock.Sub(quantity)
	title.Version++
	s.titles[id] = title
	s.decrements++
	return nil
}

func (s *fakeStore) Update(ctx context.Context, title *stockDomain.TitleStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.titles[title.ID]
	if !ok {
		return stockDomain.ErrTitleNotFound
	}
	updated := *title
	updated.Version = current.Version + 1
	s.titles[title.ID] = updated
	return nil
}

func (s *fakeStore) UpdateRating(ctx context.Context, title *stockDomain.TitleStock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.titles[title.ID]
	if !ok {
		return stockDomain.ErrTitleNotFound
	}
	current.Rating = title.Rating
	current.TotalRatings = title.TotalRatings
	current.UpdatedAt = title.UpdatedAt
	current.Version++
	s.titles[title.ID] = current
	return nil
}

func (s *fakeStore) title(id int64) stockDomain.TitleStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.titles[id]
}

func (s *fakeStore) Exists(ctx context.Context, eventID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ledger[eventID]
	return ok, nil
}

func (s *fakeStore) Record(ctx context.Context, event *ledgerDomain.ProcessedEvent) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledger[event.EventID]; ok {
		return ledgerDomain.ErrEventAlreadyProcessed
	}
	s.ledger[event.EventID] = *event
	return nil
}

// recordingPublisher collects published messages. Like the outbox publisher, its
// messages belong to the transaction and vanish when it rolls back.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []outboxDomain.Message
	err      error
}

func (p *recordingPublisher) PublishAfterCommit(ctx context.Context, msg outboxDomain.Message) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) published() []outboxDomain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]outboxDomain.Message(nil), p.messages...)
}

// fakeTxManager serializes transactions and restores the store and the publisher
// when the function fails.
type fakeTxManager struct {
	mu        sync.Mutex
	store     *fakeStore
	publisher *recordingPublisher
	commits   int
	rollbacks int
}

func (m *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	titles, ledger := m.store.snapshot()
	published := len(m.publisher.published())

	if err := fn(ctx); err != nil {
		m.store.restore(titles, ledger)
		m.publisher.mu.Lock()
		m.publisher.messages = m.publisher.messages[:published]
		m.publisher.mu.Unlock()
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

// MockReconciliationUseCase is a mock implementation of ReconciliationUseCase
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

// MockRatingUseCase is a mock implementation of RatingUseCase
type MockRatingUseCase struct {
	mock.Mock
}

func (m *MockRatingUseCase) Apply(
	ctx context.Context,
	event *stockDomain.RatingUpdated,
) (*stockDomain.TitleStock, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockDomain.TitleStock), args.Error(1)
}

// MockTitleUseCase is a mock implementation of TitleUseCase
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

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordRejection(ctx context.Context, reasonCode string) {
	m.Called(ctx, reasonCode)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)
