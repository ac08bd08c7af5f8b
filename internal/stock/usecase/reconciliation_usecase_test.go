package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/almacen/catalog/internal/database"
	apperrors "github.com/almacen/catalog/internal/errors"
	ledgerDomain "github.com/almacen/catalog/internal/ledger/domain"
	outboxDomain "github.com/almacen/catalog/internal/outbox/domain"
	outboxUseCase "github.com/almacen/catalog/internal/outbox/usecase"
	stockDomain "github.com/almacen/catalog/internal/stock/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func purchase(eventID string, items ...stockDomain.PurchaseItem) *stockDomain.PurchaseConfirmed {
	return &stockDomain.PurchaseConfirmed{
		EventID:    eventID,
		PurchaseID: 42,
		CustomerID: "customer-7",
		OccurredAt: time.Now().UTC(),
		Items:      items,
	}
}

func item(titleID int64, quantity int) stockDomain.PurchaseItem {
	return stockDomain.PurchaseItem{TitleID: titleID, Quantity: quantity}
}

type reconciliationFixture struct {
	store     *fakeStore
	publisher *recordingPublisher
	txManager *fakeTxManager
	useCase   ReconciliationUseCase
}

func newReconciliationFixture(titles ...stockDomain.TitleStock) *reconciliationFixture {
	store := newFakeStore(titles...)
	publisher := &recordingPublisher{}
	txManager := &fakeTxManager{store: store, publisher: publisher}
	return &reconciliationFixture{
		store:     store,
		publisher: publisher,
		txManager: txManager,
		useCase:   NewReconciliationUseCase(txManager, store, store, publisher, discardLogger()),
	}
}

func decodeRejection(t *testing.T, msg outboxDomain.Message) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	return body
}

func TestReconciliationUseCase_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AcceptedThenDuplicate", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "100.00"))

		outcome, err := f.useCase.Process(ctx, purchase("e1", item(1, 5)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeAccepted, outcome.Kind)
		assert.Nil(t, outcome.Rejection)
		assert.Equal(t, "95", f.store.stock(1).String())
		assert.Equal(t, 1, f.store.ledgerSize())
		assert.Empty(t, f.publisher.published())

		outcome, err = f.useCase.Process(ctx, purchase("e1", item(1, 5)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeDuplicate, outcome.Kind)
		assert.Equal(t, "95", f.store.stock(1).String())
		assert.Equal(t, 1, f.store.ledgerSize())
		assert.Equal(t, 1, f.store.decrements)
	})

	t.Run("Success_LedgerRowContents", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))

		_, err := f.useCase.Process(ctx, purchase("e-ledger", item(1, 1)))
		require.NoError(t, err)

		row := f.store.ledger["e-ledger"]
		assert.Equal(t, "sales", row.SourceSystem)
		assert.Equal(t, int64(42), row.PurchaseID)
		assert.False(t, row.ProcessedAt.IsZero())
	})

	t.Run("Rejected_InsufficientStock", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "100.00"))

		outcome, err := f.useCase.Process(ctx, purchase("e2", item(1, 1000)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeRejected, outcome.Kind)
		require.NotNil(t, outcome.Rejection)
		assert.Equal(t, stockDomain.ReasonInsufficientStock, outcome.Rejection.ReasonCode)
		require.Len(t, outcome.Rejection.Details, 1)
		assert.Equal(t, 1000, outcome.Rejection.Details[0].QuantityRequested)
		assert.Equal(t, "100", outcome.Rejection.Details[0].QuantityAvailable.String())

		assert.Equal(t, "100", f.store.stock(1).String())
		assert.Equal(t, 1, f.store.ledgerSize())
		assert.Zero(t, f.store.decrements)

		messages := f.publisher.published()
		require.Len(t, messages, 1)
		assert.Equal(t, stockDomain.RoutingKeyStockRejected, messages[0].RoutingKey)
		assert.Equal(t, outcome.Rejection.EventID, messages[0].ID.String())
		body := decodeRejection(t, messages[0])
		assert.Equal(t, "INSUFFICIENT_STOCK", body["reasonCode"])
		assert.Equal(t, float64(42), body["purchaseId"])
	})

	t.Run("Rejected_TitleNotFoundIsAllOrNothing", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "100.00"))

		outcome, err := f.useCase.Process(ctx, purchase("e3", item(1, 5), item(999, 1)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeRejected, outcome.Kind)
		assert.Equal(t, stockDomain.ReasonTitleNotFound, outcome.Rejection.ReasonCode)
		require.Len(t, outcome.Rejection.Details, 1)
		assert.Equal(t, int64(999), outcome.Rejection.Details[0].TitleID)
		assert.Nil(t, outcome.Rejection.Details[0].QuantityAvailable)

		assert.Equal(t, "100", f.store.stock(1).String())
		assert.Zero(t, f.store.decrements)
		assert.Equal(t, 1, f.store.ledgerSize())
	})

	t.Run("Rejected_InactiveTitleCountsAsNotFound", func(t *testing.T) {
		retired := activeTitle(2, "50")
		retired.IsActive = false
		f := newReconciliationFixture(retired)

		outcome, err := f.useCase.Process(ctx, purchase("e4", item(2, 1)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.ReasonTitleNotFound, outcome.Rejection.ReasonCode)
		assert.Nil(t, outcome.Rejection.Details[0].QuantityAvailable)
		assert.Equal(t, "50", f.store.stock(2).String())
	})

	t.Run("Rejected_NotFoundWinsAndDetailsListEveryFailure", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "3"), activeTitle(2, "10"))

		outcome, err := f.useCase.Process(ctx, purchase("e5", item(1, 4), item(2, 1), item(999, 2)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.ReasonTitleNotFound, outcome.Rejection.ReasonCode)
		require.Len(t, outcome.Rejection.Details, 2)
		assert.Equal(t, int64(1), outcome.Rejection.Details[0].TitleID)
		assert.Equal(t, "3", outcome.Rejection.Details[0].QuantityAvailable.String())
		assert.Equal(t, int64(999), outcome.Rejection.Details[1].TitleID)
		assert.Nil(t, outcome.Rejection.Details[1].QuantityAvailable)
	})

	t.Run("Success_AggregatesRepeatedTitles", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))

		outcome, err := f.useCase.Process(ctx, purchase("e6", item(1, 6), item(1, 4)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeAccepted, outcome.Kind)
		assert.Equal(t, "0", f.store.stock(1).String())
	})

	t.Run("Rejected_AggregatedQuantityExceedsStock", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))

		outcome, err := f.useCase.Process(ctx, purchase("e7", item(1, 6), item(1, 5)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.ReasonInsufficientStock, outcome.Rejection.ReasonCode)
		require.Len(t, outcome.Rejection.Details, 2)
		assert.Equal(t, 6, outcome.Rejection.Details[0].QuantityRequested)
		assert.Equal(t, 5, outcome.Rejection.Details[1].QuantityRequested)
		for _, detail := range outcome.Rejection.Details {
			assert.Equal(t, int64(1), detail.TitleID)
			assert.Equal(t, "10", detail.QuantityAvailable.String())
		}
		assert.Equal(t, "10", f.store.stock(1).String())
	})

	t.Run("Rejected_RepeatedLinesBeyondIntRange", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))

		outcome, err := f.useCase.Process(ctx, purchase("e-huge", item(1, math.MaxInt), item(1, 2)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeRejected, outcome.Kind)
		assert.Equal(t, stockDomain.ReasonInsufficientStock, outcome.Rejection.ReasonCode)
		require.Len(t, outcome.Rejection.Details, 2)
		assert.Equal(t, math.MaxInt, outcome.Rejection.Details[0].QuantityRequested)
		assert.Equal(t, 2, outcome.Rejection.Details[1].QuantityRequested)

		assert.Equal(t, "10", f.store.stock(1).String())
		assert.Zero(t, f.store.decrements)
		assert.Equal(t, 1, f.store.ledgerSize())
		assert.Len(t, f.publisher.published(), 1)
	})

	t.Run("Success_LocksInAscendingOrder", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"), activeTitle(2, "10"), activeTitle(3, "10"))

		_, err := f.useCase.Process(ctx, purchase("e8", item(3, 1), item(1, 1), item(2, 1)))
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, f.store.lockOrder)
	})

	t.Run("Error_InvalidEvent", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))

		_, err := f.useCase.Process(ctx, purchase("e9"))
		assert.ErrorIs(t, err, stockDomain.ErrInvalidPurchase)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Zero(t, f.store.ledgerSize())
		assert.Zero(t, f.txManager.commits+f.txManager.rollbacks)
	})

	t.Run("Error_TransientLockTimeout", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))
		f.store.lockErr = apperrors.Wrap(apperrors.ErrUnavailable, "lock wait timeout")

		_, err := f.useCase.Process(ctx, purchase("e10", item(1, 1)))
		assert.True(t, apperrors.IsTransient(err))
		assert.Zero(t, f.store.ledgerSize())
		assert.Equal(t, "10", f.store.stock(1).String())
	})

	t.Run("Error_DecrementFailureRollsBackEarlierItems", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"), activeTitle(2, "10"))
		f.store.decrementFn = func(id int64) error {
			if id == 2 {
				return apperrors.Wrap(apperrors.ErrUnavailable, "connection lost")
			}
			return nil
		}

		_, err := f.useCase.Process(ctx, purchase("e11", item(1, 1), item(2, 1)))
		assert.True(t, apperrors.IsTransient(err))
		assert.Equal(t, "10", f.store.stock(1).String())
		assert.Equal(t, "10", f.store.stock(2).String())
		assert.Zero(t, f.store.ledgerSize())
	})

	t.Run("Error_ExistsFailure", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))
		f.store.existsErr = errors.New("boom")

		_, err := f.useCase.Process(ctx, purchase("e12", item(1, 1)))
		assert.EqualError(t, err, "boom")
		assert.Empty(t, f.store.lockOrder)
	})

	t.Run("Error_PublishFailureAbortsRejection", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "1"))
		f.publisher.err = errors.New("outbox insert failed")

		_, err := f.useCase.Process(ctx, purchase("e13", item(1, 2)))
		assert.EqualError(t, err, "outbox insert failed")
		assert.Zero(t, f.store.ledgerSize())
	})

	t.Run("Duplicate_ConcurrentLedgerInsertLoses", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "10"))
		f.store.recordErr = ledgerDomain.ErrEventAlreadyProcessed

		outcome, err := f.useCase.Process(ctx, purchase("e14", item(1, 3)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeDuplicate, outcome.Kind)
		assert.Equal(t, "10", f.store.stock(1).String())
		assert.Equal(t, 1, f.txManager.rollbacks)
	})

	t.Run("Duplicate_ConcurrentRejectionPublishesNothing", func(t *testing.T) {
		f := newReconciliationFixture(activeTitle(1, "1"))
		f.store.recordErr = ledgerDomain.ErrEventAlreadyProcessed

		outcome, err := f.useCase.Process(ctx, purchase("e15", item(1, 3)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeDuplicate, outcome.Kind)
		assert.Empty(t, f.publisher.published())
	})
}

func TestReconciliationUseCase_Process_ConcurrentSameEvent(t *testing.T) {
	f := newReconciliationFixture(activeTitle(1, "100"))
	event := purchase("e-race", item(1, 5))

	var wg sync.WaitGroup
	outcomes := make([]stockDomain.Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := f.useCase.Process(context.Background(), event)
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, outcome := range outcomes {
		if outcome.Kind == stockDomain.OutcomeAccepted {
			accepted++
		} else {
			assert.Equal(t, stockDomain.OutcomeDuplicate, outcome.Kind)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, "95", f.store.stock(1).String())
	assert.Equal(t, 1, f.store.ledgerSize())
}

// The remaining tests run the engine on the real transaction manager so the
// after-commit hook semantics of the publisher are exercised end to end.

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, msg outboxDomain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newAfterCommitUseCase(
	t *testing.T,
	store *fakeStore,
) (ReconciliationUseCase, sqlmock.Sqlmock, *mockDispatcher) {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dispatcher := &mockDispatcher{}
	publisher := outboxUseCase.NewAfterCommitPublisher(dispatcher, discardLogger())
	useCase := NewReconciliationUseCase(database.NewTxManager(db), store, store, publisher, discardLogger())
	return useCase, sqlMock, dispatcher
}

func TestReconciliationUseCase_AfterCommitPublishing(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectionDispatchedAfterCommit", func(t *testing.T) {
		store := newFakeStore(activeTitle(1, "100.00"))
		useCase, sqlMock, dispatcher := newAfterCommitUseCase(t, store)

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(msg outboxDomain.Message) bool {
			return msg.RoutingKey == stockDomain.RoutingKeyStockRejected
		})).Return(nil).Once()

		outcome, err := useCase.Process(ctx, purchase("e2", item(1, 1000)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeRejected, outcome.Kind)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		dispatcher.AssertExpectations(t)
	})

	t.Run("AbortAfterRejectionDispatchesNothing", func(t *testing.T) {
		store := newFakeStore(activeTitle(1, "100.00"))
		store.recordErr = apperrors.Wrap(apperrors.ErrUnavailable, "lock wait timeout")
		useCase, sqlMock, dispatcher := newAfterCommitUseCase(t, store)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()

		_, err := useCase.Process(ctx, purchase("e2", item(1, 1000)))
		assert.True(t, apperrors.IsTransient(err))
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("CommitFailureDispatchesNothing", func(t *testing.T) {
		store := newFakeStore(activeTitle(1, "100.00"))
		useCase, sqlMock, dispatcher := newAfterCommitUseCase(t, store)

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		_, err := useCase.Process(ctx, purchase("e2", item(1, 1000)))
		assert.Error(t, err)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("DispatchFailureKeepsCommittedOutcome", func(t *testing.T) {
		store := newFakeStore(activeTitle(1, "100.00"))
		useCase, sqlMock, dispatcher := newAfterCommitUseCase(t, store)

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

		outcome, err := useCase.Process(ctx, purchase("e2", item(1, 1000)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeRejected, outcome.Kind)
		assert.Equal(t, 1, store.ledgerSize())
		dispatcher.AssertExpectations(t)
	})

	t.Run("ConcurrentDuplicateDropsRejection", func(t *testing.T) {
		store := newFakeStore(activeTitle(1, "100.00"))
		store.recordErr = ledgerDomain.ErrEventAlreadyProcessed
		useCase, sqlMock, dispatcher := newAfterCommitUseCase(t, store)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()

		outcome, err := useCase.Process(ctx, purchase("e2", item(1, 1000)))
		require.NoError(t, err)
		assert.Equal(t, stockDomain.OutcomeDuplicate, outcome.Kind)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})
}

func TestReconciliationUseCase_IsProcessed(t *testing.T) {
	ctx := context.Background()
	f := newReconciliationFixture(activeTitle(1, "10"))

	processed, err := f.useCase.IsProcessed(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = f.useCase.Process(ctx, purchase("e1", item(1, 1)))
	require.NoError(t, err)

	processed, err = f.useCase.IsProcessed(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = f.useCase.IsProcessed(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
