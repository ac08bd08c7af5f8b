package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunCleanOutbox(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		useCase.On("CleanProcessed", ctx, 30, false).Return(int64(100), nil)

		var out bytes.Buffer
		require.NoError(t, RunCleanOutbox(ctx, useCase, discardLogger(), &out, 30, false, "text"))

		assert.Equal(t, "Deleted 100 processed outbox event(s) older than 30 day(s)\n", out.String())
		useCase.AssertExpectations(t)
	})

	t.Run("dry run as json", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		useCase.On("CleanProcessed", ctx, 7, true).Return(int64(50), nil)

		var out bytes.Buffer
		require.NoError(t, RunCleanOutbox(ctx, useCase, discardLogger(), &out, 7, true, "json"))

		assert.JSONEq(t, `{"count":50,"days":7,"dry_run":true}`, out.String())
	})

	t.Run("negative days", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		err := RunCleanOutbox(ctx, useCase, discardLogger(), &bytes.Buffer{}, -1, false, "text")

		assert.EqualError(t, err, "days must not be negative, got: -1")
		useCase.AssertNotCalled(t, "CleanProcessed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown format", func(t *testing.T) {
		err := RunCleanOutbox(ctx, &MockOutboxUseCase{}, discardLogger(), &bytes.Buffer{}, 1, false, "yaml")

		assert.ErrorContains(t, err, "invalid format: yaml")
	})

	t.Run("repository failure", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		useCase.On("CleanProcessed", ctx, 30, false).Return(int64(0), errors.New("connection refused"))

		err := RunCleanOutbox(ctx, useCase, discardLogger(), &bytes.Buffer{}, 30, false, "text")

		assert.EqualError(t, err, "failed to clean outbox events: connection refused")
	})
}

func TestRunForwardOutbox(t *testing.T) {
	ctx := context.Background()

	t.Run("drains full batches", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		useCase.On("ForwardPending", ctx).Return(10, nil).Twice()
		useCase.On("ForwardPending", ctx).Return(3, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunForwardOutbox(ctx, useCase, discardLogger(), &out, 10, "text"))

		assert.Equal(t, "Forwarded 23 outbox event(s) in 3 pass(es)\n", out.String())
		useCase.AssertExpectations(t)
	})

	t.Run("empty outbox as json", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		useCase.On("ForwardPending", ctx).Return(0, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunForwardOutbox(ctx, useCase, discardLogger(), &out, 10, "json"))

		assert.JSONEq(t, `{"forwarded":0,"passes":1}`, out.String())
	})

	t.Run("pass failure", func(t *testing.T) {
		useCase := &MockOutboxUseCase{}
		useCase.On("ForwardPending", ctx).Return(0, errors.New("lock wait timeout")).Once()

		err := RunForwardOutbox(ctx, useCase, discardLogger(), &bytes.Buffer{}, 10, "text")

		assert.EqualError(t, err, "failed to forward outbox events: lock wait timeout")
	})
}
