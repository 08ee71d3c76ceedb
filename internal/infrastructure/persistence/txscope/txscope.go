// Package txscope carries a driver transaction through a context so nested
// WithTransaction calls join the outermost one.
package txscope

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Driver starts and finishes transactions of type T
type Driver[T any] struct {
	Begin    func(ctx context.Context) (T, error)
	Commit   func(ctx context.Context, tx T) error
	Rollback func(ctx context.Context, tx T) error
}

type ctxKey[T any] struct{}

// From returns the transaction bound to ctx, if any
func From[T any](ctx context.Context) (T, bool) {
	tx, ok := ctx.Value(ctxKey[T]{}).(T)
	return tx, ok
}

// Run executes fn inside a transaction. When ctx already carries a
// transaction of type T, fn joins it and the outer caller commits.
func Run[T any](ctx context.Context, d Driver[T], logger *zap.Logger, fn func(ctx context.Context) error) error {
	if _, ok := From[T](ctx); ok {
		return fn(ctx)
	}

	tx, err := d.Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback must still reach the database after ctx is cancelled.
	finishCtx := context.WithoutCancel(ctx)

	defer func() {
		if p := recover(); p != nil {
			_ = d.Rollback(finishCtx, tx)
			logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, ctxKey[T]{}, tx)); err != nil {
		if rbErr := d.Rollback(finishCtx, tx); rbErr != nil {
			logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := d.Commit(ctx, tx); err != nil {
		logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
