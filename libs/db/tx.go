package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
)

// IsRetryable reports whether a transaction lost a race under SERIALIZABLE
// isolation and may be replayed from the start.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsUniqueViolation matches unique and exclusion constraint failures.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeUniqueViolation || pgErr.Code == codeExclusionViolation
}

// ConstraintName returns the violated constraint, if the error carries one.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// TxOptions controls WithTx.
type TxOptions struct {
	IsoLevel    pgx.TxIsoLevel
	MaxAttempts int
}

// WithTx runs fn inside a transaction and commits it. Serialization failures and
// deadlocks roll back and replay fn, up to MaxAttempts in total. fn must not keep
// side effects outside the transaction because it can run more than once.
func (p *Pool) WithTx(ctx context.Context, opts TxOptions, fn func(pgx.Tx) error) error {
	iso := opts.IsoLevel
	if iso == "" {
		iso = pgx.Serializable
	}
	begin := func(ctx context.Context) (pgx.Tx, error) {
		return p.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	}
	return retryTx(ctx, opts.MaxAttempts, begin, fn)
}

func retryTx(ctx context.Context, attempts int, begin func(context.Context) (pgx.Tx, error), fn func(pgx.Tx) error) error {
	if attempts <= 0 {
		attempts = 3
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = runTx(ctx, begin, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction retries exhausted after %d attempts: %w", attempts, err)
}

func runTx(ctx context.Context, begin func(context.Context) (pgx.Tx, error), fn func(pgx.Tx) error) error {
	tx, err := begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
