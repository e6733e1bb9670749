package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	serial := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})
	if !IsRetryable(serial) {
		t.Fatal("expected serialization failure to be retryable")
	}
	if IsRetryable(errors.New("boom")) {
		t.Fatal("plain errors are not retryable")
	}

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_uidx"}
	if !IsUniqueViolation(unique) {
		t.Fatal("expected unique violation")
	}
	if got := ConstraintName(unique); got != "appointments_active_slot_uidx" {
		t.Fatalf("unexpected constraint name %q", got)
	}
}

func TestMigratorLoadOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"002_outbox.sql": {Data: []byte("SELECT 2;")},
		"001_core.sql":   {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("ignored")},
		"core.sql":       {Data: []byte("no version prefix")},
	}
	migs, err := NewMigrator(nil, fsys).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migs) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migs))
	}
	if migs[0].Version != 1 || migs[1].Version != 2 {
		t.Fatalf("unexpected order: %+v", migs)
	}
}

// scriptedTx fails Commit with the next queued error, if any.
type scriptedTx struct {
	pgx.Tx
	commitErrs *[]error
	rollbacks  *int
}

func (t scriptedTx) Commit(context.Context) error {
	if len(*t.commitErrs) == 0 {
		return nil
	}
	err := (*t.commitErrs)[0]
	*t.commitErrs = (*t.commitErrs)[1:]
	return err
}

func (t scriptedTx) Rollback(context.Context) error {
	*t.rollbacks++
	return nil
}

func scriptedBegin(commitErrs []error, rollbacks *int) func(context.Context) (pgx.Tx, error) {
	return func(context.Context) (pgx.Tx, error) {
		return scriptedTx{commitErrs: &commitErrs, rollbacks: rollbacks}, nil
	}
}

func TestRetryTxReplaysSerializationFailure(t *testing.T) {
	var rollbacks, calls int
	begin := scriptedBegin([]error{&pgconn.PgError{Code: "40001"}}, &rollbacks)

	err := retryTx(context.Background(), 5, begin, func(pgx.Tx) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after one retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fn to run twice, ran %d times", calls)
	}
	if rollbacks != 2 {
		t.Fatalf("expected every attempt to be rolled back or closed, got %d", rollbacks)
	}
}

func TestRetryTxGivesUpAfterMaxAttempts(t *testing.T) {
	var rollbacks, calls int
	deadlock := &pgconn.PgError{Code: "40P01"}
	begin := scriptedBegin([]error{deadlock, deadlock, deadlock}, &rollbacks)

	err := retryTx(context.Background(), 2, begin, func(pgx.Tx) error {
		calls++
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "retries exhausted") {
		t.Fatalf("expected exhausted retries, got %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "40P01" {
		t.Fatalf("expected wrapped PgError, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryTxDoesNotReplayOtherErrors(t *testing.T) {
	var rollbacks, calls int
	begin := scriptedBegin(nil, &rollbacks)
	boom := errors.New("boom")

	err := retryTx(context.Background(), 5, begin, func(pgx.Tx) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected one failed attempt, got calls=%d err=%v", calls, err)
	}
}
