package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/logging"
	"github.com/example/cattle-id/internal/retry"
)

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func testRepository(attempts int) *ProfileRepository {
	return &ProfileRepository{
		logger: zap.NewNop(),
		policy: retry.Policy{
			Attempts:       attempts,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	}
}

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	repo := testRepository(3)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-1", func() error {
		attempts++
		if attempts < 2 {
			return transientTestError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryReturnsOperationError(t *testing.T) {
	repo := testRepository(2)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-2", func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if opErr.RequestID != "req-2" {
		t.Fatalf("unexpected request id: %s", opErr.RequestID)
	}
}

func TestTableFromRecords(t *testing.T) {
	records := []ProfileRecord{
		{
			Label:           "Cow001",
			NextVaccination: time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC),
			WaterAmount:     40,
			WaterUnit:       "Liters/day",
			FoodAmount:      25,
			FoodUnit:        "kg/day",
		},
	}

	table, err := TableFromRecords(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := table.Get("Cow001")
	if !ok {
		t.Fatal("Cow001 missing")
	}
	if p.NextVaccination != (husbandry.Date{Year: 2025, Month: time.August, Day: 20}) {
		t.Fatalf("unexpected date %v", p.NextVaccination)
	}
	if p.WaterNeed.String() != "40 Liters/day" {
		t.Fatalf("unexpected water need %s", p.WaterNeed)
	}

	if _, err := TableFromRecords(append(records, records[0])); err == nil {
		t.Fatal("expected duplicate label error")
	}

	incomplete := []ProfileRecord{{Label: "Cow002", NextVaccination: records[0].NextVaccination, WaterAmount: 1, WaterUnit: "L"}}
	if _, err := TableFromRecords(incomplete); err == nil {
		t.Fatal("expected validation error for missing food unit")
	}
}
