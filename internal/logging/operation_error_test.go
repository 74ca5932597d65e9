package logging

import (
	"errors"
	"testing"
)

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("op", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewOperationErrorWrapsAndUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("normalize", "req-1", base)

	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to match base")
	}
	if got, want := err.Error(), "normalize (request_id=req-1): boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
	if RequestIDOf(err) != "req-1" {
		t.Fatalf("unexpected request id %q", RequestIDOf(err))
	}
}

func TestNewOperationErrorDoesNotDoubleWrap(t *testing.T) {
	err := NewOperationError("classify", "req-2", errors.New("boom"))
	again := NewOperationError("classify", "req-2", err)
	if again != err {
		t.Fatalf("expected same error to be returned")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("expected logger, got %v", err)
	}
	_ = logger.Sync()
}
