package core

import (
	"errors"
	"testing"
)

func TestTurnLimiter(t *testing.T) {
	l := NewTurnLimiter(2)
	for i := 1; i <= 2; i++ {
		n, err := l.Increment()
		if err != nil || n != i {
			t.Fatalf("turn %d: n=%d err=%v", i, n, err)
		}
	}
	if l.Remaining() != 0 {
		t.Fatalf("remaining = %d", l.Remaining())
	}
	n, err := l.Increment()
	var mte *MaxTurnsExceededError
	if !errors.As(err, &mte) || mte.MaxTurns != 2 || n != 3 {
		t.Fatalf("expected MaxTurnsExceededError on turn 3, got n=%d err=%v", n, err)
	}
}

func TestTurnLimiter_Unlimited(t *testing.T) {
	l := NewTurnLimiter(0)
	for i := 0; i < 100; i++ {
		if _, err := l.Increment(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if l.Remaining() != -1 || l.Count() != 100 {
		t.Fatalf("remaining=%d count=%d", l.Remaining(), l.Count())
	}
}

func TestStorageError_Wrapping(t *testing.T) {
	base := errors.New("disk full")
	err := NewStorageError("s1", "append", base)
	var se *StorageError
	if !errors.As(err, &se) || se.SessionID != "s1" || se.Op != "append" || !errors.Is(err, base) {
		t.Fatalf("unexpected error: %v", err)
	}
	if again := NewStorageError("s2", "load", err); again != err {
		t.Fatal("existing StorageError should not be re-wrapped")
	}
	if NewStorageError("s1", "load", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
