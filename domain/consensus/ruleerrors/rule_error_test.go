package ruleerrors

import (
	"errors"
	"testing"
)

func TestNewErrStaleWork(t *testing.T) {
	outer := NewErrStaleWork(3, 5)
	expectedOuterErr := "ErrStaleWork: work set 3 was superseded by work set 5"
	inner := &ErrStaleWorkSet{}
	if !errors.As(outer, inner) {
		t.Fatal("TestNewErrStaleWork: Outer should contain ErrStaleWorkSet in it")
	}
	if inner.WorkSetID != 3 || inner.CurrentWorkSetID != 5 {
		t.Fatalf("TestNewErrStaleWork: Expected ids 3 and 5, found: %d and %d",
			inner.WorkSetID, inner.CurrentWorkSetID)
	}

	rule := &RuleError{}
	if !errors.As(outer, rule) {
		t.Fatal("TestNewErrStaleWork: Outer should contain RuleError in it")
	}
	if rule.message != "ErrStaleWork" {
		t.Fatalf("TestNewErrStaleWork: Expected message = 'ErrStaleWork', found: '%s'", rule.message)
	}
	if outer.Error() != expectedOuterErr {
		t.Fatalf("TestNewErrStaleWork: Expected %s. found: %s", expectedOuterErr, outer.Error())
	}
}

func TestRuleErrorIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		expected bool
	}{
		{"stale matches its sentinel", NewErrStaleWork(1, 2), ErrStaleWork, true},
		{"stale doesn't match another sentinel", NewErrStaleWork(1, 2), ErrDuplicateEntry, false},
		{"unknown prev hash", NewErrUnknownPrevHash("ab", 4), ErrUnknownPrevHash, true},
		{"duplicate entry", NewErrDuplicateEntry("ab", 4), ErrDuplicateEntry, true},
		{"distance", NewErrDistanceBelowThreshold("btc", 1, 2), ErrDistanceBelowThreshold, true},
		{"validation", NewErrValidation("missing %s", "hash"), ErrValidation, true},
		{"arithmetic", NewErrArithmetic("negative"), ErrArithmetic, true},
		{"plain error", errors.New("ErrValidation"), ErrValidation, false},
		{"sentinel itself", ErrBadBlockHash, ErrBadBlockHash, true},
	}

	for _, test := range tests {
		if got := errors.Is(test.err, test.sentinel); got != test.expected {
			t.Fatalf("TestRuleErrorIs: %s: errors.Is returned %t, want %t", test.name, got, test.expected)
		}
	}
}

func TestNewErrUnknownPrevHashMessage(t *testing.T) {
	err := NewErrUnknownPrevHash("00ff", 10)
	expected := "ErrUnknownPrevHash: no entry 00ff at height 9 to extend at height 10"
	if err.Error() != expected {
		t.Fatalf("TestNewErrUnknownPrevHashMessage: Expected %s. found: %s", expected, err.Error())
	}
}
