package status

import "testing"

func TestWorseOrdering(t *testing.T) {
	cases := []struct {
		a, b, want Code
	}{
		{Accepted, WrongAnswer, WrongAnswer},
		{TimeLimitExceeded, Accepted, TimeLimitExceeded},
		{UnknownError, CompileError, UnknownError},
		{Accepted, Accepted, Accepted},
	}
	for _, c := range cases {
		if got := Worse(c.a, c.b); got != c.want {
			t.Fatalf("Worse(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestWorseTieKeepsFirstSeen(t *testing.T) {
	// Equal ordinals: aggregation folds left to right, so the accumulator
	// (a) wins ties against an equal b.
	if got := Worse(WrongAnswer, WrongAnswer); got != WrongAnswer {
		t.Fatalf("Worse tie = %v, want WrongAnswer", got)
	}
}

func TestStringCoversAllCodes(t *testing.T) {
	for c := Accepted; c <= UnknownError; c++ {
		if c.String() == "" {
			t.Fatalf("Code(%d).String() is empty", c)
		}
	}
}
