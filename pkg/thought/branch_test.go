package thought

import (
	"errors"
	"strings"
	"testing"
)

func TestBranchProcessMatches(t *testing.T) {
	var called bool
	b := NewBranch(MustTextMatcher(`hello`), func(s *State) error {
		called = true
		return nil
	})
	s := NewState(textMsg("hello there"))

	matched, err := b.Process(s, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !matched {
		t.Fatal("expected match")
	}
	if !called {
		t.Error("callback did not run")
	}
	if !s.Matched {
		t.Error("state not marked matched")
	}
	if s.Branch != b {
		t.Error("state does not reference the matched branch")
	}
}

func TestBranchProcessDeclinesWhenDone(t *testing.T) {
	b := NewBranch(MustTextMatcher(`hello`), func(s *State) error {
		t.Error("callback should not run")
		return nil
	})
	s := NewState(textMsg("hello there"))
	s.Finish()

	matched, err := b.Process(s, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if matched {
		t.Error("non-forced branch matched a done state")
	}
}

func TestForcedBranchRunsWhenDone(t *testing.T) {
	var called bool
	b := NewBranch(MustTextMatcher(`hello`), func(s *State) error {
		called = true
		return nil
	}, Forced())
	s := NewState(textMsg("hello there"))
	s.Finish()

	matched, err := b.Process(s, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !matched || !called {
		t.Error("forced branch should run on a done state")
	}
}

func TestBranchMatchSurvivesMiddlewareShortCircuit(t *testing.T) {
	mw := NewMiddleware("listen")
	mw.Register(func(s *State, next, done func()) error {
		done()
		return nil
	})
	var called bool
	b := NewBranch(MustTextMatcher(`hello`), func(s *State) error {
		called = true
		return nil
	})
	s := NewState(textMsg("hello there"))

	matched, err := b.Process(s, mw)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !matched {
		t.Error("short-circuited pipeline should still count as matched")
	}
	if called {
		t.Error("callback ran despite middleware done")
	}
	if !s.Matched {
		t.Error("state not marked matched")
	}
}

func TestBranchCallbackErrorPropagates(t *testing.T) {
	boom := errors.New("callback boom")
	b := NewBranch(MustTextMatcher(`hello`), func(s *State) error { return boom })
	s := NewState(textMsg("hello"))

	matched, err := b.Process(s, NewMiddleware("listen"))
	if !matched {
		t.Error("expected matched despite error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestBranchIDOptions(t *testing.T) {
	pinned := NewBranch(MustTextMatcher(`a`), nil, BranchID("my_branch"))
	if pinned.ID() != "my_branch" {
		t.Errorf("expected pinned id, got %s", pinned.ID())
	}
	generated := NewBranch(MustTextMatcher(`a`), nil)
	if !strings.HasPrefix(generated.ID(), "branch_") {
		t.Errorf("expected counter id, got %s", generated.ID())
	}
}
