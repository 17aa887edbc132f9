package thought

import (
	"testing"

	"github.com/mullbot/mull/pkg/nlu"
)

func noop(s *State) error { return nil }

func TestPathPreservesInsertionOrder(t *testing.T) {
	p := NewPath()
	if _, err := p.Text(`one`, noop, BranchID("b1")); err != nil {
		t.Fatalf("text: %v", err)
	}
	p.Capture("call me", "", noop, BranchID("b2"))
	if _, err := p.Text(`three`, noop, BranchID("b3")); err != nil {
		t.Fatalf("text: %v", err)
	}

	branches := p.Branches(StageListen)
	want := []string{"b1", "b2", "b3"}
	if len(branches) != len(want) {
		t.Fatalf("expected %d branches, got %d", len(want), len(branches))
	}
	for i, id := range want {
		if branches[i].ID() != id {
			t.Errorf("position %d: expected %s, got %s", i, id, branches[i].ID())
		}
	}
}

func TestPathReaddReplacesInPlace(t *testing.T) {
	p := NewPath()
	p.Capture("call me", "", noop, BranchID("dup"))
	p.Capture("after", "", noop, BranchID("other"))

	// Same id again: replaces, position unchanged.
	replacement := NewBranch(MustTextMatcher(`new`), noop, BranchID("dup"))
	p.Add(StageListen, replacement)

	branches := p.Branches(StageListen)
	if len(branches) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(branches))
	}
	if branches[0] != replacement {
		t.Error("re-added branch should replace at its original position")
	}
	if branches[1].ID() != "other" {
		t.Errorf("expected other second, got %s", branches[1].ID())
	}
}

func TestPathForcedCollapse(t *testing.T) {
	p := NewPath()
	p.NLU("intents", nlu.Criteria{ID: "a"}, noop, BranchID("soft"))
	p.NLU("intents", nlu.Criteria{ID: "b"}, noop, BranchID("hard"), Forced())
	p.NLU("intents", nlu.Criteria{ID: "c"}, noop, BranchID("hard2"), Forced())

	p.Forced(StageUnderstand)
	branches := p.Branches(StageUnderstand)
	if len(branches) != 2 {
		t.Fatalf("expected 2 forced branches, got %d", len(branches))
	}
	if branches[0].ID() != "hard" || branches[1].ID() != "hard2" {
		t.Errorf("forced collapse broke order: %s, %s", branches[0].ID(), branches[1].ID())
	}
}

func TestPathHasBranches(t *testing.T) {
	p := NewPath()
	if p.HasBranches() {
		t.Error("empty path reports branches")
	}
	p.CatchAll(noop)
	if !p.HasBranches() {
		t.Error("path with an act branch reports empty")
	}
}
