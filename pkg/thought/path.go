package thought

import (
	"sync"

	"github.com/mullbot/mull/pkg/nlu"
)

// ---------------------------------------------------------------------------
// Path — named collections of branches grouped by stage
// ---------------------------------------------------------------------------

// orderedBranches preserves insertion order while deduplicating by id.
// Re-adding an id replaces the branch in place: last writer wins.
type orderedBranches struct {
	order []string
	byID  map[string]*Branch
}

func newOrderedBranches() *orderedBranches {
	return &orderedBranches{byID: make(map[string]*Branch)}
}

func (o *orderedBranches) add(b *Branch) {
	if _, ok := o.byID[b.ID()]; !ok {
		o.order = append(o.order, b.ID())
	}
	o.byID[b.ID()] = b
}

func (o *orderedBranches) list() []*Branch {
	out := make([]*Branch, 0, len(o.order))
	for _, branchID := range o.order {
		out = append(out, o.byID[branchID])
	}
	return out
}

func (o *orderedBranches) len() int { return len(o.order) }

// branchStages are the stages that process branches.
var branchStages = []string{StageListen, StageUnderstand, StageServe, StageAct}

// Path groups branches by stage. Insertion order is processing order.
// Concurrent adds are guarded but not atomic across stages.
type Path struct {
	mu     sync.Mutex
	stages map[string]*orderedBranches
}

// NewPath creates an empty path.
func NewPath() *Path {
	p := &Path{stages: make(map[string]*orderedBranches)}
	for _, stage := range branchStages {
		p.stages[stage] = newOrderedBranches()
	}
	return p
}

// Add installs a branch under a stage and returns it.
func (p *Path) Add(stage string, b *Branch) *Branch {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.stages[stage]
	if !ok {
		set = newOrderedBranches()
		p.stages[stage] = set
	}
	set.add(b)
	return b
}

// Branches returns the stage's branches in insertion order.
func (p *Path) Branches(stage string) []*Branch {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.stages[stage]
	if !ok {
		return nil
	}
	return set.list()
}

// Forced collapses a stage's collection to its force-marked branches,
// preserving order.
func (p *Path) Forced(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.stages[stage]
	if !ok {
		return
	}
	forced := newOrderedBranches()
	for _, b := range set.list() {
		if b.Force {
			forced.add(b)
		}
	}
	p.stages[stage] = forced
}

// HasBranches reports whether any stage holds at least one branch.
func (p *Path) HasBranches() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, set := range p.stages {
		if set.len() > 0 {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Builder helpers — the user-facing branch declarations
// ---------------------------------------------------------------------------

// Text installs a regex listen branch.
func (p *Path) Text(pattern string, cb Callback, opts ...BranchOption) (*Branch, error) {
	matcher, err := NewTextMatcher(pattern)
	if err != nil {
		return nil, err
	}
	return p.Add(StageListen, NewBranch(matcher, cb, opts...)), nil
}

// Capture installs a listen branch extracting the fragment between after
// and before.
func (p *Path) Capture(after, before string, cb Callback, opts ...BranchOption) *Branch {
	return p.Add(StageListen, NewBranch(CaptureMatcher{After: after, Before: before}, cb, opts...))
}

// Custom installs a listen branch with a user predicate.
func (p *Path) Custom(fn CustomMatcher, cb Callback, opts ...BranchOption) *Branch {
	return p.Add(StageListen, NewBranch(fn, cb, opts...))
}

// NLU installs an understand branch matching NLU criteria.
func (p *Path) NLU(section string, c nlu.Criteria, cb Callback, opts ...BranchOption) *Branch {
	return p.Add(StageUnderstand, NewBranch(NLUMatcher{Section: section, Criteria: c}, cb, opts...))
}

// Server installs a serve branch matching server message data keys.
func (p *Path) Server(data map[string]interface{}, cb Callback, opts ...BranchOption) *Branch {
	return p.Add(StageServe, NewBranch(ServerMatcher{Data: data}, cb, opts...))
}

// CatchAll installs an act branch running when nothing else matched.
func (p *Path) CatchAll(cb Callback, opts ...BranchOption) *Branch {
	return p.Add(StageAct, NewBranch(CatchAllMatcher{}, cb, opts...))
}
