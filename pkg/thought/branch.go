package thought

import (
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/id"
)

// ---------------------------------------------------------------------------
// Branch — matcher + callback bundle
// ---------------------------------------------------------------------------

// Callback runs when a branch matched and its middleware completed.
type Callback func(s *State) error

// Match is a successful matcher evaluation with any captured fragments.
type Match struct {
	Captures []string
}

// Matcher evaluates a message. A nil *Match means no match.
type Matcher interface {
	Match(m chat.Message) (*Match, error)
}

// Branch bundles a matcher with a callback under a stable id.
type Branch struct {
	id       string
	matcher  Matcher
	callback Callback

	// Force lets the branch survive Path.Forced collapses and run after an
	// earlier stage set done.
	Force bool
}

// BranchOption configures a branch at construction.
type BranchOption func(*Branch)

// BranchID pins the branch id instead of generating a counter id.
func BranchID(branchID string) BranchOption {
	return func(b *Branch) { b.id = branchID }
}

// Forced marks the branch force-enabled.
func Forced() BranchOption {
	return func(b *Branch) { b.Force = true }
}

// NewBranch creates a branch with a generated counter id.
func NewBranch(matcher Matcher, callback Callback, opts ...BranchOption) *Branch {
	b := &Branch{
		id:       id.Counter("branch"),
		matcher:  matcher,
		callback: callback,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the branch's stable id.
func (b *Branch) ID() string { return b.id }

// Process evaluates the matcher against the state's message. On match it
// records the match on state and runs the branch middleware with the
// callback as terminal. The first return reports whether the branch
// matched; a short-circuited pipeline still counts as matched, the
// callback just does not run.
func (b *Branch) Process(s *State, mw *Middleware) (bool, error) {
	// Non-forced branches decline once the state is done.
	if s.Done && !b.Force {
		return false, nil
	}
	match, err := b.matcher.Match(s.Message)
	if err != nil {
		return false, err
	}
	if match == nil {
		return false, nil
	}

	s.Matched = true
	s.Branch = b
	s.Conditions = match.Captures

	if mw == nil {
		return true, b.callback(s)
	}
	_, err = mw.Execute(s, func(st *State) error {
		return b.callback(st)
	})
	return true, err
}
