package thought

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Thought — one pipeline stage
// ---------------------------------------------------------------------------

// thoughtConfig assembles a stage. A nil middleware is looked up in the
// registry by stage name; a missing pipeline is fatal at construction. A
// nil branches getter marks a stage without branch processing; a getter
// returning an empty set marks a supplied-but-empty stage, which skips.
type thoughtConfig struct {
	name       string
	branches   func() []*Branch
	middleware *Middleware
	validate   func(s *State) (bool, error)
	action     func(s *State, success bool) error
	emit       func(s *State)
}

// Thought runs one named stage: validate, middleware, optional branches,
// then its action with the success flag.
type Thought struct {
	name       string
	state      *State
	branches   func() []*Branch
	middleware *Middleware
	validate   func(s *State) (bool, error)
	action     func(s *State, success bool) error
	emit       func(s *State)
}

func newThought(state *State, cfg thoughtConfig, registry *Registry) (*Thought, error) {
	mw := cfg.middleware
	if mw == nil {
		var ok bool
		mw, ok = registry.Get(cfg.name)
		if !ok {
			return nil, fmt.Errorf("thought %q: %w", cfg.name, ErrUnknownMiddleware)
		}
	}
	t := &Thought{
		name:       cfg.name,
		state:      state,
		branches:   cfg.branches,
		middleware: mw,
		validate:   cfg.validate,
		action:     cfg.action,
		emit:       cfg.emit,
	}
	if t.validate == nil {
		t.validate = func(*State) (bool, error) { return true, nil }
	}
	if t.action == nil {
		t.action = func(*State, bool) error { return nil }
	}
	return t, nil
}

// process runs the stage against its state. Validation failures and empty
// branch sets recover locally as unsuccess; errors from validators,
// middleware, callbacks, or actions propagate to the sequence caller.
func (t *Thought) process() error {
	s := t.state
	if s.Exit {
		return nil
	}
	if t.emit != nil {
		t.emit(s)
	}

	if t.branches != nil {
		branches := t.branches()
		if len(branches) == 0 {
			return t.action(s, false)
		}
		if s.Done {
			return t.action(s, false)
		}
		ok, err := t.validate(s)
		if err != nil {
			if actionErr := t.action(s, false); actionErr != nil {
				return actionErr
			}
			return fmt.Errorf("%s validate: %w", t.name, err)
		}
		if !ok {
			return t.action(s, false)
		}
		success := false
		for _, b := range branches {
			if s.Done {
				break
			}
			matched, err := b.Process(s, t.middleware)
			if err != nil {
				return fmt.Errorf("%s branch %s: %w", t.name, b.ID(), err)
			}
			if matched {
				success = true
			}
		}
		return t.complete(success)
	}

	ok, err := t.validate(s)
	if err != nil {
		if actionErr := t.action(s, false); actionErr != nil {
			return actionErr
		}
		return fmt.Errorf("%s validate: %w", t.name, err)
	}
	if !ok {
		return t.action(s, false)
	}
	completed, err := t.middleware.Execute(s, func(*State) error { return nil })
	if err != nil {
		return err
	}
	return t.complete(completed)
}

// complete records success bookkeeping and runs the stage action.
func (t *Thought) complete(success bool) error {
	if success {
		now := time.Now()
		t.state.Processed[t.name] = now
		t.state.markLifecycle(t.name, now)
	}
	return t.action(t.state, success)
}
