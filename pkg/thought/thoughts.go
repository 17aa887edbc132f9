package thought

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/events"
	"github.com/mullbot/mull/pkg/logger"
	"github.com/mullbot/mull/pkg/nlu"
)

// ---------------------------------------------------------------------------
// Thoughts — the stage orchestrator
// ---------------------------------------------------------------------------

// Sequence names.
const (
	SequenceReceive  = "receive"
	SequenceServe    = "serve"
	SequenceRespond  = "respond"
	SequenceDispatch = "dispatch"
)

// ErrUnknownSequence marks a start request for a sequence that is not
// defined.
const ErrUnknownSequence ThoughtError = "unknown sequence"

// Deps are the collaborators the thought process consults. Nil adapters
// are expected absences: dependent stages skip with a debug log, except
// respond, which rejects without a message adapter.
type Deps struct {
	// Name identifies the bot as the event source.
	Name string

	Messages  adapter.Message
	Storage   adapter.Storage
	NLU       adapter.NLU
	Emitter   *events.Emitter
	Registry  *Registry
	Dialogues *Dialogues
	Directory *chat.Directory

	// GlobalPath holds the branches processed when no dialogue is engaged
	// and no explicit path is given.
	GlobalPath *Path

	// NLUMinLength gates the understand stage on trimmed text length.
	NLUMinLength int
}

// Thoughts owns the stage map and the named sequences for one state.
type Thoughts struct {
	deps  Deps
	state *State

	// path is an explicit override from the caller; processPath is a
	// dialogue's progressed path. Branch lookups fall through
	// path -> processPath -> GlobalPath.
	path        *Path
	processPath *Path

	dialogue  *Dialogue
	stages    map[string]*Thought
	sequences map[string][]string
	ctx       context.Context
}

// NewThoughts builds the orchestrator for a state, wiring the built-in
// per-stage policies. A non-nil path overrides dialogue and global paths.
func NewThoughts(deps Deps, state *State, path *Path) (*Thoughts, error) {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NewEmitter()
	}
	if deps.Dialogues == nil {
		deps.Dialogues = NewDialogues()
	}
	if deps.GlobalPath == nil {
		deps.GlobalPath = NewPath()
	}

	tt := &Thoughts{
		deps:  deps,
		state: state,
		path:  path,
		ctx:   context.Background(),
		sequences: map[string][]string{
			SequenceReceive:  {StageHear, StageListen, StageUnderstand, StageAct, StageRemember},
			SequenceServe:    {StageHear, StageServe, StageAct, StageRemember},
			SequenceRespond:  {StageRespond},
			SequenceDispatch: {StageRespond, StageRemember},
		},
	}

	// Branch callbacks reply through the same state. The sub-run restores
	// the outer sequence name so remember records the run that owns the
	// state, not the nested respond.
	if state.respond == nil {
		state.respond = func(s *State) error {
			sub, err := NewThoughts(deps, s, path)
			if err != nil {
				return err
			}
			outer := s.Sequence
			err = sub.Start(tt.ctx, SequenceRespond)
			s.Sequence = outer
			return err
		}
	}

	configs := []thoughtConfig{
		{
			name: StageHear,
			action: func(s *State, success bool) error {
				// A rejected hear aborts subsequent branch processing.
				if !success {
					s.Finish()
				}
				return nil
			},
		},
		{
			name:     StageListen,
			branches: tt.stageBranches(StageListen),
			action: func(s *State, success bool) error {
				// Matching a listen branch restricts understand to forced
				// branches only.
				if success {
					tt.currentPath().Forced(StageUnderstand)
				}
				return nil
			},
		},
		{
			name:     StageUnderstand,
			branches: tt.stageBranches(StageUnderstand),
			validate: tt.validateUnderstand,
		},
		{
			name:     StageServe,
			branches: tt.stageBranches(StageServe),
		},
		{
			name:     StageAct,
			branches: tt.stageBranches(StageAct),
			validate: func(s *State) (bool, error) {
				if s.Matched || s.Message == nil {
					return false, nil
				}
				s.Message = chat.NewCatchAllMessage(s.Message)
				return true, nil
			},
		},
		{
			name:     StageRespond,
			validate: tt.validateRespond,
			action:   tt.actionRespond,
		},
		{
			name:     StageRemember,
			validate: tt.validateRemember,
			action:   tt.actionRemember,
		},
	}

	tt.stages = make(map[string]*Thought, len(configs))
	for _, cfg := range configs {
		cfg.emit = tt.emitStage(cfg.name)
		t, err := newThought(state, cfg, deps.Registry)
		if err != nil {
			return nil, err
		}
		tt.stages[cfg.name] = t
	}
	return tt, nil
}

// currentPath resolves the path branches are read from.
func (tt *Thoughts) currentPath() *Path {
	if tt.path != nil {
		return tt.path
	}
	if tt.processPath != nil {
		return tt.processPath
	}
	return tt.deps.GlobalPath
}

func (tt *Thoughts) stageBranches(stage string) func() []*Branch {
	return func() []*Branch { return tt.currentPath().Branches(stage) }
}

func (tt *Thoughts) emitStage(stage string) func(*State) {
	return func(s *State) {
		tt.deps.Emitter.Emit(events.New(events.StageEvent(stage), tt.deps.Name, s))
	}
}

// Start runs the named sequence serially. Stages that fail validation or
// find no branches mark unsuccess and the sequence continues; exit aborts
// at the next stage boundary; errors from user code propagate.
func (tt *Thoughts) Start(ctx context.Context, sequence string) error {
	if ctx != nil {
		tt.ctx = ctx
	}
	stages, ok := tt.sequences[sequence]
	if !ok {
		return fmt.Errorf("start %q: %w", sequence, ErrUnknownSequence)
	}
	tt.state.Sequence = sequence

	if sequence == SequenceReceive && tt.path == nil {
		if d := tt.deps.Dialogues.Engaged(tt.state); d != nil {
			tt.dialogue = d
			tt.state.Dialogue = d
			tt.processPath = d.ProgressPath()
		}
	}

	for _, name := range stages {
		if tt.state.Exit {
			logger.DebugCF("thought", "sequence aborted by exit", map[string]interface{}{
				"sequence": sequence, "stage": name,
			})
			break
		}
		if err := tt.stages[name].process(); err != nil {
			logger.ErrorCF("thought", "stage failed", map[string]interface{}{
				"sequence": sequence, "stage": name, "error": err.Error(),
			})
			return err
		}
	}

	if sequence == SequenceReceive && tt.dialogue != nil {
		tt.settleDialogue()
	}
	return nil
}

// settleDialogue applies the post-receive dialogue policy: an unmatched
// run restores the previous path; a matched run with follow-up branches
// stays engaged; a matched run with an empty fresh path closes.
func (tt *Thoughts) settleDialogue() {
	d := tt.dialogue
	switch {
	case !tt.state.Matched:
		d.RevertPath()
	case d.Path().HasBranches():
		// Engaged for the next turn with the callback-added branches.
	default:
		tt.deps.Dialogues.Close(d)
		tt.deps.Emitter.Emit(events.New(events.DialogueClosed, tt.deps.Name, tt.state))
	}
}

// ---------------------------------------------------------------------------
// Built-in stage policies
// ---------------------------------------------------------------------------

func (tt *Thoughts) validateUnderstand(s *State) (bool, error) {
	if tt.deps.NLU == nil {
		logger.DebugC("thought", "understand skipped, no nlu adapter")
		return false, nil
	}
	text, ok := s.Message.(*chat.TextMessage)
	if !ok {
		return false, nil
	}
	trimmed := strings.TrimSpace(text.Text())
	if trimmed == "" {
		return false, nil
	}
	if tt.deps.NLUMinLength > 0 && len(trimmed) < tt.deps.NLUMinLength {
		logger.DebugCF("thought", "understand skipped, text below min length", map[string]interface{}{
			"length": len(trimmed), "min": tt.deps.NLUMinLength,
		})
		return false, nil
	}
	raw, err := tt.deps.NLU.Process(tt.ctx, text)
	if err != nil {
		// Provider outage is an expected absence, not a programmer error.
		logger.ErrorCF("thought", "nlu adapter failed", map[string]interface{}{"error": err.Error()})
		return false, nil
	}
	if len(raw) == 0 {
		return false, nil
	}
	result := nlu.Normalise(raw)
	if result.Empty() {
		return false, nil
	}
	text.NLU = result
	return true, nil
}

func (tt *Thoughts) validateRespond(s *State) (bool, error) {
	if tt.deps.Messages == nil {
		return false, fmt.Errorf("respond: %w", adapter.ErrAdapterMissing)
	}
	envelope := s.PendingEnvelope()
	if envelope == nil {
		return false, nil
	}
	if s.Branch != nil {
		envelope.BranchID = s.Branch.ID()
	}
	return true, nil
}

func (tt *Thoughts) actionRespond(s *State, success bool) error {
	if !success {
		return nil
	}
	envelope := s.PendingEnvelope()
	if envelope == nil {
		return nil
	}
	if err := tt.deps.Messages.Dispatch(tt.ctx, envelope); err != nil {
		return fmt.Errorf("dispatch envelope %s: %w", envelope.ID, err)
	}
	envelope.Responded = time.Now()
	tt.deps.Emitter.Emit(events.New(events.EnvelopeDispatched, tt.deps.Name, envelope))
	return nil
}

func (tt *Thoughts) validateRemember(s *State) (bool, error) {
	if tt.deps.Storage == nil {
		logger.DebugC("thought", "remember skipped, no storage adapter")
		return false, nil
	}
	if !s.Matched && s.DispatchedEnvelope() == nil {
		return false, nil
	}
	if s.Matched && s.Message != nil && tt.deps.Directory != nil {
		if user := s.Message.User(); user != nil {
			tt.deps.Directory.UserByID(user.ID, user)
		}
	}
	return true, nil
}

func (tt *Thoughts) actionRemember(s *State, success bool) error {
	if !success {
		return nil
	}
	return tt.deps.Storage.Keep("states", s.Record())
}
