// Package thought implements the mull thought process: the state threaded
// through a pipeline run, the middleware onion, branches and their
// matchers, paths, dialogues, and the staged orchestrator that ties them
// together.
package thought

import (
	"time"

	"github.com/mullbot/mull/pkg/chat"
)

// State is the mutable envelope-of-facts owned by one pipeline run. It is
// created per reception or dispatch and never shared across runs.
type State struct {
	// Message is the inbound message (inbound sequences).
	Message chat.Message

	// Envelopes is the ordered outbound queue (outbound sequences).
	Envelopes []*chat.Envelope

	// Sequence names the running sequence (receive, serve, respond, dispatch).
	Sequence string

	// Processed records when each stage's middleware terminal completed.
	Processed map[string]time.Time

	// Matched is set once any branch matcher fires; monotonic within a run.
	Matched bool

	// Done short-circuits remaining branches in the current stage.
	Done bool

	// Exit aborts the entire sequence at the next stage boundary.
	Exit bool

	// Branch is the last matched branch.
	Branch *Branch

	// Conditions holds captured fragments from the most recent match.
	Conditions []string

	// Dialogue is the engaged dialogue for this run, if any. Callbacks add
	// follow-up branches through its path.
	Dialogue *Dialogue

	// Lifecycle timestamps, set as the corresponding stage succeeds.
	Heard      time.Time
	Listened   time.Time
	Understood time.Time
	Responded  time.Time
	Remembered time.Time

	// respond runs the respond sequence on this state; wired by Thoughts so
	// branch callbacks can reply mid-run.
	respond func(*State) error
}

// NewState creates a state for an inbound message.
func NewState(message chat.Message) *State {
	return &State{
		Message:   message,
		Processed: make(map[string]time.Time),
	}
}

// NewDispatchState creates a state for an outbound envelope.
func NewDispatchState(envelope *chat.Envelope) *State {
	return &State{
		Envelopes: []*chat.Envelope{envelope},
		Processed: make(map[string]time.Time),
	}
}

// Finish sets done, stopping further branches in the current stage.
func (s *State) Finish() *State {
	s.Done = true
	return s
}

// PendingEnvelope returns the most recent envelope not yet dispatched.
func (s *State) PendingEnvelope() *chat.Envelope {
	for i := len(s.Envelopes) - 1; i >= 0; i-- {
		if s.Envelopes[i].Responded.IsZero() {
			return s.Envelopes[i]
		}
	}
	return nil
}

// DispatchedEnvelope returns the most recent dispatched envelope.
func (s *State) DispatchedEnvelope() *chat.Envelope {
	for i := len(s.Envelopes) - 1; i >= 0; i-- {
		if !s.Envelopes[i].Responded.IsZero() {
			return s.Envelopes[i]
		}
	}
	return nil
}

// RespondEnvelope returns the pending envelope, creating one addressed at
// the inbound message's audience when none is queued. Strings append to
// the envelope's ordered sequence.
func (s *State) RespondEnvelope(lines ...string) *chat.Envelope {
	envelope := s.PendingEnvelope()
	if envelope == nil {
		if s.Message != nil {
			envelope = chat.ForMessage(s.Message)
		} else {
			envelope = chat.NewEnvelope()
		}
		s.Envelopes = append(s.Envelopes, envelope)
	}
	if len(lines) > 0 {
		envelope.Write(lines...)
	}
	return envelope
}

// Respond queues the strings and runs the respond sequence on this state.
func (s *State) Respond(lines ...string) error {
	s.RespondEnvelope(lines...)
	if s.respond == nil {
		return nil
	}
	return s.respond(s)
}

// RespondVia queues the strings with an explicit dispatch method.
func (s *State) RespondVia(method string, lines ...string) error {
	s.RespondEnvelope(lines...).Via(method)
	if s.respond == nil {
		return nil
	}
	return s.respond(s)
}

// Reply responds with the reply method (user-directed in shared rooms).
func (s *State) Reply(lines ...string) error {
	return s.RespondVia(chat.MethodReply, lines...)
}

// markLifecycle stamps the lifecycle field for a successful stage.
func (s *State) markLifecycle(stage string, at time.Time) {
	switch stage {
	case StageHear:
		s.Heard = at
	case StageListen:
		s.Listened = at
	case StageUnderstand:
		s.Understood = at
	case StageRespond:
		s.Responded = at
	case StageRemember:
		s.Remembered = at
	}
}

// Record snapshots the state for persistence. Function-valued fields and
// runtime references are dropped; the result is JSON-friendly.
func (s *State) Record() map[string]interface{} {
	record := map[string]interface{}{
		"sequence": s.Sequence,
		"matched":  s.Matched,
		"done":     s.Done,
	}
	processed := make(map[string]interface{}, len(s.Processed))
	for stage, at := range s.Processed {
		processed[stage] = at
	}
	record["processed"] = processed
	if len(s.Conditions) > 0 {
		record["conditions"] = append([]string(nil), s.Conditions...)
	}
	if s.Branch != nil {
		record["branch_id"] = s.Branch.ID()
	}
	if s.Message != nil {
		message := map[string]interface{}{"id": s.Message.ID()}
		if user := s.Message.User(); user != nil {
			message["user_id"] = user.ID
			if user.Room != nil {
				message["room_id"] = user.Room.ID
			}
		}
		if text := s.Message.Text(); text != "" {
			message["text"] = text
		}
		record["message"] = message
	}
	if len(s.Envelopes) > 0 {
		envelopes := make([]interface{}, 0, len(s.Envelopes))
		for _, e := range s.Envelopes {
			envelopes = append(envelopes, map[string]interface{}{
				"id":        e.ID,
				"method":    e.Method,
				"strings":   append([]string(nil), e.Strings...),
				"branch_id": e.BranchID,
				"responded": e.Responded,
			})
		}
		record["envelopes"] = envelopes
	}
	return record
}
