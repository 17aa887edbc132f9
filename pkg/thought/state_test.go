package thought

import (
	"testing"
	"time"

	"github.com/mullbot/mull/pkg/chat"
)

func TestRespondEnvelopeAddressesMessageAudience(t *testing.T) {
	s := NewState(textMsg("hi"))
	envelope := s.RespondEnvelope("hello back")

	if envelope.User == nil || envelope.User.ID != "u1" {
		t.Error("envelope not addressed at the message user")
	}
	if room := envelope.ResolveRoom(); room == nil || room.ID != "r1" {
		t.Error("envelope not addressed at the message room")
	}
	if len(envelope.Strings) != 1 || envelope.Strings[0] != "hello back" {
		t.Errorf("unexpected strings: %v", envelope.Strings)
	}
}

func TestRespondEnvelopeReusesPending(t *testing.T) {
	s := NewState(textMsg("hi"))
	first := s.RespondEnvelope("one")
	second := s.RespondEnvelope("two")

	if first != second {
		t.Fatal("expected the pending envelope to be reused")
	}
	if len(first.Strings) != 2 {
		t.Errorf("expected appended strings, got %v", first.Strings)
	}
	if len(s.Envelopes) != 1 {
		t.Errorf("expected one queued envelope, got %d", len(s.Envelopes))
	}
}

func TestPendingAndDispatchedEnvelopes(t *testing.T) {
	s := NewState(textMsg("hi"))
	dispatched := s.RespondEnvelope("sent")
	dispatched.Responded = time.Now()
	pending := s.RespondEnvelope("queued")

	if got := s.PendingEnvelope(); got != pending {
		t.Error("PendingEnvelope should return the undispatched envelope")
	}
	if got := s.DispatchedEnvelope(); got != dispatched {
		t.Error("DispatchedEnvelope should return the dispatched envelope")
	}
}

func TestRespondWithoutRunnerQueuesOnly(t *testing.T) {
	s := NewState(textMsg("hi"))
	if err := s.Respond("later"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if s.PendingEnvelope() == nil {
		t.Error("expected a queued envelope")
	}
}

func TestReplySetsMethod(t *testing.T) {
	s := NewState(textMsg("hi"))
	if err := s.Reply("you there"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	envelope := s.PendingEnvelope()
	if envelope.Method != chat.MethodReply {
		t.Errorf("expected reply method, got %s", envelope.Method)
	}
}

func TestRecordSnapshot(t *testing.T) {
	s := NewState(textMsg("remember me"))
	s.Sequence = SequenceReceive
	s.Matched = true
	s.Conditions = []string{"me"}
	s.Processed[StageListen] = time.Now()
	s.RespondEnvelope("noted")

	record := s.Record()
	if record["sequence"] != SequenceReceive {
		t.Errorf("unexpected sequence: %v", record["sequence"])
	}
	if record["matched"] != true {
		t.Error("matched flag missing")
	}
	message, ok := record["message"].(map[string]interface{})
	if !ok {
		t.Fatal("message snapshot missing")
	}
	if message["user_id"] != "u1" || message["room_id"] != "r1" {
		t.Errorf("message identity wrong: %v", message)
	}
	if message["text"] != "remember me" {
		t.Errorf("message text wrong: %v", message["text"])
	}
	envelopes, ok := record["envelopes"].([]interface{})
	if !ok || len(envelopes) != 1 {
		t.Fatalf("envelope snapshot missing: %v", record["envelopes"])
	}
}
