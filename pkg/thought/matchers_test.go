package thought

import (
	"testing"

	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/nlu"
)

func textMsg(text string) *chat.TextMessage {
	user := chat.NewUser("u1", "tester").InRoom(&chat.Room{ID: "r1"})
	return chat.NewTextMessage(user, text)
}

func TestTextMatcher(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		text     string
		match    bool
		captures []string
	}{
		{name: "case insensitive", pattern: `hello`, text: "well HELLO there", match: true},
		{name: "no match", pattern: `hello`, text: "goodbye", match: false},
		{name: "captures groups", pattern: `order (\d+) of (\w+)`, text: "order 42 of tea", match: true, captures: []string{"42", "tea"}},
		{name: "empty text never matches", pattern: `.*`, text: "", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewTextMatcher(tt.pattern)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			match, err := m.Match(textMsg(tt.text))
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if (match != nil) != tt.match {
				t.Fatalf("expected match=%v, got %v", tt.match, match)
			}
			if match == nil {
				return
			}
			if len(match.Captures) != len(tt.captures) {
				t.Fatalf("expected captures %v, got %v", tt.captures, match.Captures)
			}
			for i := range tt.captures {
				if match.Captures[i] != tt.captures[i] {
					t.Errorf("capture %d: expected %q, got %q", i, tt.captures[i], match.Captures[i])
				}
			}
		})
	}
}

func TestTextMatcherRejectsBadPattern(t *testing.T) {
	if _, err := NewTextMatcher(`([`); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestCaptureMatcher(t *testing.T) {
	tests := []struct {
		name    string
		after   string
		before  string
		text    string
		capture string
	}{
		{
			name:    "after and before bounds",
			after:   "call me",
			before:  "please",
			text:    "ok call me bb, please",
			capture: "bb",
		},
		{
			name:    "after only keeps internal punctuation",
			after:   "call me",
			text:    "ok call me bb, please",
			capture: "bb, please",
		},
		{
			name:  "missing after",
			after: "call me",
			text:  "nothing here",
		},
		{
			name:   "missing before",
			after:  "call me",
			before: "thanks",
			text:   "call me bb please",
		},
		{
			name:  "empty fragment",
			after: "call me",
			text:  "call me ?!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CaptureMatcher{After: tt.after, Before: tt.before}
			match, err := m.Match(textMsg(tt.text))
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if tt.capture == "" {
				if match != nil {
					t.Fatalf("expected no match, got %v", match.Captures)
				}
				return
			}
			if match == nil {
				t.Fatal("expected a match")
			}
			if len(match.Captures) != 1 || match.Captures[0] != tt.capture {
				t.Errorf("expected capture %q, got %v", tt.capture, match.Captures)
			}
		})
	}
}

func TestServerMatcher(t *testing.T) {
	user := chat.NewUser("hook", "hook")
	msg := chat.NewServerMessage(user, map[string]interface{}{
		"event": "deploy",
		"env":   "prod",
	})

	m := ServerMatcher{Data: map[string]interface{}{"event": "deploy"}}
	if match, _ := m.Match(msg); match == nil {
		t.Error("expected subset keys to match")
	}

	m = ServerMatcher{Data: map[string]interface{}{"event": "rollback"}}
	if match, _ := m.Match(msg); match != nil {
		t.Error("expected value mismatch to decline")
	}

	if match, _ := m.Match(textMsg("deploy")); match != nil {
		t.Error("expected non-server message to decline")
	}
}

func TestNLUMatcher(t *testing.T) {
	msg := textMsg("book a flight")
	msg.NLU = nlu.Result{
		"intents": nlu.Set{{ID: "booking", Score: 0.92}},
	}

	m := NLUMatcher{Section: "intents", Criteria: nlu.Criteria{ID: "booking", MinScore: 0.8}}
	if match, _ := m.Match(msg); match == nil {
		t.Error("expected intent to match")
	}

	m = NLUMatcher{Section: "intents", Criteria: nlu.Criteria{ID: "booking", MinScore: 0.95}}
	if match, _ := m.Match(msg); match != nil {
		t.Error("expected score below threshold to decline")
	}

	m = NLUMatcher{Criteria: nlu.Criteria{ID: "booking"}}
	if match, _ := m.Match(msg); match == nil {
		t.Error("expected any-section lookup to match")
	}

	bare := textMsg("no nlu attached")
	m = NLUMatcher{Criteria: nlu.Criteria{ID: "booking"}}
	if match, _ := m.Match(bare); match != nil {
		t.Error("expected message without NLU to decline")
	}
}

func TestCatchAllMatcher(t *testing.T) {
	wrapped := chat.NewCatchAllMessage(textMsg("lost"))
	if match, _ := (CatchAllMatcher{}).Match(wrapped); match == nil {
		t.Error("expected catch-all message to match")
	}
	if match, _ := (CatchAllMatcher{}).Match(textMsg("found")); match != nil {
		t.Error("expected plain message to decline")
	}
}
