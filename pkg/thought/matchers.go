package thought

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/nlu"
)

// ---------------------------------------------------------------------------
// Matcher variants
// ---------------------------------------------------------------------------

// TextMatcher matches message text against a case-insensitive regular
// expression. Submatch groups become the state conditions.
type TextMatcher struct {
	re *regexp.Regexp
}

// NewTextMatcher compiles a case-insensitive text matcher.
func NewTextMatcher(pattern string) (*TextMatcher, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("text matcher %q: %w", pattern, err)
	}
	return &TextMatcher{re: re}, nil
}

// MustTextMatcher compiles or panics; for static branch declarations.
func MustTextMatcher(pattern string) *TextMatcher {
	m, err := NewTextMatcher(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func (t *TextMatcher) Match(m chat.Message) (*Match, error) {
	text := m.Text()
	if text == "" {
		return nil, nil
	}
	groups := t.re.FindStringSubmatch(text)
	if groups == nil {
		return nil, nil
	}
	return &Match{Captures: groups[1:]}, nil
}

// CaptureMatcher extracts the fragment following After and, when Before
// is set, preceding it. Boundary whitespace and trailing punctuation at
// the Before edge are dropped; internal punctuation survives.
type CaptureMatcher struct {
	After  string
	Before string
}

func (c CaptureMatcher) Match(m chat.Message) (*Match, error) {
	text := m.Text()
	if text == "" || c.After == "" {
		return nil, nil
	}
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(c.After))
	if idx < 0 {
		return nil, nil
	}
	fragment := text[idx+len(c.After):]
	if c.Before != "" {
		end := strings.Index(strings.ToLower(fragment), strings.ToLower(c.Before))
		if end < 0 {
			return nil, nil
		}
		fragment = fragment[:end]
	}
	fragment = strings.TrimSpace(fragment)
	fragment = strings.TrimRight(fragment, ",.!?;:")
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, nil
	}
	return &Match{Captures: []string{fragment}}, nil
}

// ServerMatcher matches server messages whose data contains every given
// key with an equal value (shallow equality).
type ServerMatcher struct {
	Data map[string]interface{}
}

func (s ServerMatcher) Match(m chat.Message) (*Match, error) {
	server, ok := m.(*chat.ServerMessage)
	if !ok {
		return nil, nil
	}
	for k, want := range s.Data {
		got, ok := server.Data[k]
		if !ok || got != want {
			return nil, nil
		}
	}
	return &Match{}, nil
}

// NLUMatcher matches text messages whose attached NLU result satisfies
// the criteria. Section narrows matching to one result section; empty
// means any section.
type NLUMatcher struct {
	Section  string
	Criteria nlu.Criteria
}

func (n NLUMatcher) Match(m chat.Message) (*Match, error) {
	text, ok := m.(*chat.TextMessage)
	if !ok || text.NLU == nil {
		return nil, nil
	}
	if n.Section != "" {
		if !text.NLU[n.Section].Any(n.Criteria) {
			return nil, nil
		}
		return &Match{}, nil
	}
	if !text.NLU.Match(n.Criteria) {
		return nil, nil
	}
	return &Match{}, nil
}

// CatchAllMatcher matches any catch-all wrapped message.
type CatchAllMatcher struct{}

func (CatchAllMatcher) Match(m chat.Message) (*Match, error) {
	if _, ok := m.(*chat.CatchAllMessage); !ok {
		return nil, nil
	}
	return &Match{}, nil
}

// CustomMatcher adapts a predicate function into a Matcher.
type CustomMatcher func(m chat.Message) (*Match, error)

func (f CustomMatcher) Match(m chat.Message) (*Match, error) { return f(m) }
