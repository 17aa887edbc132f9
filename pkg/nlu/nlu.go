// Package nlu normalises provider-shaped natural-language-understanding
// payloads into a uniform accessor. Providers disagree wildly about shape;
// branches should not have to care which provider produced a result, so
// everything funnels through Result and its Match predicates.
package nlu

import "strings"

// Item is one scored element of an NLU section: an intent, an entity,
// a detected language, a sentiment reading.
type Item struct {
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Value string                 `json:"value,omitempty"`
	Score float64                `json:"score,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Criteria selects items. Zero fields are ignored; set fields must all hold.
type Criteria struct {
	ID       string
	Name     string
	Value    string
	MinScore float64
}

// matches reports whether the item satisfies every set criteria field.
func (i Item) matches(c Criteria) bool {
	if c.ID != "" && !strings.EqualFold(i.ID, c.ID) {
		return false
	}
	if c.Name != "" && !strings.EqualFold(i.Name, c.Name) {
		return false
	}
	if c.Value != "" && !strings.EqualFold(i.Value, c.Value) {
		return false
	}
	if c.MinScore > 0 && i.Score < c.MinScore {
		return false
	}
	return true
}

// Set is an ordered collection of items for one section.
type Set []Item

// Match returns the items satisfying the criteria.
func (s Set) Match(c Criteria) Set {
	var out Set
	for _, item := range s {
		if item.matches(c) {
			out = append(out, item)
		}
	}
	return out
}

// Any reports whether at least one item satisfies the criteria.
func (s Set) Any(c Criteria) bool { return len(s.Match(c)) > 0 }

// Result holds the normalised sections of a provider response.
// Well-known sections are "intents", "entities", "language", "sentiment";
// providers may add their own.
type Result map[string]Set

// Intents returns the intents section.
func (r Result) Intents() Set { return r["intents"] }

// Entities returns the entities section.
func (r Result) Entities() Set { return r["entities"] }

// Language returns the language section.
func (r Result) Language() Set { return r["language"] }

// Sentiment returns the sentiment section.
func (r Result) Sentiment() Set { return r["sentiment"] }

// Empty reports whether the result carries no items in any section.
func (r Result) Empty() bool {
	for _, set := range r {
		if len(set) > 0 {
			return false
		}
	}
	return true
}

// Match returns true if any section has an item satisfying the criteria.
func (r Result) Match(c Criteria) bool {
	for _, set := range r {
		if set.Any(c) {
			return true
		}
	}
	return false
}

// Normalise converts a raw provider payload (section name -> loosely typed
// list) into a Result. Unknown shapes are skipped rather than failing the
// understand stage. An empty map means "no result".
func Normalise(raw map[string]interface{}) Result {
	result := make(Result, len(raw))
	for section, v := range raw {
		items, ok := v.([]interface{})
		if !ok {
			// Single object sections (e.g. sentiment) normalise to one item.
			if obj, ok := v.(map[string]interface{}); ok {
				result[section] = Set{itemFrom(obj)}
			}
			continue
		}
		set := make(Set, 0, len(items))
		for _, entry := range items {
			obj, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			set = append(set, itemFrom(obj))
		}
		if len(set) > 0 {
			result[section] = set
		}
	}
	return result
}

func itemFrom(obj map[string]interface{}) Item {
	item := Item{Meta: make(map[string]interface{})}
	for k, v := range obj {
		switch strings.ToLower(k) {
		case "id":
			item.ID, _ = v.(string)
		case "name", "label":
			item.Name, _ = v.(string)
		case "value", "text":
			item.Value, _ = v.(string)
		case "score", "confidence":
			switch n := v.(type) {
			case float64:
				item.Score = n
			case int:
				item.Score = float64(n)
			}
		default:
			item.Meta[k] = v
		}
	}
	if len(item.Meta) == 0 {
		item.Meta = nil
	}
	return item
}
