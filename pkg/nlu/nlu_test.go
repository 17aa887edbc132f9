package nlu

import "testing"

func TestNormalise(t *testing.T) {
	raw := map[string]interface{}{
		"intents": []interface{}{
			map[string]interface{}{"id": "greet", "score": 0.95},
			map[string]interface{}{"id": "farewell", "confidence": 0.4},
		},
		"sentiment": map[string]interface{}{"label": "positive", "score": 0.8},
		"entities": []interface{}{
			map[string]interface{}{"id": "city", "value": "Lisbon", "source": "ner"},
		},
		"garbage": "not a list",
	}

	result := Normalise(raw)
	if len(result.Intents()) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(result.Intents()))
	}
	if result.Intents()[0].ID != "greet" || result.Intents()[0].Score != 0.95 {
		t.Errorf("first intent wrong: %+v", result.Intents()[0])
	}
	if result.Intents()[1].Score != 0.4 {
		t.Error("confidence should normalise to score")
	}
	if len(result.Sentiment()) != 1 || result.Sentiment()[0].Name != "positive" {
		t.Errorf("single-object section should normalise: %+v", result.Sentiment())
	}
	entity := result.Entities()[0]
	if entity.Value != "Lisbon" {
		t.Errorf("entity value wrong: %+v", entity)
	}
	if entity.Meta["source"] != "ner" {
		t.Error("unknown keys should land in meta")
	}
	if _, ok := result["garbage"]; ok {
		t.Error("unparseable sections should be dropped")
	}
}

func TestCriteriaMatching(t *testing.T) {
	set := Set{
		{ID: "Greet", Score: 0.9},
		{ID: "farewell", Score: 0.2},
	}

	tests := []struct {
		name     string
		criteria Criteria
		want     int
	}{
		{name: "id case insensitive", criteria: Criteria{ID: "greet"}, want: 1},
		{name: "min score filters", criteria: Criteria{MinScore: 0.5}, want: 1},
		{name: "no fields matches all", criteria: Criteria{}, want: 2},
		{name: "combined", criteria: Criteria{ID: "farewell", MinScore: 0.5}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(set.Match(tt.criteria)); got != tt.want {
				t.Errorf("expected %d matches, got %d", tt.want, got)
			}
		})
	}
}

func TestResultPredicates(t *testing.T) {
	empty := Result{"intents": Set{}}
	if !empty.Empty() {
		t.Error("result with empty sections should report empty")
	}

	r := Result{"intents": Set{{ID: "x", Score: 1}}}
	if r.Empty() {
		t.Error("populated result reports empty")
	}
	if !r.Match(Criteria{ID: "x"}) {
		t.Error("cross-section match failed")
	}
	if r.Match(Criteria{ID: "y"}) {
		t.Error("matched a missing id")
	}
}
