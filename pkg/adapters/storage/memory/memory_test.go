package memory

import (
	"context"
	"testing"
)

func TestKeepAndFind(t *testing.T) {
	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	records := []map[string]interface{}{
		{"kind": "order", "item": "tea"},
		{"kind": "order", "item": "coffee"},
		{"kind": "refund", "item": "tea"},
	}
	for _, r := range records {
		if err := s.Keep("events", r); err != nil {
			t.Fatalf("keep: %v", err)
		}
	}

	orders, err := s.Find("events", map[string]interface{}{"kind": "order"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0]["item"] != "tea" {
		t.Error("insertion order should be preserved")
	}

	one, err := s.FindOne("events", map[string]interface{}{"item": "coffee"})
	if err != nil || one == nil || one["kind"] != "order" {
		t.Errorf("findone wrong: %v, %v", one, err)
	}

	missing, err := s.FindOne("events", map[string]interface{}{"item": "juice"})
	if err != nil || missing != nil {
		t.Error("missing record should return nil, nil")
	}
}

func TestKeepSerialisesStructs(t *testing.T) {
	s := New()
	type order struct {
		Kind string `json:"kind"`
		Item string `json:"item"`
	}
	if err := s.Keep("orders", order{Kind: "order", Item: "tea"}); err != nil {
		t.Fatalf("keep: %v", err)
	}
	got, err := s.FindOne("orders", map[string]interface{}{"kind": "order"})
	if err != nil || got == nil {
		t.Fatalf("findone: %v, %v", got, err)
	}
	if got["item"] != "tea" {
		t.Errorf("struct should round-trip through json tags: %v", got)
	}
}

func TestLose(t *testing.T) {
	s := New()
	s.Keep("events", map[string]interface{}{"kind": "a"})
	s.Keep("events", map[string]interface{}{"kind": "b"})

	if err := s.Lose("events", map[string]interface{}{"kind": "a"}); err != nil {
		t.Fatalf("lose: %v", err)
	}
	remaining, _ := s.Find("events", nil)
	if len(remaining) != 1 || remaining[0]["kind"] != "b" {
		t.Errorf("expected only b, got %v", remaining)
	}
}

func TestMemoryRoundTripIsIsolated(t *testing.T) {
	s := New()
	original := map[string]interface{}{
		"brain": map[string]interface{}{"counter": 1.0},
	}
	if err := s.SaveMemory(original); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's map must not leak into storage.
	original["brain"].(map[string]interface{})["counter"] = 99.0

	loaded, err := s.LoadMemory()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	brain := loaded["brain"].(map[string]interface{})
	if brain["counter"] != 1.0 {
		t.Errorf("snapshot should be deep-copied, got %v", brain["counter"])
	}

	// Mutating the loaded copy must not affect the next load.
	brain["counter"] = 50.0
	reloaded, _ := s.LoadMemory()
	if reloaded["brain"].(map[string]interface{})["counter"] != 1.0 {
		t.Error("loaded copy should be isolated from storage")
	}
}
