package adapter

import (
	"testing"

	"github.com/mullbot/mull/pkg/chat"
)

func TestReplyStrings(t *testing.T) {
	tests := []struct {
		name   string
		roomID string
		userID string
		user   string
		lines  []string
		want   []string
	}{
		{
			name:   "shared room gets mention prefix",
			roomID: "general",
			userID: "u1",
			user:   "sam",
			lines:  []string{"hello", "again"},
			want:   []string{"@sam hello", "@sam again"},
		},
		{
			name:   "direct thread passes through",
			roomID: "dm-u1",
			userID: "u1",
			user:   "sam",
			lines:  []string{"hello"},
			want:   []string{"hello"},
		},
		{
			name:   "missing name falls back to id",
			roomID: "general",
			userID: "u1",
			lines:  []string{"hello"},
			want:   []string{"@u1 hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := &chat.Room{ID: tt.roomID}
			user := chat.NewUser(tt.userID, tt.user).InRoom(room)
			e := chat.NewEnvelope().ToUser(user).Via(chat.MethodReply).Write(tt.lines...)

			got := ReplyStrings(e)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("line %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestMatchParams(t *testing.T) {
	record := map[string]interface{}{"kind": "order", "count": 2.0}

	if !MatchParams(record, map[string]interface{}{"kind": "order"}) {
		t.Error("subset should match")
	}
	if !MatchParams(record, nil) {
		t.Error("empty params should match everything")
	}
	if MatchParams(record, map[string]interface{}{"kind": "refund"}) {
		t.Error("value mismatch should decline")
	}
	if MatchParams(record, map[string]interface{}{"missing": true}) {
		t.Error("missing key should decline")
	}
}
