package fsrs

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStateString(t *testing.T) {
	want := map[State]string{
		New:        "New",
		Learning:   "Learning",
		Review:     "Review",
		Relearning: "Relearning",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("%d.String() = %s, want %s", int(s), s.String(), name)
		}
	}
	if State(42).String() != "State(42)" {
		t.Errorf("State(42).String() = %s", State(42).String())
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	for _, s := range []State{New, Learning, Review, Relearning} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %s: %v", s, err)
		}
		var back State
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != s {
			t.Errorf("round trip %s came back as %s", s, back)
		}
	}

	var bad State
	if err := json.Unmarshal([]byte(`"Cramming"`), &bad); err == nil {
		t.Error("unmarshal of unknown state name should fail")
	}
}

func TestNewMemoryState(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := NewMemoryState(now)

	if m.State != New {
		t.Errorf("state = %s, want New", m.State)
	}
	if m.Stability != 0 || m.Difficulty != 0 {
		t.Errorf("stability/difficulty = %v/%v, want zeros", m.Stability, m.Difficulty)
	}
	if m.Reps != 0 || m.Lapses != 0 || m.ElapsedDays != 0 || m.ScheduledDays != 0 {
		t.Error("counters should start at zero")
	}
	if !m.Due.Equal(now) {
		t.Errorf("due = %v, want %v", m.Due, now)
	}
	if m.LastReview != nil {
		t.Errorf("last review = %v, want nil", m.LastReview)
	}
}
