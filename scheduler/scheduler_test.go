// ABOUTME: Tests for turn scheduler determinism, no-repeat, mention primacy, and forced-speaker behavior.
package scheduler

import "testing"

func TestDeterminism(t *testing.T) {
	roster := []string{"a", "b", "c"}
	inputs := []struct {
		content string
		force   string
	}{
		{"", "a"},
		{"no mentions here", ""},
		{"what about @b", ""},
		{"", ""},
	}

	run := func() []string {
		s := New(roster, 42, 1)
		var seq []string
		for _, in := range inputs {
			seq = append(seq, s.SelectNext(in.content, in.force))
		}
		return seq
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("length mismatch")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("turn %d: %q != %q", i, first[i], second[i])
		}
	}
}

func TestNoRepeatWithCooldown(t *testing.T) {
	roster := []string{"a", "b", "c"}
	s := New(roster, 7, 1)
	last := ""
	for i := 0; i < 50; i++ {
		next := s.SelectNext("", "")
		if next == last {
			t.Fatalf("turn %d repeated speaker %q consecutively", i, next)
		}
		last = next
	}
}

func TestMentionPrimacy(t *testing.T) {
	roster := []string{"a", "b", "c"}
	s := New(roster, 1, 1)
	s.SelectNext("", "a") // turn 1, force a
	next := s.SelectNext("hey @c, what do you think?", "")
	if next != "c" {
		t.Errorf("SelectNext() = %q, want c (explicit mention)", next)
	}
}

func TestForceBypassesRules(t *testing.T) {
	roster := []string{"a", "b", "c"}
	s := New(roster, 1, 1)
	s.SelectNext("", "a")
	next := s.SelectNext("", "a") // force the same speaker twice in a row
	if next != "a" {
		t.Errorf("forced selection should bypass cooldown, got %q", next)
	}
}

func TestInvalidForceFallsThrough(t *testing.T) {
	roster := []string{"a", "b", "c"}
	s := New(roster, 1, 1)
	next := s.SelectNext("", "nonexistent")
	found := false
	for _, id := range roster {
		if id == next {
			found = true
		}
	}
	if !found {
		t.Errorf("SelectNext() with invalid force = %q, want roster member", next)
	}
}

func TestSmallRosterFallback(t *testing.T) {
	roster := []string{"a"}
	s := New(roster, 1, 3)
	for i := 0; i < 5; i++ {
		next := s.SelectNext("", "")
		if next != "a" {
			t.Fatalf("single-agent roster must always select a, got %q", next)
		}
	}
}

func TestHumanAliasMention(t *testing.T) {
	roster := []string{"a", "b", HumanSlot}
	s := New(roster, 3, 1)
	s.SelectNext("", "a")
	next := s.SelectNext("@Human, what do you think?", "")
	if next != HumanSlot {
		t.Errorf("SelectNext() = %q, want human", next)
	}
}

func TestReplaySelectionMatchesLiveSelection(t *testing.T) {
	roster := []string{"a", "b", "c"}
	live := New(roster, 42, 1)
	var seq []string
	for i := 0; i < 5; i++ {
		seq = append(seq, live.SelectNext("", ""))
	}

	replayed := New(roster, 42, 1)
	for _, id := range seq {
		replayed.ReplaySelection(id)
	}

	for _, id := range roster {
		if live.TurnCount(id) != replayed.TurnCount(id) {
			t.Errorf("turn count for %q: live=%d replayed=%d", id, live.TurnCount(id), replayed.TurnCount(id))
		}
	}
	liveRecent := live.RecentSpeakers()
	replayedRecent := replayed.RecentSpeakers()
	if len(liveRecent) != len(replayedRecent) {
		t.Fatalf("recent speakers length mismatch")
	}
	for i := range liveRecent {
		if liveRecent[i] != replayedRecent[i] {
			t.Errorf("recent speaker %d: live=%q replayed=%q", i, liveRecent[i], replayedRecent[i])
		}
	}
}
