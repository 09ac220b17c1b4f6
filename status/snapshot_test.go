package status

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestSnapshot_NilIsEmpty(t *testing.T) {
	var s *Snapshot

	if s.Len() != 0 {
		t.Errorf("Len() = %v, want 0", s.Len())
	}
	if names := s.Names(); len(names) != 0 {
		t.Errorf("Names() = %v, want empty", names)
	}
	if entries := s.Entries(); len(entries) != 0 {
		t.Errorf("Entries() = %v, want empty", entries)
	}
	if !s.Equal(Empty()) {
		t.Error("nil snapshot should equal Empty()")
	}
}

func TestSnapshot_NamesAndEntriesSorted(t *testing.T) {
	s := build(t,
		SetState{Name: "zeta", State: StateUpToDate},
		SetState{Name: "alpha", State: StateError},
		SetState{Name: "mid", State: StateUpdating},
	)

	want := []string{"alpha", "mid", "zeta"}
	if got := s.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	entries := s.Entries()
	if entries[0].Name != "alpha" || entries[0].State != StateError {
		t.Errorf("Entries()[0] = %+v, want alpha/error", entries[0])
	}
}

func TestSnapshot_Pending(t *testing.T) {
	s := build(t,
		SetState{Name: "a", State: StateUpToDate},
		SetState{Name: "b", State: StateUpdateAvailable},
		SetState{Name: "c", State: StateError},
		SetAcknowledged{Name: "a", Acknowledged: true},
	)

	want := []string{"b", "c"}
	if got := s.Pending(); !slices.Equal(got, want) {
		t.Errorf("Pending() = %v, want %v", got, want)
	}
}

func TestSnapshot_Equal(t *testing.T) {
	a := build(t, SetState{Name: "foo", State: StateUpToDate})
	b := build(t, SetState{Name: "foo", State: StateUpToDate})
	c := build(t, SetState{Name: "foo", State: StateError})
	d := Apply(a, SetAcknowledged{Name: "foo", Acknowledged: true})

	if !a.Equal(b) {
		t.Error("a.Equal(b) = false, want true")
	}
	if a.Equal(c) {
		t.Error("a.Equal(c) = true, want false (different state)")
	}
	if a.Equal(d) {
		t.Error("a.Equal(d) = true, want false (different acknowledgement)")
	}
	if a.Equal(nil) {
		t.Error("a.Equal(nil) = true, want false")
	}
}

func TestSnapshot_Without(t *testing.T) {
	s := build(t,
		SetState{Name: "foo", State: StateUpToDate},
		SetState{Name: "bar", State: StateError},
	)

	if got := s.Without("missing"); got != s {
		t.Error("Without(missing) returned a new snapshot, want identical")
	}

	got := s.Without("foo")
	if _, ok := got.Get("foo"); ok {
		t.Error("Without(foo) still contains foo")
	}
	if _, ok := s.Get("foo"); !ok {
		t.Error("Without(foo) modified the receiver")
	}
	if got.Len() != 1 {
		t.Errorf("Len() = %v, want 1", got.Len())
	}
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	s := build(t,
		SetState{Name: "foo", State: StateUpdateAvailable},
		SetAcknowledged{Name: "foo", Acknowledged: true},
	)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	want := `{"foo":{"state":"update available","acknowledged":true}}`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}

	data, err = json.Marshal(Empty())
	if err != nil {
		t.Fatalf("json.Marshal(Empty()) error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("json.Marshal(Empty()) = %s, want {}", data)
	}
}

func TestParseUpdateState(t *testing.T) {
	for _, st := range States() {
		got, err := ParseUpdateState(st.String())
		if err != nil {
			t.Errorf("ParseUpdateState(%q) error = %v", st, err)
		}
		if got != st {
			t.Errorf("ParseUpdateState(%q) = %v, want %v", st, got, st)
		}
	}

	if _, err := ParseUpdateState("bogus"); err == nil {
		t.Error("ParseUpdateState(bogus) expected error, got nil")
	}
	if len(States()) != 8 {
		t.Errorf("len(States()) = %v, want 8", len(States()))
	}
}

func TestStates_ReturnsCopy(t *testing.T) {
	states := States()
	states[0] = "tampered"

	if States()[0] != StateCheckingForUpdates {
		t.Errorf("States()[0] = %v after modifying a previous result", States()[0])
	}
	if UpdateState("tampered").Valid() {
		t.Error("Valid() = true for a value written into a States() result")
	}
	if !StateCheckingForUpdates.Valid() {
		t.Error("Valid() = false for StateCheckingForUpdates")
	}
}
