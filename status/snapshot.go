package status

import (
	"encoding/json"
	"maps"
	"slices"
)

// Snapshot is an immutable point-in-time mapping from extension name to
// [UpdateStatus].
//
// A nil *Snapshot is valid and is the empty snapshot, so the zero value of
// any field holding one needs no initialisation. Once built, a Snapshot is
// never modified; [Apply] and [Snapshot.Without] return new values and leave
// the receiver untouched. Snapshots may therefore be shared between
// goroutines without locking.
type Snapshot struct {
	entries map[string]UpdateStatus
}

// Entry pairs an extension name with its status.
type Entry struct {
	Name string `json:"name"`
	UpdateStatus
}

// Empty returns a non-nil snapshot with no entries.
func Empty() *Snapshot {
	return &Snapshot{entries: map[string]UpdateStatus{}}
}

// Get returns the status recorded for name. The boolean is false when no
// status has been recorded, which is distinct from [StateUnknown].
func (s *Snapshot) Get(name string) (UpdateStatus, bool) {
	if s == nil {
		return UpdateStatus{}, false
	}
	st, ok := s.entries[name]
	return st, ok
}

// Len returns the number of tracked extensions.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Names returns the tracked extension names in sorted order.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.entries))
}

// Entries returns every entry sorted by name.
// The returned slice is a copy; modifying it does not affect the snapshot.
func (s *Snapshot) Entries() []Entry {
	names := s.Names()
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		out = append(out, Entry{Name: name, UpdateStatus: s.entries[name]})
	}
	return out
}

// Pending returns, in sorted order, the names whose current state has not
// been acknowledged yet.
func (s *Snapshot) Pending() []string {
	var out []string
	for _, name := range s.Names() {
		if !s.entries[name].Acknowledged {
			out = append(out, name)
		}
	}
	return out
}

// Equal reports whether s and other hold the same entries.
// A nil snapshot equals an empty one.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == other {
		return true
	}
	if s.Len() != other.Len() {
		return false
	}
	for name, st := range s.all() {
		if got, ok := other.Get(name); !ok || got != st {
			return false
		}
	}
	return true
}

// Without returns a snapshot with name removed. When name has no entry the
// receiver itself is returned.
//
// Apply never deletes entries; Without exists for hosts that stop tracking
// an extension, for example after it is uninstalled.
func (s *Snapshot) Without(name string) *Snapshot {
	if _, ok := s.Get(name); !ok {
		return s
	}
	entries := maps.Clone(s.entries)
	delete(entries, name)
	return &Snapshot{entries: entries}
}

// MarshalJSON encodes the snapshot as an object keyed by extension name.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.all())
}

// with returns a copy of s with name set to st.
func (s *Snapshot) with(name string, st UpdateStatus) *Snapshot {
	entries := make(map[string]UpdateStatus, s.Len()+1)
	maps.Copy(entries, s.all())
	entries[name] = st
	return &Snapshot{entries: entries}
}

// all returns the backing map, never nil. Callers must not modify it.
func (s *Snapshot) all() map[string]UpdateStatus {
	if s == nil || s.entries == nil {
		return map[string]UpdateStatus{}
	}
	return s.entries
}
