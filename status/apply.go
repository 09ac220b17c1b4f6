package status

// Event is a request to change one extension's status.
//
// The set of events is closed: only [SetState] and [SetAcknowledged]
// implement it.
type Event interface {
	isEvent()
}

// SetState requests that Name's state become State.
type SetState struct {
	Name  string
	State UpdateState
}

// SetAcknowledged requests that Name's acknowledged flag become Acknowledged.
type SetAcknowledged struct {
	Name         string
	Acknowledged bool
}

func (SetState) isEvent()        {}
func (SetAcknowledged) isEvent() {}

// Apply returns the snapshot that results from applying ev to s.
//
// Apply is pure. It never modifies s, and it returns s itself whenever ev
// would not change anything:
//   - SetState for a name already in that state
//   - SetAcknowledged for a name with no entry
//   - SetAcknowledged for a name whose flag already has that value
//   - a nil or unrecognised event
//
// Any effective SetState stores the new state with Acknowledged reset to
// false, including for names that had no entry before.
func Apply(s *Snapshot, ev Event) *Snapshot {
	switch ev := ev.(type) {
	case SetState:
		if cur, ok := s.Get(ev.Name); ok && cur.State == ev.State {
			return s
		}
		return s.with(ev.Name, UpdateStatus{State: ev.State})

	case SetAcknowledged:
		cur, ok := s.Get(ev.Name)
		if !ok || cur.Acknowledged == ev.Acknowledged {
			return s
		}
		cur.Acknowledged = ev.Acknowledged
		return s.with(ev.Name, cur)

	default:
		return s
	}
}
