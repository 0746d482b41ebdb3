package checkout

import "sync"

// Flow tracks whether a checkout is outstanding for one cart. It moves from
// idle to submitting on Begin and back on End, whatever the outcome.
type Flow struct {
	mu         sync.Mutex
	submitting bool
}

// Begin moves the flow into submitting. It fails with ErrSubmissionInFlight
// if a submission is already outstanding.
func (f *Flow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmissionInFlight
	}
	f.submitting = true
	return nil
}

// End returns the flow to idle.
func (f *Flow) End() {
	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
}

// InFlight reports whether a submission is outstanding.
func (f *Flow) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}
