// Package formstate holds the values and validation errors of one form for
// one page visit.
package formstate

import (
	"maps"
	"sort"
	"sync"
)

// State maps field names to their current values and errors.
type State struct {
	mu          sync.RWMutex
	defaults    map[string]any
	values      map[string]any
	fieldErrors map[string][]string
	formErrors  []string
}

// New seeds a State with defaults. Reset returns the State to them.
func New(defaults map[string]any) *State {
	s := &State{defaults: maps.Clone(defaults)}
	if s.defaults == nil {
		s.defaults = make(map[string]any)
	}
	s.values = maps.Clone(s.defaults)
	s.fieldErrors = make(map[string][]string)
	return s
}

// Get returns the raw value stored for name.
func (s *State) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set stores value under name.
func (s *State) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Snapshot returns a copy of all current values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Reset restores the seeded defaults and clears every error.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = maps.Clone(s.defaults)
	s.fieldErrors = make(map[string][]string)
	s.formErrors = nil
}

// SetFieldErrors replaces the errors of one field.
func (s *State) SetFieldErrors(name string, msgs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(msgs) == 0 {
		delete(s.fieldErrors, name)
		return
	}
	s.fieldErrors[name] = append([]string(nil), msgs...)
}

// FieldErrors returns the errors recorded for name.
func (s *State) FieldErrors(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.fieldErrors[name]...)
}

// InvalidFields lists the names of fields with errors, sorted.
func (s *State) InvalidFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.fieldErrors))
	for name := range s.fieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddFormError records a message that belongs to the form rather than a field.
func (s *State) AddFormError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formErrors = append(s.formErrors, msg)
}

func (s *State) FormErrors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.formErrors...)
}

// ClearErrors drops field and form errors but keeps values.
func (s *State) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldErrors = make(map[string][]string)
	s.formErrors = nil
}

// Valid reports whether no errors are recorded.
func (s *State) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fieldErrors) == 0 && len(s.formErrors) == 0
}
