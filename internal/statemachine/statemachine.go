// Package statemachine provides a small table driven state machine shared by
// every entity that moves through a lifecycle.
package statemachine

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// Any can be used as the source of a transition that is legal from every state.
const Any = "*"

// Transition is a named event moving an entity from one of From into To.
type Transition[S ~string] struct {
	Event string
	From  []S
	To    S
}

// Machine holds the legal transitions for one entity type.
type Machine[S ~string] struct {
	name        string
	initial     S
	transitions map[string]Transition[S]
	terminal    map[S]bool
}

// New creates a machine. Transitions with an empty From list or a From list
// containing Any are legal from every state.
func New[S ~string](name string, initial S, transitions []Transition[S], terminal ...S) Machine[S] {
	m := Machine[S]{
		name:        name,
		initial:     initial,
		transitions: make(map[string]Transition[S], len(transitions)),
		terminal:    make(map[S]bool, len(terminal)),
	}

	for _, t := range transitions {
		m.transitions[t.Event] = t
	}

	for _, s := range terminal {
		m.terminal[s] = true
	}

	return m
}

// Initial returns the initial state.
func (m Machine[S]) Initial() S {
	return m.initial
}

// IsTerminal reports whether no further transitions are allowed from s.
func (m Machine[S]) IsTerminal(s S) bool {
	return m.terminal[s]
}

// Can reports whether event is legal from the current state.
func (m Machine[S]) Can(current S, event string) bool {
	_, err := m.Fire(current, event)
	return err == nil
}

// Fire returns the state reached by applying event to current.
func (m Machine[S]) Fire(current S, event string) (S, error) {
	if current == "" {
		current = m.initial
	}

	t, ok := m.transitions[event]
	if !ok {
		return current, fmt.Errorf("%w: %s has no event %q", ErrInvalidTransition, m.name, event)
	}

	if m.terminal[current] {
		return current, fmt.Errorf("%w: %s is in terminal state %q", ErrInvalidTransition, m.name, current)
	}

	if len(t.From) == 0 {
		return t.To, nil
	}

	for _, from := range t.From {
		if from == current || string(from) == Any {
			return t.To, nil
		}
	}

	return current, fmt.Errorf("%w: %s cannot %s from %q", ErrInvalidTransition, m.name, event, current)
}
