package projector

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownProjector is returned when an ID is not in the model.
var ErrUnknownProjector = errors.New("unknown projector")

// Model is an ordered list of projectors. Order is significant: later projectors
// composite on top of earlier ones. Model is not safe for concurrent use.
type Model struct {
	items  []Projector
	nextID ID
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{nextID: 1}
}

// Len returns the number of projectors.
func (m *Model) Len() int {
	return len(m.items)
}

// Add appends a projector and returns its assigned ID.
// The projector's current transform counts as unchanged.
func (m *Model) Add(p Projector) ID {
	p.ID = m.nextID
	m.nextID++
	if p.Name == "" {
		p.Name = fmt.Sprintf("Projector: %d", len(m.items)+1)
	}
	p.last = p.Transform
	m.items = append(m.items, p)
	return p.ID
}

func (m *Model) index(id ID) (int, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrUnknownProjector, id)
}

// Get returns a copy of the projector with the given ID.
func (m *Model) Get(id ID) (Projector, error) {
	i, err := m.index(id)
	if err != nil {
		return Projector{}, err
	}
	return m.items[i], nil
}

// Remove deletes the projector with the given ID.
func (m *Model) Remove(id ID) error {
	i, err := m.index(id)
	if err != nil {
		return err
	}
	m.items = slices.Delete(m.items, i, i+1)
	return nil
}

// Move relocates a projector to position to in the list, clamped to the list bounds.
func (m *Model) Move(id ID, to int) error {
	i, err := m.index(id)
	if err != nil {
		return err
	}
	to = max(0, min(to, len(m.items)-1))
	p := m.items[i]
	m.items = slices.Delete(m.items, i, i+1)
	m.items = slices.Insert(m.items, to, p)
	return nil
}

// Update replaces the editable fields of a projector, keeping its ID and recorded transform.
func (m *Model) Update(p Projector) error {
	i, err := m.index(p.ID)
	if err != nil {
		return err
	}
	p.last = m.items[i].last
	m.items[i] = p
	return nil
}

// SetTransform updates a projector's transform and reports whether it differs
// from the last recorded transform.
func (m *Model) SetTransform(id ID, t Transform) (bool, error) {
	i, err := m.index(id)
	if err != nil {
		return false, err
	}
	m.items[i].Transform = t
	return m.items[i].Moved(), nil
}

// FirstMoved returns the first projector, in list order, whose transform changed
// since it was last recorded.
func (m *Model) FirstMoved() (ID, bool) {
	for i := range m.items {
		if m.items[i].Moved() {
			return m.items[i].ID, true
		}
	}
	return 0, false
}

// MarkClean records every projector's current transform as its last known one.
func (m *Model) MarkClean() {
	for i := range m.items {
		m.items[i].last = m.items[i].Transform
	}
}

// Clear removes all projectors. IDs are not reused.
func (m *Model) Clear() {
	m.items = nil
}

// Snapshot returns a copy of the list in order. Brushes are shared; they are immutable.
func (m *Model) Snapshot() []Projector {
	out := make([]Projector, len(m.items))
	copy(out, m.items)
	return out
}
