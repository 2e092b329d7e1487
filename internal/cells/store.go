package cells

import (
	"errors"
	"fmt"
)

// #region errors
var (
	// ErrAllCellsFull is returned when a delivery finds no empty cell to charge.
	ErrAllCellsFull = errors.New("all cells are full of charge")
	// ErrNoChargedCell is returned when a rocket or resource needs a charged cell and none exists.
	ErrNoChargedCell = errors.New("no charged cell")
	// ErrRocketPresent is returned when a rocket is built while one is already stored.
	ErrRocketPresent = errors.New("rocket already present")
)

// #endregion errors

// #region store
// Store owns the participant's energy cells and its single rocket slot.
// Cells are addressed by index; every operation picks the lowest eligible index.
type Store struct {
	cells  []bool // true = charged
	rocket bool
}

// NewStore creates a store with capacity empty cells and no rocket.
func NewStore(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("new cell store: capacity %d must be positive", capacity)
	}
	return &Store{cells: make([]bool, capacity)}, nil
}

// Capacity returns the fixed number of cells.
func (s *Store) Capacity() int {
	return len(s.cells)
}

// ChargedCount returns how many cells currently hold charge.
func (s *Store) ChargedCount() int {
	n := 0
	for _, c := range s.cells {
		if c {
			n++
		}
	}
	return n
}

// HasRocket reports whether the rocket slot is occupied.
func (s *Store) HasRocket() bool {
	return s.rocket
}

// Cells returns a copy of the charge state of every cell, by index.
func (s *Store) Cells() []bool {
	out := make([]bool, len(s.cells))
	copy(out, s.cells)
	return out
}

// #endregion store

// #region charge
// Charge fills the lowest-index empty cell and returns its index.
func (s *Store) Charge() (int, error) {
	for i, c := range s.cells {
		if !c {
			s.cells[i] = true
			return i, nil
		}
	}
	return -1, ErrAllCellsFull
}

// Discharge empties the lowest-index charged cell and returns its index.
func (s *Store) Discharge() (int, error) {
	i := s.firstCharged()
	if i < 0 {
		return -1, ErrNoChargedCell
	}
	s.cells[i] = false
	return i, nil
}

// #endregion charge

// #region rocket
// BuildRocket spends the lowest-index charged cell on a rocket.
// It never replaces an existing rocket.
func (s *Store) BuildRocket() (int, error) {
	if s.rocket {
		return -1, ErrRocketPresent
	}
	i := s.firstCharged()
	if i < 0 {
		return -1, fmt.Errorf("build rocket: %w", ErrNoChargedCell)
	}
	s.cells[i] = false
	s.rocket = true
	return i, nil
}

// ConsumeRocket fires the stored rocket at a threat.
// Returns true when a rocket was present (threat deflected).
func (s *Store) ConsumeRocket() bool {
	if !s.rocket {
		return false
	}
	s.rocket = false
	return true
}

// #endregion rocket

func (s *Store) firstCharged() int {
	for i, c := range s.cells {
		if c {
			return i
		}
	}
	return -1
}
