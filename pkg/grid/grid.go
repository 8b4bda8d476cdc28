// Package grid holds the 16x16 on/off matrix edited by the user
package grid

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/james-see/beatbox/pkg/instrument"
)

// Grid dimensions
const (
	Rows  = instrument.Count
	Steps = 16
	Cells = Rows * Steps
)

var (
	// ErrInvalidStateSize is returned when a flat snapshot does not hold exactly Cells values
	ErrInvalidStateSize = errors.New("invalid grid state size")
	// ErrOutOfRange is returned for an instrument or step index outside the grid
	ErrOutOfRange = errors.New("cell out of range")
)

// Matrix is an immutable copy of the grid, indexed [instrument][step]
type Matrix [Rows][Steps]bool

// Index returns the flat, instrument-major index of a cell.
// Persisted grids depend on this layout.
func Index(instrument, step int) int {
	return instrument*Steps + step
}

// FromFlat builds a Matrix from values in flat index order
func FromFlat(cells []bool) (Matrix, error) {
	var m Matrix
	if len(cells) != Cells {
		return m, fmt.Errorf("%w: got %d cells, want %d", ErrInvalidStateSize, len(cells), Cells)
	}
	for i := 0; i < Rows; i++ {
		for j := 0; j < Steps; j++ {
			m[i][j] = cells[Index(i, j)]
		}
	}
	return m, nil
}

// Flat returns the cells in flat index order
func (m Matrix) Flat() []bool {
	cells := make([]bool, Cells)
	for i := 0; i < Rows; i++ {
		for j := 0; j < Steps; j++ {
			cells[Index(i, j)] = m[i][j]
		}
	}
	return cells
}

// ActiveCount counts the cells that are on
func (m Matrix) ActiveCount() int {
	n := 0
	for i := range m {
		for _, on := range m[i] {
			if on {
				n++
			}
		}
	}
	return n
}

// Row renders one instrument row as x (on) and . (off), grouped in beats
func (m Matrix) Row(instrument int) string {
	var b strings.Builder
	for j := 0; j < Steps; j++ {
		if j > 0 && j%4 == 0 {
			b.WriteByte('|')
		}
		if m[instrument][j] {
			b.WriteByte('x')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func (m Matrix) String() string {
	var b strings.Builder
	for i, s := range instrument.All() {
		fmt.Fprintf(&b, "%-15s |%s|\n", s.Name, m.Row(i))
	}
	return b.String()
}

// Grid is the mutable grid shared by the playback controller and the UI.
// It is safe for concurrent use.
type Grid struct {
	mu    sync.RWMutex
	cells Matrix
}

// New returns an all-off grid
func New() *Grid {
	return &Grid{}
}

func checkRange(instrument, step int) error {
	if instrument < 0 || instrument >= Rows || step < 0 || step >= Steps {
		return fmt.Errorf("%w: instrument %d step %d", ErrOutOfRange, instrument, step)
	}
	return nil
}

// Toggle flips one cell
func (g *Grid) Toggle(instrument, step int) error {
	if err := checkRange(instrument, step); err != nil {
		return err
	}
	g.mu.Lock()
	g.cells[instrument][step] = !g.cells[instrument][step]
	g.mu.Unlock()
	return nil
}

// Set sets one cell
func (g *Grid) Set(instrument, step int, active bool) error {
	if err := checkRange(instrument, step); err != nil {
		return err
	}
	g.mu.Lock()
	g.cells[instrument][step] = active
	g.mu.Unlock()
	return nil
}

// IsActive reports whether a cell is on. Out of range cells are off.
func (g *Grid) IsActive(instrument, step int) bool {
	if checkRange(instrument, step) != nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[instrument][step]
}

// Snapshot returns all cells in flat index order
func (g *Grid) Snapshot() []bool {
	return g.Matrix().Flat()
}

// Restore overwrites every cell from a flat snapshot. The grid is left
// untouched when the snapshot has the wrong size.
func (g *Grid) Restore(cells []bool) error {
	m, err := FromFlat(cells)
	if err != nil {
		return err
	}
	g.Replace(m)
	return nil
}

// Matrix returns a copy of the current cells
func (g *Grid) Matrix() Matrix {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells
}

// Replace overwrites every cell
func (g *Grid) Replace(m Matrix) {
	g.mu.Lock()
	g.cells = m
	g.mu.Unlock()
}

// Clear turns every cell off
func (g *Grid) Clear() {
	g.Replace(Matrix{})
}

// ActiveCount counts the cells that are on
func (g *Grid) ActiveCount() int {
	return g.Matrix().ActiveCount()
}
