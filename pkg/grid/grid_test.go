package grid

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestToggle(t *testing.T) {
	g := New()

	if err := g.Toggle(3, 7); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !g.IsActive(3, 7) {
		t.Error("cell (3,7) should be on after one toggle")
	}

	if err := g.Toggle(3, 7); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if g.IsActive(3, 7) {
		t.Error("cell (3,7) should be off after two toggles")
	}
}

func TestSet(t *testing.T) {
	g := New()
	if err := g.Set(15, 15, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !g.IsActive(15, 15) {
		t.Error("cell (15,15) should be on")
	}
	if err := g.Set(15, 15, false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if g.IsActive(15, 15) {
		t.Error("cell (15,15) should be off")
	}
}

func TestOutOfRange(t *testing.T) {
	tests := []struct {
		name             string
		instrument, step int
	}{
		{"negative instrument", -1, 0},
		{"negative step", 0, -1},
		{"instrument too large", Rows, 0},
		{"step too large", 0, Steps},
	}

	g := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Toggle(tt.instrument, tt.step); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Toggle() error = %v, want ErrOutOfRange", err)
			}
			if err := g.Set(tt.instrument, tt.step, true); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Set() error = %v, want ErrOutOfRange", err)
			}
			if g.IsActive(tt.instrument, tt.step) {
				t.Error("IsActive() should be false out of range")
			}
		})
	}
}

func TestSnapshotLayout(t *testing.T) {
	g := New()
	_ = g.Set(0, 1, true)
	_ = g.Set(2, 0, true)
	_ = g.Set(15, 15, true)

	cells := g.Snapshot()
	if len(cells) != Cells {
		t.Fatalf("Snapshot() length = %d, want %d", len(cells), Cells)
	}

	want := map[int]bool{1: true, 32: true, 255: true}
	for i, on := range cells {
		if on != want[i] {
			t.Errorf("cells[%d] = %v, want %v", i, on, want[i])
		}
	}
}

func TestRestore(t *testing.T) {
	cells := make([]bool, Cells)
	for i := range cells {
		cells[i] = i%3 == 0
	}

	g := New()
	if err := g.Restore(cells); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	for i := 0; i < Rows; i++ {
		for j := 0; j < Steps; j++ {
			if g.IsActive(i, j) != cells[i*16+j] {
				t.Errorf("cell (%d,%d) = %v, want %v", i, j, g.IsActive(i, j), cells[i*16+j])
			}
		}
	}
}

func TestRestoreInvalidSize(t *testing.T) {
	for _, n := range []int{0, 255, 257, 512} {
		g := New()
		_ = g.Set(4, 4, true)
		before := g.Matrix()

		err := g.Restore(make([]bool, n))
		if !errors.Is(err, ErrInvalidStateSize) {
			t.Errorf("Restore(%d cells) error = %v, want ErrInvalidStateSize", n, err)
		}
		if g.Matrix() != before {
			t.Errorf("Restore(%d cells) modified the grid", n)
		}
	}
}

func TestMatrixIsCopy(t *testing.T) {
	g := New()
	m := g.Matrix()
	m[0][0] = true
	if g.IsActive(0, 0) {
		t.Error("mutating a Matrix copy changed the grid")
	}
}

func TestClearAndActiveCount(t *testing.T) {
	g := New()
	_ = g.Set(1, 1, true)
	_ = g.Set(2, 2, true)
	if n := g.ActiveCount(); n != 2 {
		t.Errorf("ActiveCount() = %d, want 2", n)
	}
	g.Clear()
	if n := g.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount() after Clear = %d, want 0", n)
	}
}

func TestMatrixString(t *testing.T) {
	var m Matrix
	m[0][0] = true
	m[0][4] = true

	out := m.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != Rows {
		t.Fatalf("String() has %d lines, want %d", len(lines), Rows)
	}
	if !strings.HasPrefix(lines[0], "Bass Drum") {
		t.Errorf("line 0 = %q, want Bass Drum prefix", lines[0])
	}
	if !strings.HasSuffix(lines[0], "|x...|x...|....|....|") {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestConcurrentAccess(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < Rows; i++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			for j := 0; j < Steps; j++ {
				_ = g.Toggle(row, j)
				_ = g.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	if n := g.ActiveCount(); n != Cells {
		t.Errorf("ActiveCount() = %d, want %d", n, Cells)
	}
}
