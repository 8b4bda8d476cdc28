package sequence

import (
	"sort"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/instrument"
)

// Fixed values written by the compiler
const (
	DrumChannel  = 9 // General MIDI percussion, zero based
	Velocity     = 100
	MarkerTick   = grid.Steps
	MarkerCC     = 1
	MarkerValue  = 127
	MarkerChan   = 1
	PatchTick    = grid.Steps - 1
	PatchProgram = 1
)

// Compile turns a grid into the timeline for one loop iteration.
//
// Rows are visited in instrument order and steps in step order. Each active
// cell yields a NoteOn at its step and a NoteOff one tick later. Each row is
// followed by a controller marker at tick 16, and the whole timeline ends with
// a program change at tick 15. Events are then stably sorted by tick, so ties
// keep that emission order.
func Compile(m grid.Matrix) Timeline {
	tl := make(Timeline, 0, 2*m.ActiveCount()+grid.Rows+1)

	for i, slot := range instrument.All() {
		for j := 0; j < grid.Steps; j++ {
			if !m[i][j] {
				continue
			}
			tl = append(tl,
				Event{Tick: int64(j), Kind: NoteOn, Channel: DrumChannel, Key: slot.Trigger, Value: Velocity},
				Event{Tick: int64(j + 1), Kind: NoteOff, Channel: DrumChannel, Key: slot.Trigger, Value: Velocity},
			)
		}
		tl = append(tl, Event{Tick: MarkerTick, Kind: ControlChange, Channel: MarkerChan, Key: MarkerCC, Value: MarkerValue})
	}
	tl = append(tl, Event{Tick: PatchTick, Kind: ProgramChange, Channel: DrumChannel, Value: PatchProgram})

	sort.SliceStable(tl, func(a, b int) bool {
		return tl[a].Tick < tl[b].Tick
	})
	return tl
}
