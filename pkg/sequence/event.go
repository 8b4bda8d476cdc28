// Package sequence compiles a beatbox grid into a timeline of MIDI trigger
// events and reads and writes Standard MIDI Files.
package sequence

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Timing constants
const (
	TicksPerQuarter = 4
	BaselineBPM     = 120.0
)

// Kind is the type of a trigger event
type Kind uint8

const (
	NoteOn Kind = iota
	NoteOff
	ControlChange
	ProgramChange
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "NoteOn"
	case NoteOff:
		return "NoteOff"
	case ControlChange:
		return "ControlChange"
	case ProgramChange:
		return "ProgramChange"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ErrInvalidEvent is returned for events that cannot be expressed as MIDI
var ErrInvalidEvent = errors.New("invalid event")

// Event is a timestamped instruction for the playback backend
type Event struct {
	Tick    int64
	Kind    Kind
	Channel uint8 // 0-15
	Key     uint8 // note for NoteOn/NoteOff, controller for ControlChange
	Value   uint8 // velocity, controller value, or program number
}

// Message converts the event to a MIDI channel message
func (e Event) Message() (midi.Message, error) {
	if e.Tick < 0 {
		return nil, fmt.Errorf("%w: negative tick %d", ErrInvalidEvent, e.Tick)
	}
	if e.Channel > 15 {
		return nil, fmt.Errorf("%w: channel %d", ErrInvalidEvent, e.Channel)
	}
	if e.Key > 127 || e.Value > 127 {
		return nil, fmt.Errorf("%w: data bytes %d/%d out of range", ErrInvalidEvent, e.Key, e.Value)
	}

	switch e.Kind {
	case NoteOn:
		return midi.NoteOn(e.Channel, e.Key, e.Value), nil
	case NoteOff:
		return midi.NoteOffVelocity(e.Channel, e.Key, e.Value), nil
	case ControlChange:
		return midi.ControlChange(e.Channel, e.Key, e.Value), nil
	case ProgramChange:
		return midi.ProgramChange(e.Channel, e.Value), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidEvent, e.Kind)
	}
}

func (e Event) String() string {
	return fmt.Sprintf("%3d %-13s ch=%d key=%d value=%d", e.Tick, e.Kind, e.Channel, e.Key, e.Value)
}

// Timeline is one loop iteration of events, ordered by tick
type Timeline []Event

// Length returns the tick of the last event, which is also the loop length
func (t Timeline) Length() int64 {
	var n int64
	for _, e := range t {
		if e.Tick > n {
			n = e.Tick
		}
	}
	return n
}

// Validate checks that every event converts to MIDI and ticks never go backwards
func (t Timeline) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty timeline", ErrInvalidEvent)
	}
	var last int64
	for i, e := range t {
		if _, err := e.Message(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if e.Tick < last {
			return fmt.Errorf("%w: event %d at tick %d after tick %d", ErrInvalidEvent, i, e.Tick, last)
		}
		last = e.Tick
	}
	return nil
}

// Messages groups the timeline into MIDI messages per tick. The result has
// Length()+1 entries.
func (t Timeline) Messages() ([][]midi.Message, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	out := make([][]midi.Message, t.Length()+1)
	for _, e := range t {
		msg, _ := e.Message()
		out[e.Tick] = append(out[e.Tick], msg)
	}
	return out, nil
}

// Count returns the number of events of the given kind
func (t Timeline) Count(k Kind) int {
	n := 0
	for _, e := range t {
		if e.Kind == k {
			n++
		}
	}
	return n
}
