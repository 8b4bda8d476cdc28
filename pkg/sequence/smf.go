package sequence

import (
	"bytes"
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/instrument"
)

// WriteSMF renders a timeline as a single-track Standard MIDI File at the
// timeline's own resolution of 4 ticks per quarter note.
func WriteSMF(w io.Writer, tl Timeline, bpm float64) error {
	if bpm <= 0 {
		bpm = BaselineBPM
	}
	if err := tl.Validate(); err != nil {
		return err
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var track smf.Track

	// Tempo meta event (FF 51 03 tttttt)
	microsecondsPerBeat := uint32(60000000.0 / bpm)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))

	// 4/4 time signature
	track.Add(0, smf.Message([]byte{0xFF, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08}))

	var current int64
	for _, e := range tl {
		msg, err := e.Message()
		if err != nil {
			return err
		}
		track.Add(uint32(e.Tick-current), msg)
		current = e.Tick
	}
	track.Close(uint32(tl.Length() - current))

	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}

// EncodeSMF is WriteSMF into a byte slice
func EncodeSMF(tl Timeline, bpm float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSMF(&buf, tl, bpm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadSMF reads a MIDI file and quantizes its note starts onto the grid.
// Each note is placed on the row whose trigger matches its key, at the 16th
// note step it falls in, wrapping after one bar. Notes with no matching
// instrument are ignored.
func ReadSMF(r io.Reader) (grid.Matrix, error) {
	var m grid.Matrix

	s, err := smf.ReadFrom(r)
	if err != nil {
		return m, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	resolution := uint16(TicksPerQuarter)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		resolution = mt.Resolution()
	}
	ticksPerStep := int64(resolution) / 4
	if ticksPerStep == 0 {
		ticksPerStep = 1
	}

	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)

			var ch, key, vel uint8
			if !midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
				continue
			}
			slot, ok := instrument.ByTrigger(key)
			if !ok {
				continue
			}
			step := (tick / ticksPerStep) % grid.Steps
			m[slot.Index][step] = true
		}
	}

	return m, nil
}

// DecodeSMF is ReadSMF from a byte slice
func DecodeSMF(data []byte) (grid.Matrix, error) {
	return ReadSMF(bytes.NewReader(data))
}
