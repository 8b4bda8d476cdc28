package persist

import (
	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/sequence"
)

// MIDI stores a grid as the Standard MIDI File of its compiled timeline.
// Decoding quantizes any drum file onto the grid, so foreign files load too.
type MIDI struct{}

func (MIDI) Name() string   { return "Standard MIDI File" }
func (MIDI) Format() Format { return FormatMIDI }

func (MIDI) Encode(m grid.Matrix) ([]byte, error) {
	return sequence.EncodeSMF(sequence.Compile(m), sequence.BaselineBPM)
}

func (MIDI) Decode(data []byte) (grid.Matrix, error) {
	m, err := sequence.DecodeSMF(data)
	if err != nil {
		return m, corrupt("%v", err)
	}
	return m, nil
}
