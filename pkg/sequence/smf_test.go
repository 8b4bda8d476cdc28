package sequence

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/beatbox/pkg/grid"
)

func TestSMFRoundTrip(t *testing.T) {
	m := testMatrix()

	data, err := EncodeSMF(Compile(m), BaselineBPM)
	if err != nil {
		t.Fatalf("EncodeSMF() error = %v", err)
	}
	if string(data[:4]) != "MThd" {
		t.Fatalf("EncodeSMF() header = %q, want MThd", data[:4])
	}

	got, err := DecodeSMF(data)
	if err != nil {
		t.Fatalf("DecodeSMF() error = %v", err)
	}
	if got != m {
		t.Errorf("DecodeSMF() =\n%s\nwant\n%s", got, m)
	}
}

func TestReadSMFQuantizes(t *testing.T) {
	// 480 PPQ, so a 16th note step is 120 ticks
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var track smf.Track
	track.Add(0, midi.NoteOn(9, 42, 90))    // Closed Hi-Hat, step 0
	track.Add(10, midi.NoteOff(9, 42))      // tick 10
	track.Add(230, midi.NoteOn(9, 38, 90))  // tick 240, Acoustic Snare, step 2
	track.Add(0, midi.NoteOn(9, 36, 90))    // no matching instrument
	track.Add(1680, midi.NoteOn(9, 35, 90)) // tick 1920, one bar, wraps to step 0
	track.Close(0)
	if err := s.Add(track); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	got, err := ReadSMF(&buf)
	if err != nil {
		t.Fatalf("ReadSMF() error = %v", err)
	}

	var want grid.Matrix
	want[1][0] = true
	want[3][2] = true
	want[0][0] = true
	if got != want {
		t.Errorf("ReadSMF() =\n%s\nwant\n%s", got, want)
	}
}

func TestReadSMFInvalid(t *testing.T) {
	if _, err := DecodeSMF([]byte("not a midi file")); err == nil {
		t.Error("DecodeSMF() should fail on garbage")
	}
}

func TestWriteSMFRejectsInvalidTimeline(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSMF(&buf, Timeline{{Kind: NoteOn, Channel: 20}}, BaselineBPM); err == nil {
		t.Error("WriteSMF() should reject an invalid timeline")
	}
}
