// Package persist saves and loads beatbox grids.
//
// The default format is the Java object stream written by the classic Swing
// BeatBox for its boolean[256] checkbox state, so existing saved grids keep
// loading.
// A YAML text pattern and Standard MIDI Files are supported as well.
package persist

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/james-see/beatbox/pkg/grid"
)

// ErrCorruptPersistedState is returned when saved data cannot be decoded
// into exactly one full grid
var ErrCorruptPersistedState = errors.New("corrupt persisted state")

// Format represents a file format
type Format string

const (
	FormatJava    Format = "ser"
	FormatText    Format = "yml"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// Codec encodes and decodes a grid in one format
type Codec interface {
	Name() string
	Format() Format
	Encode(m grid.Matrix) ([]byte, error)
	Decode(data []byte) (grid.Matrix, error)
}

// Default is the codec used by the save and load actions
var Default Codec = JavaStream{}

var codecs = map[Format]Codec{
	FormatJava: JavaStream{},
	FormatText: Text{},
	FormatMIDI: MIDI{},
}

// ForFormat returns the codec for a format
func ForFormat(f Format) (Codec, error) {
	c, ok := codecs[f]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", f)
	}
	return c, nil
}

// Formats lists the supported formats
func Formats() []Format {
	return []Format{FormatJava, FormatText, FormatMIDI}
}

// ParseFormat maps a user supplied name or extension to a format
func ParseFormat(name string) Format {
	return DetectFormat("x." + strings.TrimPrefix(strings.ToLower(name), "."))
}

// DetectFormat detects the format of a file based on its extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".ser", ".beatbox":
		return FormatJava
	case ".yml", ".yaml":
		return FormatText
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects the format from the leading bytes
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 2 {
		return FormatUnknown
	}

	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	if data[0] == streamMagic>>8 && data[1] == streamMagic&0xFF {
		return FormatJava
	}

	return FormatText
}

// Encode encodes a grid with the default codec
func Encode(m grid.Matrix) ([]byte, error) {
	return Default.Encode(m)
}

// Decode detects the format of data and decodes it. Every failure wraps
// ErrCorruptPersistedState.
func Decode(data []byte) (grid.Matrix, error) {
	f := DetectFormatFromContent(data)
	if f == FormatUnknown {
		return grid.Matrix{}, fmt.Errorf("%w: %d bytes is too short", ErrCorruptPersistedState, len(data))
	}
	c, err := ForFormat(f)
	if err != nil {
		return grid.Matrix{}, fmt.Errorf("%w: %v", ErrCorruptPersistedState, err)
	}
	return c.Decode(data)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptPersistedState, fmt.Sprintf(format, args...))
}
