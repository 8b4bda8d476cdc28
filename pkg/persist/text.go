package persist

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/instrument"
)

// textPattern is the YAML document written by the Text codec
type textPattern struct {
	Instruments []textRow `yaml:"instruments"`
}

type textRow struct {
	Name  string `yaml:"name"`
	Steps string `yaml:"steps"`
}

// Text is a hand editable YAML pattern. Steps are written as x (on) and
// . (off); the characters | and space may be used to group beats.
//
//	instruments:
//	  - name: Bass Drum
//	    steps: x...|x...|x...|x...
type Text struct{}

func (Text) Name() string   { return "YAML pattern" }
func (Text) Format() Format { return FormatText }

func (Text) Encode(m grid.Matrix) ([]byte, error) {
	p := textPattern{Instruments: make([]textRow, 0, grid.Rows)}
	for i, s := range instrument.All() {
		p.Instruments = append(p.Instruments, textRow{Name: s.Name, Steps: m.Row(i)})
	}
	return yaml.Marshal(&p)
}

// Decode reads a YAML pattern. Instruments missing from the document stay
// off; unknown instruments and malformed step strings are errors.
func (Text) Decode(data []byte) (grid.Matrix, error) {
	var m grid.Matrix

	var p textPattern
	if err := yaml.Unmarshal(data, &p); err != nil {
		return m, corrupt("invalid YAML pattern: %v", err)
	}
	if p.Instruments == nil {
		return m, corrupt("YAML pattern has no instruments list")
	}

	for _, row := range p.Instruments {
		slot, ok := instrument.ByName(row.Name)
		if !ok {
			return m, corrupt("unknown instrument %q", row.Name)
		}
		steps := strings.NewReplacer("|", "", " ", "").Replace(row.Steps)
		if len(steps) != grid.Steps {
			return m, corrupt("instrument %q has %d steps, want %d", row.Name, len(steps), grid.Steps)
		}
		for j, c := range steps {
			switch c {
			case 'x', 'X':
				m[slot.Index][j] = true
			case '.', '-':
			default:
				return m, corrupt("instrument %q step %d: unexpected %q", row.Name, j+1, c)
			}
		}
	}
	return m, nil
}
