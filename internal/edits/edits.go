// Package edits loads scripted row corrections and applies them to a result
// store through the same path interactive edits take.
package edits

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/invoice-cli/internal/model"
)

// Edit sets one field of one row to a raw user value. An empty Value clears
// the field.
type Edit struct {
	Group int
	Row   int
	Field model.Field
	Value string
}

// Target receives edits. *results.Store implements it.
type Target interface {
	SetField(groupIdx, rowIdx int, field model.Field, raw string) error
}

type script struct {
	Edits []struct {
		Group *int      `yaml:"group"`
		Row   *int      `yaml:"row"`
		Field string    `yaml:"field"`
		Value yaml.Node `yaml:"value"`
	} `yaml:"edits"`
}

// Parse decodes an edit script:
//
//	edits:
//	  - {group: 0, row: 0, field: price, value: "1200"}
//	  - {group: 0, row: 1, field: unit, value: ""}
//
// Scalar values are taken verbatim, so `value: 1200` and `value: "1200"`
// are equivalent; `value: null` clears like the empty string.
func Parse(data []byte) ([]Edit, error) {
	var s script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "edits: parse script")
	}

	out := make([]Edit, 0, len(s.Edits))
	for i, e := range s.Edits {
		if e.Group == nil || e.Row == nil {
			return nil, eris.Errorf("edits: entry %d: group and row are required", i)
		}
		field, ok := model.ParseField(e.Field)
		if !ok {
			return nil, eris.Errorf("edits: entry %d: unknown field %q", i, e.Field)
		}
		if e.Value.Kind == 0 {
			return nil, eris.Errorf("edits: entry %d: value is required", i)
		}
		if e.Value.Kind != yaml.ScalarNode {
			return nil, eris.Errorf("edits: entry %d: value must be a scalar", i)
		}

		raw := e.Value.Value
		if e.Value.ShortTag() == "!!null" {
			raw = ""
		}
		out = append(out, Edit{Group: *e.Group, Row: *e.Row, Field: field, Value: raw})
	}
	return out, nil
}

// LoadFile reads and parses an edit script from fs.
func LoadFile(fs afero.Fs, path string) ([]Edit, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, eris.Wrapf(err, "edits: read %s", path)
	}
	return Parse(data)
}

// Apply runs edits in order and stops at the first rejected one.
func Apply(t Target, edits []Edit) error {
	for i, e := range edits {
		if err := t.SetField(e.Group, e.Row, e.Field, e.Value); err != nil {
			return eris.Wrapf(err, "edits: entry %d", i)
		}
	}
	return nil
}
