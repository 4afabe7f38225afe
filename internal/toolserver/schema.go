package toolserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateArguments checks args against the tool's input schema. A tool
// without a schema, or with one that does not compile, accepts anything:
// the server stays the final judge.
func (t *Tool) ValidateArguments(args map[string]any) error {
	t.compile()
	if t.schema == nil {
		return nil
	}
	var v any = map[string]any{}
	if args != nil {
		// round-trip so Go values (ints, typed slices) become JSON values
		data, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode arguments: %w", err)
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode arguments: %w", err)
		}
	}
	return t.schema.Validate(v)
}

// DeclaresArgument reports whether key is one of the schema's top-level
// properties. A schema that lists no properties declares everything, unless
// it sets additionalProperties to false.
func (t *Tool) DeclaresArgument(key string) bool {
	t.compile()
	if len(t.props) == 0 {
		return !t.closed
	}
	_, ok := t.props[key]
	return ok
}

func (t *Tool) compile() {
	t.schemaOnce.Do(func() {
		if len(t.InputSchema) == 0 {
			return
		}

		var shape struct {
			Properties           map[string]json.RawMessage `json:"properties"`
			AdditionalProperties json.RawMessage            `json:"additionalProperties"`
		}
		if err := json.Unmarshal(t.InputSchema, &shape); err == nil {
			t.closed = bytes.Equal(bytes.TrimSpace(shape.AdditionalProperties), []byte("false"))
			t.props = make(map[string]struct{}, len(shape.Properties))
			for name := range shape.Properties {
				t.props[name] = struct{}{}
			}
		}

		res := t.Name + ".input.json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(res, bytes.NewReader(t.InputSchema)); err != nil {
			t.schemaErr = fmt.Errorf("add schema: %w", err)
		} else {
			t.schema, t.schemaErr = compiler.Compile(res)
		}
		if t.schemaErr != nil {
			slog.Debug("tool input schema not usable, skipping validation", "tool", t.Name, "error", t.schemaErr)
			t.schema = nil
		}
	})
}
