package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce sync.Once
	schemas    map[ToolKind]*jsonschema.Schema
	schemaErr  error
)

func compiledSchemas() (map[ToolKind]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = make(map[ToolKind]*jsonschema.Schema, len(catalog))
		for _, spec := range catalog {
			raw, err := json.Marshal(spec.JSONSchema())
			if err != nil {
				schemaErr = fmt.Errorf("encode %s schema: %w", spec.Name, err)
				return
			}
			compiled, err := jsonschema.CompileString(spec.Name+".schema.json", string(raw))
			if err != nil {
				schemaErr = fmt.Errorf("compile %s schema: %w", spec.Name, err)
				return
			}
			schemas[spec.Kind] = compiled
		}
	})
	return schemas, schemaErr
}

// ValidateArguments checks args against the parameter schema of kind.
func ValidateArguments(kind ToolKind, args map[string]any) error {
	all, err := compiledSchemas()
	if err != nil {
		return err
	}

	// Round-trip so the validator only sees JSON-shaped values.
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}

	if err := all[kind].Validate(decoded); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return errors.New(validationSummary(verr))
		}
		return err
	}
	return nil
}

// validationSummary flattens a validation error tree into its leaf messages.
func validationSummary(verr *jsonschema.ValidationError) string {
	var leaves []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			msg := e.Message
			if loc := strings.TrimPrefix(e.InstanceLocation, "/"); loc != "" {
				msg = loc + ": " + msg
			}
			leaves = append(leaves, msg)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	sort.Strings(leaves)
	return strings.Join(leaves, "; ")
}
