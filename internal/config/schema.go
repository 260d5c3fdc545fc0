// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package config

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the generated config schema.
const SchemaID = "https://gatehouse.dev/schemas/config.schema.json"

// GenerateSchema generates a JSON Schema from the Config struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Gatehouse configuration"
	schema.Description = "Schema for gatehouse config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("operation", "parse schema").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("config.schema.json", doc); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("operation", "add resource").Wrap(err)
	}
	sch, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("operation", "compile").Wrap(err)
	}
	return sch, nil
})

// ValidateYAML checks a config file's YAML against the generated schema.
// It catches misspelled keys and wrong value types; Config.Validate covers
// the rest after loading.
func ValidateYAML(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return oops.Code("CONFIG_INVALID").Errorf("config file is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "parse yaml").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "validate schema").Wrap(err)
	}
	return nil
}

// toJSONTypes normalises yaml.v3 output to the types the validator accepts.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = toJSONTypes(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = toJSONTypes(v)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
