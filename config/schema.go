package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// reflectSchema builds the JSON Schema for config files from the Config struct.
// Nested sections reject unknown keys; the top level stays open for
// extensions such as logging.
func reflectSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		ExpandedStruct:             true,
		DoNotReference:             true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
	}

	schema := r.Reflect(&Config{})
	schema.Title = "claudemon configuration"
	schema.Description = "Schema for config.yml and .claudemon.yml."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.AdditionalProperties = nil
	return schema
}

// GenerateSchema returns the configuration schema as indented JSON.
func GenerateSchema() ([]byte, error) {
	return json.MarshalIndent(reflectSchema(), "", "  ")
}
