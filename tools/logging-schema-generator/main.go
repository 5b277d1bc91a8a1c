package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/grovetools/claudemon/logging"
)

func main() {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&logging.Config{})
	schema.Title = "claudemon logging configuration"
	schema.Description = "Schema for the 'logging' section of config.yml."
	// Every logging key is optional.
	schema.Required = nil

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("Error marshaling schema: %v", err)
	}

	if err := os.MkdirAll("schema", 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	outputPath := filepath.Join("schema", "logging.schema.json")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Generated logging schema at %s", outputPath)
}
