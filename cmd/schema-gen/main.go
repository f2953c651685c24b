// Schema Generator
//
// Generates JSON Schema files from the API payload types so clients can
// validate requests and task snapshots.
//
// Usage:
//
//	go run ./cmd/schema-gen [output-dir]
//
// Output:
//
//	schemas/tasks.json
//	schemas/tiles.json
//	schemas/system.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/geoscraper/tile-service/internal/handlers"
	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

func main() {
	outputDir := "schemas"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	groups := []SchemaGroup{
		{
			Name: "tasks",
			Types: []any{
				// Request types
				handlers.CreateTaskRequest{},
				handlers.UpdateTaskRequest{},
				handlers.MarkNonExistentRequest{},
				// Response types
				types.Task{},
				handlers.ListTasksResponse{},
				handlers.TaskTilesResponse{},
				handlers.ActionResponse{},
				handlers.ConflictResponse{},
				handlers.ErrorResponse{},
			},
			Output: "tasks.json",
		},
		{
			Name: "tiles",
			Types: []any{
				handlers.EstimateRequest{},
				tiles.Estimate{},
				types.TileCoord{},
				handlers.ListProvidersResponse{},
				providers.Provider{},
			},
			Output: "tiles.json",
		},
		{
			Name: "system",
			Types: []any{
				handlers.HealthResponse{},
				tilehttp.ProxyStatus{},
			},
			Output: "system.json",
		},
	}

	for _, group := range groups {
		schema := generateGroupSchema(group)
		outputPath := filepath.Join(outputDir, group.Output)

		if err := writeSchema(schema, outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", group.Output, err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outputPath)
	}

	fmt.Println("Schema generation complete!")
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: false,
		ExpandedStruct: false,
	}

	// Create combined definitions
	definitions := make(map[string]any)

	for _, t := range group.Types {
		schema := reflector.Reflect(t)

		// Get the type name from the schema
		typeName := ""
		if schema.Ref != "" {
			// Extract type name from $ref like "#/$defs/BasketItem"
			typeName = filepath.Base(schema.Ref)
		}

		// Add all definitions from this type's schema
		for name, def := range schema.Definitions {
			definitions[name] = def
		}

		// If there's a main type, add it to definitions too
		if typeName != "" && schema.Definitions[typeName] != nil {
			definitions[typeName] = schema.Definitions[typeName]
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://geoscraper.dev/schemas/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s API types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

// writeSchema writes a schema to a JSON file
func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
