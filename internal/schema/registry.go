package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema represents a JSON schema for one backend payload.
type Schema struct {
	Name   string // Payload name (e.g., "Status")
	Source string // JSON schema document
	Order  int    // Listing order
}

// registry holds every payload storyforge validates before decoding.
var registry = []Schema{
	{Name: "Status", Order: 1}, // GET /api/status
	{Name: "Story", Order: 2},  // GET /api/story
	{Name: "Config", Order: 3}, // GET /api/config
}

// All returns all schemas in listing order.
// Schemas are loaded from embedded .json files.
func All() ([]Schema, error) {
	schemas := make([]Schema, len(registry))
	copy(schemas, registry)

	for i := range schemas {
		content, err := schemaFS.ReadFile(filename(schemas[i].Name))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", schemas[i].Name, err)
		}
		schemas[i].Source = string(content)
	}

	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Order < schemas[j].Order
	})

	return schemas, nil
}

// Get returns a single schema by name.
func Get(name string) (*Schema, error) {
	for _, s := range registry {
		if s.Name == name {
			content, err := schemaFS.ReadFile(filename(s.Name))
			if err != nil {
				return nil, fmt.Errorf("failed to read schema %s: %w", s.Name, err)
			}
			return &Schema{
				Name:   s.Name,
				Source: string(content),
				Order:  s.Order,
			}, nil
		}
	}
	return nil, fmt.Errorf("schema not found: %s", name)
}

func filename(name string) string {
	return fmt.Sprintf("schemas/%s.json", strings.ToLower(name))
}
