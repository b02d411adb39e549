package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"google.golang.org/genai"
)

// Provider converts a JSON Schema document into the response schema Gemini
// constrains generation with. Only the keywords the documents in this
// package use are carried over.
func Provider(document string) (*genai.Schema, error) {
	var node map[string]any
	if err := json.Unmarshal([]byte(document), &node); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	return providerNode(node)
}

// MustProvider is Provider for the built-in documents
func MustProvider(document string) *genai.Schema {
	s, err := Provider(document)
	if err != nil {
		panic(err)
	}
	return s
}

func providerNode(node map[string]any) (*genai.Schema, error) {
	out := &genai.Schema{}

	switch t, _ := node["type"].(string); t {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported schema type %q", t)
	}

	if properties, ok := node["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(properties))
		names := make([]string, 0, len(properties))
		for name, raw := range properties {
			child, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q is not a schema", name)
			}
			converted, err := providerNode(child)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = converted
			names = append(names, name)
		}
		sort.Strings(names)
		out.PropertyOrdering = names
	}

	if items, ok := node["items"].(map[string]any); ok {
		converted, err := providerNode(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = converted
	}

	if required, ok := node["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}

	if v, ok := node["minimum"].(float64); ok {
		out.Minimum = &v
	}
	if v, ok := node["maximum"].(float64); ok {
		out.Maximum = &v
	}

	return out, nil
}
