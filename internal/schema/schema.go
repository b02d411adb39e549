// Package schema validates inference responses against JSON Schema documents
// before they are decoded into typed stage outputs.
package schema

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"applyforge/internal/errors"
)

// Validator checks a JSON body against one compiled schema
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile builds a Validator from a JSON Schema document. name is used as
// the Stage of any SchemaViolation it reports.
func Compile(name, document string) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", name, err)
	}
	return &Validator{name: name, schema: s}, nil
}

// MustCompile is Compile for the built-in schemas, which are constants.
func MustCompile(name, document string) *Validator {
	v, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns nil when body conforms, or a *errors.SchemaViolation
// listing the missing required fields and every other violation.
func (v *Validator) Validate(body []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &errors.SchemaViolation{
			Stage:      v.name,
			Violations: []string{fmt.Sprintf("body is not valid JSON: %v", err)},
		}
	}
	if result.Valid() {
		return nil
	}

	violation := &errors.SchemaViolation{Stage: v.name}
	for _, resultErr := range result.Errors() {
		if resultErr.Type() == "required" {
			violation.Missing = append(violation.Missing, requiredPath(resultErr))
			continue
		}
		violation.Violations = append(violation.Violations, resultErr.String())
	}
	sort.Strings(violation.Missing)
	return violation
}

func requiredPath(resultErr gojsonschema.ResultError) string {
	property, _ := resultErr.Details()["property"].(string)
	field := resultErr.Field()
	if field == "" || field == "(root)" {
		return property
	}
	return field + "." + property
}
