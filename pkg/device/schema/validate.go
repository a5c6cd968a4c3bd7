package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/urmzd/homepanel/pkg/device"
)

// Validator checks status patches against a JSON Schema per device type.
// Schemas compile on first use and stay cached for the validator's lifetime.
type Validator struct {
	schemas map[string]json.RawMessage

	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema // by device type
}

// NewValidator creates a Validator over the built-in device type schemas.
func NewValidator() *Validator {
	return NewValidatorWith(typeSchemas)
}

// NewValidatorWith creates a Validator over custom per-type schemas. Types
// missing from schemas accept any patch.
func NewValidatorWith(schemas map[string]json.RawMessage) *Validator {
	return &Validator{
		schemas:  schemas,
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// ValidatePatch checks a status patch against the schema registered for the
// device type. Failures wrap device.ErrValidation.
func (v *Validator) ValidatePatch(deviceType string, patch device.Status) error {
	compiled, err := v.schemaFor(deviceType)
	if err != nil {
		return err
	}
	if compiled == nil {
		return nil
	}

	normalized, err := patch.Normalize()
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	if err := compiled.Validate(map[string]any(normalized)); err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return nil
}

// schemaFor returns the compiled schema for deviceType, or nil when the type
// is unconstrained.
func (v *Validator) schemaFor(deviceType string) (*jsonschema.Schema, error) {
	doc := v.schemas[deviceType]
	if len(doc) == 0 || string(doc) == "{}" || string(doc) == "null" {
		return nil, nil
	}

	v.mu.RLock()
	if s, ok := v.compiled[deviceType]; ok {
		v.mu.RUnlock()
		return s, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := v.compiled[deviceType]; ok {
		return s, nil
	}

	var schemaMap any
	if err := json.Unmarshal(doc, &schemaMap); err != nil {
		return nil, fmt.Errorf("unmarshalling %s schema: %w", deviceType, err)
	}

	url := deviceType + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, schemaMap); err != nil {
		return nil, fmt.Errorf("adding %s schema: %w", deviceType, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", deviceType, err)
	}

	v.compiled[deviceType] = compiled
	return compiled, nil
}
