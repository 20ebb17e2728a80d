package changelog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	EntityStructure    = "structure"
	EntityPersonalList = "personal_list"
)

// StructureSchema схема карточки базы/кемпинга в справочнике
const StructureSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"kind": {"type": "string", "enum": ["casa", "terreno", "casa+terreno"]},
		"region": {"type": "string"},
		"province": {"type": "string"},
		"capacity": {"type": "integer", "minimum": 0},
		"coordinates": {
			"type": "object",
			"required": ["lat", "lng"],
			"properties": {
				"lat": {"type": "number", "minimum": -90, "maximum": 90},
				"lng": {"type": "number", "minimum": -180, "maximum": 180}
			}
		},
		"services": {"type": "array", "items": {"type": "string"}}
	}
}`

// PersonalListSchema схема личного списка сохраненных баз
const PersonalListSchema = `{
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {"type": "array", "items": {"type": "string"}}
	}
}`

// Validator проверяет мутации перед записью в журнал
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator создает валидатор со схемами сущностей справочника
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}
	if err := v.Register(EntityStructure, StructureSchema); err != nil {
		return nil, err
	}
	if err := v.Register(EntityPersonalList, PersonalListSchema); err != nil {
		return nil, err
	}
	return v, nil
}

// Register добавляет JSON Schema для типа сущности
func (v *Validator) Register(entityType, schema string) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://scoutsync.local/schemas/%s.schema.json", entityType)
	if err := c.AddResource(schemaURL, strings.NewReader(schema)); err != nil {
		return fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("schema compile failed: %w", err)
	}
	v.schemas[entityType] = compiled
	return nil
}

// Validate проверяет одну мутацию
func (v *Validator) Validate(entityType, entityID string, op Operation, payload json.RawMessage) error {
	if strings.TrimSpace(entityType) == "" {
		return &ValidationError{Field: "entity_type", Reason: "must not be empty"}
	}
	if strings.TrimSpace(entityID) == "" {
		return &ValidationError{Field: "entity_id", Reason: "must not be empty"}
	}
	if !op.Valid() {
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", op)}
	}

	if op == OpDelete {
		if len(bytes.TrimSpace(payload)) > 0 && string(bytes.TrimSpace(payload)) != "null" {
			return &ValidationError{Field: "payload", Reason: "delete must not carry a payload"}
		}
		return nil
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &ValidationError{Field: "payload", Reason: "must be a JSON object"}
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Field: "payload", Reason: "malformed JSON"}
	}

	schema, ok := v.schemas[entityType]
	if !ok {
		return nil
	}
	if err := schema.Validate(doc); err != nil {
		return &ValidationError{Field: "payload", Reason: err.Error()}
	}

	return nil
}
