package catalogs

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Structural schemas for the content files. Deliberately loose on optional
// fields; the loaders enforce the semantic rules (unique ids, tier order).
const (
	schemaItems = `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["id", "name", "kind"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"name": {"type": "string", "minLength": 1},
				"kind": {"enum": ["fish", "consumable", "material", "chest"]},
				"rarity_tier": {"type": "integer", "minimum": 0},
				"value": {"type": "integer", "minimum": 0},
				"base_cost": {"type": "integer", "minimum": 0}
			}
		}
	}`

	schemaBiomes = `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["tier", "name", "rarities"],
			"properties": {
				"tier": {"type": "integer", "minimum": 1},
				"name": {"type": "string", "minLength": 1},
				"gold_mult": {"type": "number", "minimum": 0},
				"xp_mult": {"type": "number", "minimum": 0},
				"rarities": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"required": ["name", "weight"],
						"properties": {
							"name": {"type": "string", "minLength": 1},
							"weight": {"type": "number", "exclusiveMinimum": 0},
							"value_min": {"type": "integer", "minimum": 0},
							"value_max": {"type": "integer", "minimum": 0},
							"xp": {"type": "integer", "minimum": 0}
						}
					}
				}
			}
		}
	}`

	schemaRecipes = `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["id", "inputs"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"inputs": {
					"type": "array",
					"minItems": 1,
					"items": {
						"type": "object",
						"required": ["material", "count"],
						"properties": {
							"material": {"type": "string", "minLength": 1},
							"count": {"type": "integer", "minimum": 1}
						}
					}
				}
			}
		}
	}`

	schemaUpgrades = `{
		"type": "object",
		"properties": {
			"pole": {"$ref": "#/$defs/levels"},
			"lure": {"$ref": "#/$defs/levels"},
			"luck": {"$ref": "#/$defs/levels"},
			"inventory": {"$ref": "#/$defs/levels"}
		},
		"$defs": {
			"levels": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["level", "cost"],
					"properties": {
						"level": {"type": "integer", "minimum": 1},
						"cost": {"type": "integer", "minimum": 0},
						"bonus": {"type": "number", "minimum": 0}
					}
				}
			}
		}
	}`

	schemaSkins = `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["id", "name"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"name": {"type": "string", "minLength": 1},
				"cost": {"type": "integer", "minimum": 0}
			}
		}
	}`

	schemaOverrides = `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"items": {"type": "array"},
			"biomes": {"type": "array"},
			"recipes": {"type": "array"},
			"upgrades": {"type": "object"},
			"skins": {"type": "array"}
		}
	}`
)

func validateJSON(raw []byte, schema, name string) error {
	sch, err := jsonschema.CompileString(name, schema)
	if err != nil {
		return fmt.Errorf("%s: compile schema: %w", name, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
