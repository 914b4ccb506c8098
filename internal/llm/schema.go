package llm

// BuildDimensionsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every field is optional; absent measurements default to zero.
func BuildDimensionsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"height": measureProp(),
			"width":  measureProp(),
			"length": measureProp(),
			"weight": measureProp(),
			"source": map[string]any{"type": "string"},
		},
	}
}

func measureProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0}
}
