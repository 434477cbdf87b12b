package tooldef

// Wire-schema builders shared between the LLM-facing tool definitions
// (Registry.Definitions) and the jsonschema.Schema each is compiled into
// for argument validation (Registry.Validate) — the same schema value
// serves both, so there is exactly one place each tool's argument shape
// is declared.

func objectSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// stringSchema allows any string, including empty — used for fields the
// domain treats as legitimately clearable (fs_write.content, fs_replace.new).
func stringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

// nonEmptyStringSchema rejects the empty string — used for fields that
// identify or address something (ids, notes, search targets).
func nonEmptyStringSchema() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

// pathStringSchema requires the managed:// or fs:// prefix every fs_*
// tool's path argument must carry.
func pathStringSchema() map[string]any {
	return map[string]any{"type": "string", "pattern": "^(managed://|fs://)"}
}

func enumString(values ...string) map[string]any {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return map[string]any{"type": "string", "enum": enum}
}
