package masking

import "strings"

const maskToken = "****"

// MaskIdentifier redacts an identifier while keeping the last four
// characters for audit correlation.
func MaskIdentifier(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskJSON returns a copy of the input with string values masked. Audit
// metadata passes through here so no raw identifier can be persisted.
func MaskJSON(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = maskValue(trimmedKey, value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

// sensitiveKeys are always masked regardless of value type.
var sensitiveKeys = map[string]struct{}{
	"tin":  {},
	"ssn":  {},
	"ein":  {},
	"name": {},
}

func maskValue(key string, value any) any {
	if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
		if s, isString := value.(string); isString {
			return MaskIdentifier(s)
		}
		return maskToken
	}

	switch cast := value.(type) {
	case map[string]any:
		return MaskJSON(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue("", item))
		}
		return out
	default:
		return value
	}
}
