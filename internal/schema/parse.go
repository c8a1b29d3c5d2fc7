package schema

import (
	"fmt"
	"strings"
)

// ParseType parses a type expression like "string", "array<string>" or
// "optional<date>" into a FieldType.
func ParseType(expr string) (FieldType, error) {
	s := strings.TrimSpace(strings.ToLower(expr))

	if inner, ok := genericArg(s, "optional"); ok {
		innerType, err := ParseType(inner)
		if err != nil {
			return FieldType{}, err
		}
		if innerType.Kind == KindOptional {
			return FieldType{}, fmt.Errorf("nested optional in %q", expr)
		}
		return Optional(innerType), nil
	}

	switch s {
	case "string":
		return String(), nil
	case "number":
		return Number(), nil
	case "boolean", "bool":
		return Boolean(), nil
	case "date":
		return Date(), nil
	case "array<string>":
		return StringArray(), nil
	case "object":
		return Object(), nil
	default:
		return FieldType{}, fmt.Errorf("unknown field type %q", expr)
	}
}

func genericArg(s, outer string) (string, bool) {
	prefix := outer + "<"
	if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, ">") {
		return s[len(prefix) : len(s)-1], true
	}
	return "", false
}
