package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Sentinel values standing in for "field absent" in the flat row format.
const (
	// SentinelText marks absent string, array and object columns.
	SentinelText = ""
	// SentinelNumber marks absent number, date and boolean columns.
	// Boolean columns hold 0/1, dates hold epoch milliseconds, so -1 is
	// out of band for both.
	SentinelNumber = int64(-1)
)

// Serialize flattens schema-conformant metadata into a storage row.
// Strings and numbers pass through, booleans become 1/0, dates become
// epoch milliseconds, arrays become comma-joined strings, objects become
// JSON strings, and absent optional fields become their type's sentinel.
// Row keys are the lower-cased field names. Metadata keys not declared in
// the schema are rejected.
func Serialize(meta map[string]any, s Schema) (map[string]any, error) {
	row := make(map[string]any, len(s))

	for key := range meta {
		if _, ok := s.Lookup(key); !ok {
			return nil, &ValidationError{Field: key, Reason: "not declared in schema"}
		}
	}

	for _, field := range s {
		column := strings.ToLower(field.Name)
		inner, optional := field.Type.Unwrap()

		value, present := lookupValue(meta, field.Name)
		if !present {
			if !optional {
				return nil, &ValidationError{Field: field.Name, Reason: "required field is missing"}
			}
			row[column] = sentinelFor(inner.Kind)
			continue
		}

		encoded, err := encodeValue(field.Name, value, inner.Kind)
		if err != nil {
			return nil, err
		}
		row[column] = encoded
	}

	return row, nil
}

// Deserialize inverts Serialize. A sentinel in an optional column decodes
// to "field omitted", never to the literal sentinel value.
func Deserialize(row map[string]any, s Schema) (map[string]any, error) {
	meta := make(map[string]any, len(s))

	for _, field := range s {
		column := strings.ToLower(field.Name)
		inner, optional := field.Type.Unwrap()

		value, present := row[column]
		if !present {
			if !optional {
				return nil, fmt.Errorf("storage row missing column %q", column)
			}
			continue
		}

		if optional && isSentinel(value, inner.Kind) {
			continue
		}

		decoded, err := decodeValue(field.Name, value, inner.Kind)
		if err != nil {
			return nil, err
		}
		meta[field.Name] = decoded
	}

	return meta, nil
}

// lookupValue accepts the declared field name in any casing.
func lookupValue(meta map[string]any, name string) (any, bool) {
	if value, ok := meta[name]; ok {
		return value, true
	}
	lower := strings.ToLower(name)
	for key, value := range meta {
		if strings.ToLower(key) == lower {
			return value, true
		}
	}
	return nil, false
}

func sentinelFor(kind Kind) any {
	switch kind {
	case KindString, KindStringArray, KindObject:
		return SentinelText
	default:
		return SentinelNumber
	}
}

func isSentinel(value any, kind Kind) bool {
	switch kind {
	case KindString, KindStringArray, KindObject:
		s, ok := value.(string)
		return ok && s == SentinelText
	default:
		n, ok := asInt64(value)
		return ok && n == SentinelNumber
	}
}

func encodeValue(field string, value any, kind Kind) (any, error) {
	switch kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(field, "string", value)
		}
		return s, nil

	case KindNumber:
		n, ok := asFloat64(value)
		if !ok {
			return nil, typeError(field, "number", value)
		}
		return n, nil

	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, typeError(field, "boolean", value)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil

	case KindDate:
		ts, ok := value.(time.Time)
		if !ok {
			return nil, typeError(field, "date", value)
		}
		return ts.UnixMilli(), nil

	case KindStringArray:
		items, ok := value.([]string)
		if !ok {
			return nil, typeError(field, "array<string>", value)
		}
		return strings.Join(items, ","), nil

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, typeError(field, "object", value)
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("object not serializable: %v", err)}
		}
		return string(data), nil

	default:
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported kind %v", kind)}
	}
}

func decodeValue(field string, value any, kind Kind) (any, error) {
	switch kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(field, "string column", value)
		}
		return s, nil

	case KindNumber:
		n, ok := asFloat64(value)
		if !ok {
			return nil, typeError(field, "number column", value)
		}
		return n, nil

	case KindBoolean:
		n, ok := asInt64(value)
		if !ok {
			return nil, typeError(field, "boolean column", value)
		}
		return n != 0, nil

	case KindDate:
		n, ok := asInt64(value)
		if !ok {
			return nil, typeError(field, "date column", value)
		}
		return time.UnixMilli(n).UTC(), nil

	case KindStringArray:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(field, "array column", value)
		}
		if s == "" {
			return []string{}, nil
		}
		return strings.Split(s, ","), nil

	case KindObject:
		s, ok := value.(string)
		if !ok {
			return nil, typeError(field, "object column", value)
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, fmt.Errorf("field %q: invalid stored object: %w", field, err)
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("field %q: unsupported kind %v", field, kind)
	}
}

func typeError(field, want string, got any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf("expected %s, got %T", want, got)}
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		// Only integral floats convert; -1.5 must not collapse onto the
		// -1 sentinel.
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
