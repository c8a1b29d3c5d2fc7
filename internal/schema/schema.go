// Package schema describes user-supplied chunk metadata as a closed
// tagged union of field types and provides the codec and filter logic
// that maps typed metadata onto flat storage rows.
//
// The storage format has no native null, so absent optional fields are
// encoded with per-type sentinel values: the empty string for
// string/array/object columns and -1 for number/date/boolean columns. A
// genuine value equal to the sentinel is indistinguishable from absence;
// this is a known limitation of the format, kept explicit on purpose.
package schema

import (
	"fmt"
	"strings"
)

// Kind enumerates the closed set of field types.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindDate
	KindStringArray
	KindObject
	KindOptional
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindStringArray:
		return "array<string>"
	case KindObject:
		return "object"
	case KindOptional:
		return "optional"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldType is one member of the type union. Inner is set only for
// KindOptional.
type FieldType struct {
	Kind  Kind
	Inner *FieldType
}

// String returns the string field type
func String() FieldType { return FieldType{Kind: KindString} }

// Number returns the number field type
func Number() FieldType { return FieldType{Kind: KindNumber} }

// Boolean returns the boolean field type
func Boolean() FieldType { return FieldType{Kind: KindBoolean} }

// Date returns the date field type
func Date() FieldType { return FieldType{Kind: KindDate} }

// StringArray returns the array-of-string field type
func StringArray() FieldType { return FieldType{Kind: KindStringArray} }

// Object returns the nested-object field type
func Object() FieldType { return FieldType{Kind: KindObject} }

// Optional wraps an inner type, marking the field as omittable
func Optional(inner FieldType) FieldType {
	return FieldType{Kind: KindOptional, Inner: &inner}
}

// Unwrap strips an optional wrapper, returning the effective type and
// whether the field is optional.
func (t FieldType) Unwrap() (FieldType, bool) {
	if t.Kind == KindOptional {
		return *t.Inner, true
	}
	return t, false
}

// FieldDef names one metadata field and its type.
type FieldDef struct {
	Name string
	Type FieldType
}

// Schema is an ordered list of metadata field definitions. Order matters:
// filter predicates AND together in schema-declared order.
type Schema []FieldDef

// Validate checks that the schema is well formed: non-empty unique names
// (compared lower-case, since storage lower-cases them) and no nested or
// bare optional wrappers.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, field := range s {
		if field.Name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		lower := strings.ToLower(field.Name)
		if seen[lower] {
			return fmt.Errorf("duplicate schema field %q", lower)
		}
		seen[lower] = true

		t := field.Type
		if t.Kind == KindOptional {
			if t.Inner == nil {
				return fmt.Errorf("field %q: optional wrapper without inner type", field.Name)
			}
			if t.Inner.Kind == KindOptional {
				return fmt.Errorf("field %q: nested optional wrapper", field.Name)
			}
			t = *t.Inner
		}
		switch t.Kind {
		case KindString, KindNumber, KindBoolean, KindDate, KindStringArray, KindObject:
		default:
			return fmt.Errorf("field %q: invalid kind %v", field.Name, t.Kind)
		}
	}
	return nil
}

// Lookup finds a field by name, compared case-insensitively.
func (s Schema) Lookup(name string) (FieldDef, bool) {
	lower := strings.ToLower(name)
	for _, field := range s {
		if strings.ToLower(field.Name) == lower {
			return field, true
		}
	}
	return FieldDef{}, false
}

// ValidationError reports metadata that violates the schema during
// serialization. Records failing validation are rejected outright, never
// coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("metadata field %q: %s", e.Field, e.Reason)
}
