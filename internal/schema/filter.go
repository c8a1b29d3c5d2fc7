package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetadataColumnPrefix qualifies metadata columns in predicates. The
// store aliases the chunk table accordingly so rendered predicates like
// "metadata.domain = 'security'" resolve without further rewriting.
const MetadataColumnPrefix = "metadata."

// Filter is a structured query filter: an optional resource-id
// membership constraint plus metadata field equality/containment
// constraints interpreted through the schema.
type Filter struct {
	// ResourceIDs restricts matches to the given resources. nil means no
	// resource constraint; an empty non-nil slice matches nothing.
	ResourceIDs []string
	// Fields maps metadata field names to required values.
	Fields map[string]any
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return f.ResourceIDs == nil && len(f.Fields) == 0
}

// QueryError reports a filter that does not fit the schema. It is
// raised before anything reaches storage.
type QueryError struct {
	Field  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("filter field %q: %s", e.Field, e.Reason)
}

// BuildWhereClause renders a filter into a predicate string for the
// storage engine. It returns "" for an empty filter so the caller can
// omit the clause entirely. Metadata predicates AND together in
// schema-declared order; the resource-id predicate, when present, is
// ANDed in front. An empty resource-id set renders an always-false
// predicate instead of invalid empty-IN syntax.
func BuildWhereClause(f Filter, s Schema) (string, error) {
	var parts []string

	if f.ResourceIDs != nil {
		parts = append(parts, buildResourceFilter(f.ResourceIDs))
	}

	// Iterate the schema, not the map, so predicate order is stable and
	// schema-declared.
	matched := 0
	for _, field := range s {
		value, ok := lookupValue(f.Fields, field.Name)
		if !ok {
			continue
		}
		matched++

		predicate, err := BuildMetadataFilter(field.Name, value, field.Type)
		if err != nil {
			return "", err
		}
		parts = append(parts, predicate)
	}

	if matched != len(f.Fields) {
		for name := range f.Fields {
			if _, ok := s.Lookup(name); !ok {
				return "", &QueryError{Field: name, Reason: "not declared in schema"}
			}
		}
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, " AND "), nil
}

// BuildMetadataFilter renders a single metadata field predicate.
// Scalar fields render as equality, array fields as a substring match
// against the delimited encoding. Optional wrappers unwrap before
// dispatch. Every literal passes through EscapeLiteral; raw
// interpolation is never permitted.
func BuildMetadataFilter(name string, value any, t FieldType) (string, error) {
	column := MetadataColumnPrefix + strings.ToLower(name)
	inner, _ := t.Unwrap()

	switch inner.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return "", &QueryError{Field: name, Reason: fmt.Sprintf("expected string, got %T", value)}
		}
		return fmt.Sprintf("%s = '%s'", column, EscapeLiteral(s)), nil

	case KindNumber:
		n, ok := asFloat64(value)
		if !ok {
			return "", &QueryError{Field: name, Reason: fmt.Sprintf("expected number, got %T", value)}
		}
		return fmt.Sprintf("%s = %s", column, formatNumber(n)), nil

	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return "", &QueryError{Field: name, Reason: fmt.Sprintf("expected boolean, got %T", value)}
		}
		if b {
			return column + " = 1", nil
		}
		return column + " = 0", nil

	case KindDate:
		ts, ok := value.(time.Time)
		if !ok {
			return "", &QueryError{Field: name, Reason: fmt.Sprintf("expected date, got %T", value)}
		}
		return fmt.Sprintf("%s = %d", column, ts.UnixMilli()), nil

	case KindStringArray:
		s, ok := value.(string)
		if !ok {
			return "", &QueryError{Field: name, Reason: fmt.Sprintf("expected string to match against array, got %T", value)}
		}
		return fmt.Sprintf("%s LIKE '%%%s%%'", column, EscapeLiteral(s)), nil

	default:
		return "", &QueryError{Field: name, Reason: fmt.Sprintf("cannot filter on %v field", inner.Kind)}
	}
}

// buildResourceFilter renders a resource-id membership predicate. An
// empty set matches nothing.
func buildResourceFilter(ids []string) string {
	if len(ids) == 0 {
		return "1 = 0"
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + EscapeLiteral(id) + "'"
	}
	return fmt.Sprintf("resource_id IN (%s)", strings.Join(quoted, ", "))
}

// EscapeLiteral escapes a string literal for interpolation into a
// predicate by doubling single quotes. This is the sole injection-safety
// boundary for filter values.
func EscapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// formatNumber renders a number without a trailing ".0" for integral
// values.
func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
