package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMetadataFilter(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		value     any
		fieldType FieldType
		want      string
		wantErr   bool
	}{
		{
			name:      "string equality",
			field:     "domain",
			value:     "security",
			fieldType: String(),
			want:      "metadata.domain = 'security'",
		},
		{
			name:      "single quotes doubled",
			field:     "title",
			value:     "it's",
			fieldType: String(),
			want:      "metadata.title = 'it''s'",
		},
		{
			name:      "integral number",
			field:     "priority",
			value:     float64(3),
			fieldType: Number(),
			want:      "metadata.priority = 3",
		},
		{
			name:      "fractional number",
			field:     "score",
			value:     2.5,
			fieldType: Number(),
			want:      "metadata.score = 2.5",
		},
		{
			name:      "boolean true",
			field:     "published",
			value:     true,
			fieldType: Boolean(),
			want:      "metadata.published = 1",
		},
		{
			name:      "boolean false",
			field:     "published",
			value:     false,
			fieldType: Boolean(),
			want:      "metadata.published = 0",
		},
		{
			name:      "date as epoch millis",
			field:     "updatedAt",
			value:     time.UnixMilli(1700000000000).UTC(),
			fieldType: Date(),
			want:      "metadata.updatedat = 1700000000000",
		},
		{
			name:      "array containment",
			field:     "tags",
			value:     "go",
			fieldType: StringArray(),
			want:      "metadata.tags LIKE '%go%'",
		},
		{
			name:      "optional unwraps",
			field:     "author",
			value:     "pat",
			fieldType: Optional(String()),
			want:      "metadata.author = 'pat'",
		},
		{
			name:      "object fields are not filterable",
			field:     "extra",
			value:     "x",
			fieldType: Object(),
			wantErr:   true,
		},
		{
			name:      "type mismatch",
			field:     "priority",
			value:     "three",
			fieldType: Number(),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildMetadataFilter(tt.field, tt.value, tt.fieldType)
			if tt.wantErr {
				var qerr *QueryError
				assert.ErrorAs(t, err, &qerr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	s := Schema{
		{Name: "domain", Type: String()},
		{Name: "published", Type: Boolean()},
		{Name: "tags", Type: StringArray()},
	}

	t.Run("empty filter renders nothing", func(t *testing.T) {
		clause, err := BuildWhereClause(Filter{}, s)
		require.NoError(t, err)
		assert.Equal(t, "", clause)
	})

	t.Run("empty resource id list matches nothing", func(t *testing.T) {
		clause, err := BuildWhereClause(Filter{ResourceIDs: []string{}}, s)
		require.NoError(t, err)
		assert.Equal(t, "1 = 0", clause)
	})

	t.Run("resource membership", func(t *testing.T) {
		clause, err := BuildWhereClause(Filter{ResourceIDs: []string{"a", "b's"}}, s)
		require.NoError(t, err)
		assert.Equal(t, "resource_id IN ('a', 'b''s')", clause)
	})

	t.Run("fields AND in schema order", func(t *testing.T) {
		f := Filter{Fields: map[string]any{
			"tags":      "go",
			"domain":    "security",
			"published": true,
		}}
		clause, err := BuildWhereClause(f, s)
		require.NoError(t, err)
		assert.Equal(t,
			"metadata.domain = 'security' AND metadata.published = 1 AND metadata.tags LIKE '%go%'",
			clause)
	})

	t.Run("resource predicate leads", func(t *testing.T) {
		f := Filter{
			ResourceIDs: []string{"r1"},
			Fields:      map[string]any{"domain": "security"},
		}
		clause, err := BuildWhereClause(f, s)
		require.NoError(t, err)
		assert.Equal(t, "resource_id IN ('r1') AND metadata.domain = 'security'", clause)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := BuildWhereClause(Filter{Fields: map[string]any{"rogue": 1}}, s)
		var qerr *QueryError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, "rogue", qerr.Field)
	})
}
