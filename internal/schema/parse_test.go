package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		expr    string
		want    FieldType
		wantErr bool
	}{
		{expr: "string", want: String()},
		{expr: "number", want: Number()},
		{expr: "boolean", want: Boolean()},
		{expr: "bool", want: Boolean()},
		{expr: "date", want: Date()},
		{expr: "array<string>", want: StringArray()},
		{expr: "object", want: Object()},
		{expr: "optional<string>", want: Optional(String())},
		{expr: " Optional<Date> ", want: Optional(Date())},
		{expr: "optional<optional<string>>", wantErr: true},
		{expr: "array<number>", wantErr: true},
		{expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseType(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
