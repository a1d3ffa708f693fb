package core

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

func emptyRecord(t *testing.T, fields ...arrow.Field) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(memory.NewGoAllocator(), arrow.NewSchema(fields, nil))
	defer b.Release()
	return b.NewRecord()
}

func TestCheckSchema(t *testing.T) {
	a := arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true}
	b := arrow.Field{Name: "b", Type: arrow.BinaryTypes.String, Nullable: true}
	expected := arrow.NewSchema([]arrow.Field{a, b}, nil)

	tests := []struct {
		name   string
		fields []arrow.Field
		ok     bool
		column interface{}
	}{
		{"equal", []arrow.Field{a, b}, true, nil},
		{"nullability ignored", []arrow.Field{a, {Name: "b", Type: arrow.BinaryTypes.String}}, true, nil},
		{"metadata ignored", []arrow.Field{a, {Name: "b", Type: arrow.BinaryTypes.String, Nullable: true,
			Metadata: arrow.NewMetadata([]string{"k"}, []string{"v"})}}, true, nil},
		{"too few columns", []arrow.Field{a}, false, nil},
		{"too many columns", []arrow.Field{a, b, b}, false, nil},
		{"renamed", []arrow.Field{a, {Name: "c", Type: arrow.BinaryTypes.String, Nullable: true}}, false, 1},
		{"retyped", []arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true}, b}, false, 0},
		{"reordered", []arrow.Field{b, a}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := emptyRecord(t, tt.fields...)
			defer rec.Release()

			err := CheckSchema(expected, rec)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))
			if tt.column != nil {
				var e *errors.Error
				require.True(t, errors.As(err, &e))
				assert.Equal(t, tt.column, e.Details["column"])
			}
		})
	}
}
