package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"true", KindBoolean},
		{"False", KindBoolean},
		{"yes", KindUtf8},
		{"42", KindInt64},
		{"-7", KindInt64},
		{"3.14", KindFloat64},
		{"1e5", KindFloat64},
		{".5", KindFloat64},
		{"NaN", KindUtf8},
		{"0x1p-2", KindUtf8},
		{"2024-01-31", KindDate32},
		{"2024-13-31", KindUtf8},
		{"2024-01-31T10:00:00", KindTimestamp},
		{"2024-01-31 10:00:00.123", KindTimestamp},
		{"2024-01-31T10:00:00.123456", KindTimestampNano},
		{"alpha", KindUtf8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyText(tt.in), tt.in)
	}
}

func TestWiden(t *testing.T) {
	tests := []struct {
		a, b, want Kind
	}{
		{KindNull, KindInt64, KindInt64},
		{KindInt64, KindNull, KindInt64},
		{KindInt64, KindFloat64, KindFloat64},
		{KindFloat64, KindInt64, KindFloat64},
		{KindDate32, KindTimestamp, KindTimestamp},
		{KindTimestampNano, KindDate32, KindTimestampNano},
		{KindTimestamp, KindTimestampNano, KindTimestampNano},
		{KindBoolean, KindInt64, KindUtf8},
		{KindDate32, KindFloat64, KindUtf8},
		{KindUtf8, KindInt64, KindUtf8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Widen(tt.a, tt.b), "%s+%s", tt.a, tt.b)
	}
}

func TestNodeScalarColumn(t *testing.T) {
	n := NewNode()
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, n.DataType()), "null-only column is utf8")

	n.ObserveText("1")
	n.ObserveText("2")
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, n.DataType()))

	n.ObserveText("2.5")
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, n.DataType()))

	n.ObserveText("x")
	assert.Equal(t, KindUtf8, n.Kind())
}

func TestNodeNested(t *testing.T) {
	root := NewNode()
	root.Field("id").Observe(KindInt64)
	tags := root.Field("tags").Elem()
	tags.Observe(KindUtf8)
	addr := root.Field("addr")
	addr.Field("zip").Observe(KindInt64)
	addr.Field("city").Observe(KindUtf8)

	s := root.Schema()
	require.Equal(t, 3, s.NumFields())
	assert.Equal(t, []string{"id", "tags", "addr"}, root.Names())

	list, ok := s.Field(1).Type.(*arrow.ListType)
	require.True(t, ok)
	assert.Equal(t, "item", list.ElemField().Name)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, list.Elem()))

	st, ok := s.Field(2).Type.(*arrow.StructType)
	require.True(t, ok)
	assert.Equal(t, "zip", st.Field(0).Name)
	assert.Equal(t, "city", st.Field(1).Name)
}

func TestNodeCompositeConflictCollapses(t *testing.T) {
	n := NewNode()
	n.Elem().Observe(KindInt64)
	n.Observe(KindInt64)
	assert.Equal(t, KindUtf8, n.Kind())

	// further structure is absorbed without panicking
	n.Field("a").Observe(KindBoolean)
	n.Elem().Observe(KindBoolean)
	assert.Equal(t, KindUtf8, n.Kind())

	m := NewNode()
	m.EnsureStruct()
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, m.DataType()), "empty struct is utf8")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "a_2", "column_4", "a_3"}, UniqueNames([]string{"a", "b", "a", "", "a"}))
	assert.Equal(t, []string{"column_1", "column_2"}, PositionalNames(2))

	s := Utf8Schema([]string{"x", "y"})
	require.Equal(t, 2, s.NumFields())
	for _, f := range s.Fields() {
		assert.True(t, f.Nullable)
		assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, f.Type))
	}
}
