package schema

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

const eventsDoc = `{
  "fields": [
    {"name": "id", "nullable": false, "type": {"name": "int", "bitWidth": 64, "isSigned": true}, "children": []},
    {"name": "score", "nullable": true, "type": {"name": "floatingpoint", "precision": "DOUBLE"}, "children": []},
    {"name": "day", "nullable": true, "type": {"name": "date", "unit": "DAY"}, "children": []},
    {"name": "at", "nullable": true, "type": {"name": "timestamp", "unit": "MICROSECOND", "timezone": "UTC"}, "children": []},
    {"name": "price", "nullable": true, "type": {"name": "decimal", "precision": 10, "scale": 2}, "children": []},
    {"name": "tags", "nullable": true, "type": {"name": "list"}, "children": [
      {"name": "item", "nullable": true, "type": {"name": "utf8"}, "children": []}
    ]},
    {"name": "point", "nullable": true, "type": {"name": "struct"}, "children": [
      {"name": "x", "nullable": true, "type": {"name": "floatingpoint", "precision": "SINGLE"}, "children": []},
      {"name": "y", "nullable": true, "type": {"name": "floatingpoint", "precision": "SINGLE"}, "children": []}
    ]},
    {"name": "flag", "nullable": true, "type": {"name": "bool"}, "children": [],
     "metadata": [{"key": "origin", "value": "legacy"}]}
  ],
  "metadata": {"producer": "tests"}
}`

func TestUnmarshalDocument(t *testing.T) {
	s, err := Unmarshal([]byte(eventsDoc))
	require.NoError(t, err)
	require.Equal(t, 8, s.NumFields())

	assert.False(t, s.Field(0).Nullable)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, s.Field(0).Type))
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, s.Field(1).Type))
	assert.True(t, arrow.TypeEqual(arrow.FixedWidthTypes.Date32, s.Field(2).Type))
	assert.True(t, arrow.TypeEqual(&arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, s.Field(3).Type))
	assert.True(t, arrow.TypeEqual(&arrow.Decimal128Type{Precision: 10, Scale: 2}, s.Field(4).Type))
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), s.Field(5).Type))

	st, ok := s.Field(6).Type.(*arrow.StructType)
	require.True(t, ok)
	assert.Equal(t, 2, st.NumFields())

	v, ok := s.Field(7).Metadata.GetValue("origin")
	require.True(t, ok)
	assert.Equal(t, "legacy", v)

	v, ok = s.Metadata().GetValue("producer")
	require.True(t, ok)
	assert.Equal(t, "tests", v)
}

func TestDocumentRoundTrip(t *testing.T) {
	in, err := Unmarshal([]byte(eventsDoc))
	require.NoError(t, err)

	out, err := Marshal(in)
	require.NoError(t, err)

	again, err := Unmarshal(out)
	require.NoError(t, err)
	assert.True(t, Equal(in, again))
	assert.True(t, in.Equal(again), "field metadata survives the round trip")
	assert.True(t, in.Metadata().Equal(again.Metadata()))
}

func TestMarshalLayout(t *testing.T) {
	s := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))

	want := `{
  "fields": [
    {
      "children": [],
      "name": "a",
      "nullable": true,
      "type": {
        "bitWidth": 64,
        "isSigned": true,
        "name": "int"
      }
    }
  ],
  "metadata": {}
}
`
	assert.Equal(t, want, buf.String())
}

func TestUnmarshalErrors(t *testing.T) {
	tests := map[string]string{
		"not json":        `{"fields": [`,
		"no fields":       `{"metadata": {}}`,
		"unknown type":    `{"fields": [{"name": "a", "nullable": true, "type": {"name": "money"}, "children": []}]}`,
		"int no width":    `{"fields": [{"name": "a", "nullable": true, "type": {"name": "int", "isSigned": true}, "children": []}]}`,
		"bad unit":        `{"fields": [{"name": "a", "nullable": true, "type": {"name": "timestamp", "unit": "FORTNIGHT"}, "children": []}]}`,
		"duplicate name":  `{"fields": [{"name": "a", "nullable": true, "type": {"name": "bool"}, "children": []}, {"name": "a", "nullable": true, "type": {"name": "utf8"}, "children": []}]}`,
		"list no child":   `{"fields": [{"name": "a", "nullable": true, "type": {"name": "list"}, "children": []}]}`,
		"dictionary":      `{"fields": [{"name": "a", "nullable": true, "type": {"name": "utf8"}, "children": [], "dictionary": {"id": 0}}]}`,
		"bad float width": `{"fields": [{"name": "a", "nullable": true, "type": {"name": "floatingpoint", "precision": "QUAD"}, "children": []}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaParse), err.Error())
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
	_, err = ReadFile(bad)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaParse))
	assert.True(t, strings.Contains(err.Error(), "schema json"))

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(eventsDoc), 0o600))
	s, err := ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, 8, s.NumFields())
}
