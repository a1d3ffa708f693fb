package schema

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/tabconv/pkg/errors"
)

// Schema documents use the Arrow JSON integration layout:
//
//	{
//	  "fields": [
//	    {"children": [], "name": "id", "nullable": true,
//	     "type": {"bitWidth": 64, "isSigned": true, "name": "int"}}
//	  ],
//	  "metadata": {}
//	}
//
// Keys are emitted in sorted order.

type documentJSON struct {
	Fields   []fieldJSON       `json:"fields"`
	Metadata map[string]string `json:"metadata"`
}

type fieldJSON struct {
	Children   []fieldJSON       `json:"children"`
	Dictionary gojson.RawMessage `json:"dictionary,omitempty"`
	Metadata   gojson.RawMessage `json:"metadata,omitempty"`
	Name       string            `json:"name"`
	Nullable   bool              `json:"nullable"`
	Type       gojson.RawMessage `json:"type"`
}

// fieldOut mirrors fieldJSON for encoding, with the type held as a map so
// that keys are emitted sorted.
type fieldOut struct {
	Children []fieldOut             `json:"children"`
	Metadata map[string]string      `json:"metadata,omitempty"`
	Name     string                 `json:"name"`
	Nullable bool                   `json:"nullable"`
	Type     map[string]interface{} `json:"type"`
}

type documentOut struct {
	Fields   []fieldOut        `json:"fields"`
	Metadata map[string]string `json:"metadata"`
}

type typeJSON struct {
	Name      string            `json:"name"`
	BitWidth  *int              `json:"bitWidth"`
	IsSigned  *bool             `json:"isSigned"`
	Precision gojson.RawMessage `json:"precision"`
	Scale     *int32            `json:"scale"`
	Unit      *string           `json:"unit"`
	Timezone  *string           `json:"timezone"`
	ByteWidth *int              `json:"byteWidth"`
	ListSize  *int32            `json:"listSize"`
}

type keyValueJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ReadFile loads a schema document from path. A missing or unreadable file
// is an io error; malformed content is a schema_parse error.
func ReadFile(path string) (*arrow.Schema, error) {
	f, err := os.Open(path) //nolint:gosec // G304: schema path is chosen by the user
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "error opening schema file").
			WithDetail("path", path)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			e.WithDetail("path", path)
		}
		return nil, err
	}
	return s, nil
}

// Read parses a schema document.
func Read(r io.Reader) (*arrow.Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "error reading schema document")
	}
	return Unmarshal(data)
}

// Unmarshal parses a schema document held in memory.
func Unmarshal(data []byte) (*arrow.Schema, error) {
	var doc documentJSON
	if err := gojson.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchemaParse, "error reading schema json")
	}
	if doc.Fields == nil {
		return nil, errors.New(errors.ErrorTypeSchemaParse, `schema document has no "fields" list`)
	}

	fields, err := decodeFields(doc.Fields, "")
	if err != nil {
		return nil, err
	}

	var md *arrow.Metadata
	if len(doc.Metadata) > 0 {
		m := arrow.MetadataFrom(doc.Metadata)
		md = &m
	}
	return arrow.NewSchema(fields, md), nil
}

func decodeFields(in []fieldJSON, parent string) ([]arrow.Field, error) {
	fields := make([]arrow.Field, len(in))
	seen := make(map[string]bool, len(in))
	for i, fj := range in {
		path := fj.Name
		if parent != "" {
			path = parent + "." + fj.Name
		}
		if seen[fj.Name] {
			return nil, errors.Newf(errors.ErrorTypeSchemaParse, "duplicate field name %q", path)
		}
		seen[fj.Name] = true

		f, err := decodeField(fj, path)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return fields, nil
}

func decodeField(fj fieldJSON, path string) (arrow.Field, error) {
	if len(fj.Dictionary) > 0 && string(fj.Dictionary) != "null" {
		return arrow.Field{}, errors.Newf(errors.ErrorTypeSchemaParse, "field %q: dictionary-encoded fields are not supported", path)
	}
	if len(fj.Type) == 0 {
		return arrow.Field{}, errors.Newf(errors.ErrorTypeSchemaParse, "field %q has no type", path)
	}

	var tj typeJSON
	if err := gojson.Unmarshal(fj.Type, &tj); err != nil {
		return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeSchemaParse, "field "+path+": malformed type")
	}

	dt, err := decodeType(tj, fj.Children, path)
	if err != nil {
		return arrow.Field{}, err
	}

	md, err := decodeMetadata(fj.Metadata)
	if err != nil {
		return arrow.Field{}, errors.Wrap(err, errors.ErrorTypeSchemaParse, "field "+path+": malformed metadata")
	}

	return arrow.Field{Name: fj.Name, Type: dt, Nullable: fj.Nullable, Metadata: md}, nil
}

func decodeMetadata(raw gojson.RawMessage) (arrow.Metadata, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return arrow.Metadata{}, nil
	}
	if raw[0] == '[' {
		var kvs []keyValueJSON
		if err := gojson.Unmarshal(raw, &kvs); err != nil {
			return arrow.Metadata{}, err
		}
		keys := make([]string, len(kvs))
		values := make([]string, len(kvs))
		for i, kv := range kvs {
			keys[i], values[i] = kv.Key, kv.Value
		}
		return arrow.NewMetadata(keys, values), nil
	}
	var m map[string]string
	if err := gojson.Unmarshal(raw, &m); err != nil {
		return arrow.Metadata{}, err
	}
	return arrow.MetadataFrom(m), nil
}

func parseError(path, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeSchemaParse, "field %q: "+format, append([]interface{}{path}, args...)...)
}

func decodeUnit(tj typeJSON, path string) (arrow.TimeUnit, error) {
	if tj.Unit == nil {
		return 0, parseError(path, "type %s requires a unit", tj.Name)
	}
	switch strings.ToUpper(*tj.Unit) {
	case "SECOND":
		return arrow.Second, nil
	case "MILLISECOND":
		return arrow.Millisecond, nil
	case "MICROSECOND":
		return arrow.Microsecond, nil
	case "NANOSECOND":
		return arrow.Nanosecond, nil
	}
	return 0, parseError(path, "unknown time unit %q", *tj.Unit)
}

func singleChild(children []fieldJSON, tj typeJSON, path string) (arrow.Field, error) {
	if len(children) != 1 {
		return arrow.Field{}, parseError(path, "type %s requires exactly one child, got %d", tj.Name, len(children))
	}
	return decodeField(children[0], path+"."+children[0].Name)
}

func decodeType(tj typeJSON, children []fieldJSON, path string) (arrow.DataType, error) {
	switch strings.ToLower(tj.Name) {
	case "null":
		return arrow.Null, nil
	case "bool":
		return arrow.FixedWidthTypes.Boolean, nil
	case "int":
		if tj.BitWidth == nil || tj.IsSigned == nil {
			return nil, parseError(path, "int requires bitWidth and isSigned")
		}
		signed := *tj.IsSigned
		switch *tj.BitWidth {
		case 8:
			if signed {
				return arrow.PrimitiveTypes.Int8, nil
			}
			return arrow.PrimitiveTypes.Uint8, nil
		case 16:
			if signed {
				return arrow.PrimitiveTypes.Int16, nil
			}
			return arrow.PrimitiveTypes.Uint16, nil
		case 32:
			if signed {
				return arrow.PrimitiveTypes.Int32, nil
			}
			return arrow.PrimitiveTypes.Uint32, nil
		case 64:
			if signed {
				return arrow.PrimitiveTypes.Int64, nil
			}
			return arrow.PrimitiveTypes.Uint64, nil
		}
		return nil, parseError(path, "unsupported int bitWidth %d", *tj.BitWidth)
	case "floatingpoint":
		var precision string
		if err := gojson.Unmarshal(tj.Precision, &precision); err != nil {
			return nil, parseError(path, "floatingpoint requires a precision of HALF, SINGLE or DOUBLE")
		}
		switch strings.ToUpper(precision) {
		case "HALF":
			return arrow.FixedWidthTypes.Float16, nil
		case "SINGLE":
			return arrow.PrimitiveTypes.Float32, nil
		case "DOUBLE":
			return arrow.PrimitiveTypes.Float64, nil
		}
		return nil, parseError(path, "unknown floatingpoint precision %q", precision)
	case "utf8":
		return arrow.BinaryTypes.String, nil
	case "largeutf8":
		return arrow.BinaryTypes.LargeString, nil
	case "binary":
		return arrow.BinaryTypes.Binary, nil
	case "largebinary":
		return arrow.BinaryTypes.LargeBinary, nil
	case "fixedsizebinary":
		if tj.ByteWidth == nil || *tj.ByteWidth <= 0 {
			return nil, parseError(path, "fixedsizebinary requires a positive byteWidth")
		}
		return &arrow.FixedSizeBinaryType{ByteWidth: *tj.ByteWidth}, nil
	case "date":
		if tj.Unit == nil {
			return nil, parseError(path, "date requires a unit")
		}
		switch strings.ToUpper(*tj.Unit) {
		case "DAY":
			return arrow.FixedWidthTypes.Date32, nil
		case "MILLISECOND":
			return arrow.FixedWidthTypes.Date64, nil
		}
		return nil, parseError(path, "unknown date unit %q", *tj.Unit)
	case "time":
		unit, err := decodeUnit(tj, path)
		if err != nil {
			return nil, err
		}
		if unit == arrow.Second || unit == arrow.Millisecond {
			return &arrow.Time32Type{Unit: unit}, nil
		}
		return &arrow.Time64Type{Unit: unit}, nil
	case "timestamp":
		unit, err := decodeUnit(tj, path)
		if err != nil {
			return nil, err
		}
		ts := &arrow.TimestampType{Unit: unit}
		if tj.Timezone != nil {
			ts.TimeZone = *tj.Timezone
		}
		return ts, nil
	case "duration":
		unit, err := decodeUnit(tj, path)
		if err != nil {
			return nil, err
		}
		return &arrow.DurationType{Unit: unit}, nil
	case "decimal":
		var precision int32
		if err := gojson.Unmarshal(tj.Precision, &precision); err != nil || tj.Scale == nil {
			return nil, parseError(path, "decimal requires integer precision and scale")
		}
		bitWidth := 128
		if tj.BitWidth != nil {
			bitWidth = *tj.BitWidth
		}
		switch bitWidth {
		case 128:
			return &arrow.Decimal128Type{Precision: precision, Scale: *tj.Scale}, nil
		case 256:
			return &arrow.Decimal256Type{Precision: precision, Scale: *tj.Scale}, nil
		}
		return nil, parseError(path, "unsupported decimal bitWidth %d", bitWidth)
	case "list":
		child, err := singleChild(children, tj, path)
		if err != nil {
			return nil, err
		}
		return arrow.ListOfField(child), nil
	case "largelist":
		child, err := singleChild(children, tj, path)
		if err != nil {
			return nil, err
		}
		return arrow.LargeListOfField(child), nil
	case "fixedsizelist":
		if tj.ListSize == nil || *tj.ListSize <= 0 {
			return nil, parseError(path, "fixedsizelist requires a positive listSize")
		}
		child, err := singleChild(children, tj, path)
		if err != nil {
			return nil, err
		}
		return arrow.FixedSizeListOfField(*tj.ListSize, child), nil
	case "struct":
		fields, err := decodeFields(children, path)
		if err != nil {
			return nil, err
		}
		return arrow.StructOf(fields...), nil
	}
	return nil, parseError(path, "unsupported type %q", tj.Name)
}

// Marshal renders s as an indented schema document.
func Marshal(s *arrow.Schema) ([]byte, error) {
	fields, err := encodeFields(s.Fields())
	if err != nil {
		return nil, err
	}
	doc := documentOut{
		Fields:   fields,
		Metadata: metadataMap(s.Metadata()),
	}
	out, err := gojson.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode schema document")
	}
	return out, nil
}

// Write renders s to w followed by a newline.
func Write(w io.Writer, s *arrow.Schema) error {
	out, err := Marshal(s)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write schema document")
	}
	return nil
}

func metadataMap(md arrow.Metadata) map[string]string {
	m := make(map[string]string, md.Len())
	for i, k := range md.Keys() {
		m[k] = md.Values()[i]
	}
	return m
}

func encodeFields(fields []arrow.Field) ([]fieldOut, error) {
	out := make([]fieldOut, len(fields))
	for i, f := range fields {
		typ, children, err := encodeType(f.Type)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "field "+f.Name)
		}
		childOut, err := encodeFields(children)
		if err != nil {
			return nil, err
		}
		out[i] = fieldOut{
			Children: childOut,
			Name:     f.Name,
			Nullable: f.Nullable,
			Type:     typ,
		}
		if f.HasMetadata() {
			out[i].Metadata = metadataMap(f.Metadata)
		}
	}
	return out, nil
}

var unitNames = map[arrow.TimeUnit]string{
	arrow.Second:      "SECOND",
	arrow.Millisecond: "MILLISECOND",
	arrow.Microsecond: "MICROSECOND",
	arrow.Nanosecond:  "NANOSECOND",
}

func encodeType(dt arrow.DataType) (map[string]interface{}, []arrow.Field, error) {
	switch t := dt.(type) {
	case *arrow.NullType:
		return map[string]interface{}{"name": "null"}, nil, nil
	case *arrow.BooleanType:
		return map[string]interface{}{"name": "bool"}, nil, nil
	case *arrow.Int8Type, *arrow.Int16Type, *arrow.Int32Type, *arrow.Int64Type:
		return map[string]interface{}{"name": "int", "bitWidth": t.(arrow.FixedWidthDataType).BitWidth(), "isSigned": true}, nil, nil
	case *arrow.Uint8Type, *arrow.Uint16Type, *arrow.Uint32Type, *arrow.Uint64Type:
		return map[string]interface{}{"name": "int", "bitWidth": t.(arrow.FixedWidthDataType).BitWidth(), "isSigned": false}, nil, nil
	case *arrow.Float16Type:
		return map[string]interface{}{"name": "floatingpoint", "precision": "HALF"}, nil, nil
	case *arrow.Float32Type:
		return map[string]interface{}{"name": "floatingpoint", "precision": "SINGLE"}, nil, nil
	case *arrow.Float64Type:
		return map[string]interface{}{"name": "floatingpoint", "precision": "DOUBLE"}, nil, nil
	case *arrow.StringType:
		return map[string]interface{}{"name": "utf8"}, nil, nil
	case *arrow.LargeStringType:
		return map[string]interface{}{"name": "largeutf8"}, nil, nil
	case *arrow.BinaryType:
		return map[string]interface{}{"name": "binary"}, nil, nil
	case *arrow.LargeBinaryType:
		return map[string]interface{}{"name": "largebinary"}, nil, nil
	case *arrow.FixedSizeBinaryType:
		return map[string]interface{}{"name": "fixedsizebinary", "byteWidth": t.ByteWidth}, nil, nil
	case *arrow.Date32Type:
		return map[string]interface{}{"name": "date", "unit": "DAY"}, nil, nil
	case *arrow.Date64Type:
		return map[string]interface{}{"name": "date", "unit": "MILLISECOND"}, nil, nil
	case *arrow.Time32Type:
		return map[string]interface{}{"name": "time", "unit": unitNames[t.Unit], "bitWidth": 32}, nil, nil
	case *arrow.Time64Type:
		return map[string]interface{}{"name": "time", "unit": unitNames[t.Unit], "bitWidth": 64}, nil, nil
	case *arrow.TimestampType:
		m := map[string]interface{}{"name": "timestamp", "unit": unitNames[t.Unit]}
		if t.TimeZone != "" {
			m["timezone"] = t.TimeZone
		}
		return m, nil, nil
	case *arrow.DurationType:
		return map[string]interface{}{"name": "duration", "unit": unitNames[t.Unit]}, nil, nil
	case *arrow.Decimal128Type:
		return map[string]interface{}{"name": "decimal", "precision": t.Precision, "scale": t.Scale}, nil, nil
	case *arrow.Decimal256Type:
		return map[string]interface{}{"name": "decimal", "precision": t.Precision, "scale": t.Scale, "bitWidth": 256}, nil, nil
	case *arrow.LargeListType:
		return map[string]interface{}{"name": "largelist"}, []arrow.Field{t.ElemField()}, nil
	case *arrow.ListType:
		return map[string]interface{}{"name": "list"}, []arrow.Field{t.ElemField()}, nil
	case *arrow.FixedSizeListType:
		return map[string]interface{}{"name": "fixedsizelist", "listSize": t.Len()}, []arrow.Field{t.ElemField()}, nil
	case *arrow.StructType:
		return map[string]interface{}{"name": "struct"}, t.Fields(), nil
	}
	return nil, nil, errors.Newf(errors.ErrorTypeInternal, "type %s has no schema document representation", dt)
}

// Equal reports whether two schemas have the same field names, types and
// nullability in the same order, ignoring metadata.
func Equal(a, b *arrow.Schema) bool {
	if a.NumFields() != b.NumFields() {
		return false
	}
	for i := 0; i < a.NumFields(); i++ {
		fa, fb := a.Field(i), b.Field(i)
		if fa.Name != fb.Name || fa.Nullable != fb.Nullable || !arrow.TypeEqual(fa.Type, fb.Type) {
			return false
		}
	}
	return true
}

// SortedMetadataKeys returns the metadata keys of s in lexical order.
func SortedMetadataKeys(s *arrow.Schema) []string {
	keys := append([]string(nil), s.Metadata().Keys()...)
	sort.Strings(keys)
	return keys
}
