package types

import (
	"encoding/json"
	"fmt"
)

// Well-known document fields of the flattened GeoJSON-like records.
const (
	FieldID             = "properties.id"
	FieldReferenceSpace = "geometry.referenceSpace"
	FieldGeometryType   = "geometry.type"
	FieldCoordinates    = "geometry.coordinates"
)

// coordinateFields holds the flattened per-dimension point field names.
var coordinateFields = [MaxDimensions]string{
	"geometry.coordinates_0___pdouble",
	"geometry.coordinates_1___pdouble",
	"geometry.coordinates_2___pdouble",
	"geometry.coordinates_3___pdouble",
}

// CoordinateField returns the indexed scalar field holding dimension d.
// It panics if d is outside [0, MaxDimensions).
func CoordinateField(d int) string {
	return coordinateFields[d]
}

// CoordinateFields returns the scalar fields for the first dims dimensions.
func CoordinateFields(dims int) []string {
	if dims > MaxDimensions {
		dims = MaxDimensions
	}
	out := make([]string, dims)
	copy(out, coordinateFields[:dims])
	return out
}

// Document is a single record returned by the index.
// Coordinates are extracted once at decode time into a fixed-size array.
type Document struct {
	id     Label
	space  ReferenceSpace
	coords [MaxDimensions]float64
	dims   int
	raw    map[string]json.RawMessage
}

// NewDocument builds a document from typed values (used by tests and the generator).
// Coordinates beyond MaxDimensions are dropped.
func NewDocument(id Label, space ReferenceSpace, p Point) Document {
	dims := len(p)
	if dims > MaxDimensions {
		dims = MaxDimensions
	}
	doc := Document{id: id, space: space, dims: dims}
	copy(doc.coords[:], p[:dims])
	return doc
}

// ID returns the label the document belongs to.
func (d Document) ID() Label { return d.id }

// Space returns the reference space of the document.
func (d Document) Space() ReferenceSpace { return d.space }

// Coordinates returns the point position of the document.
func (d Document) Coordinates() Point {
	p := make(Point, d.dims)
	copy(p, d.coords[:d.dims])
	return p
}

// Field returns the raw JSON value of an arbitrary field.
func (d Document) Field(name string) (json.RawMessage, bool) {
	v, ok := d.raw[name]
	return v, ok
}

// UnmarshalJSON decodes a flattened index document.
// Scalar fields may be returned either as scalars or as single-valued arrays.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	doc := Document{raw: raw}

	if v, ok := raw[FieldID]; ok {
		s, err := decodeString(v)
		if err != nil {
			return fmt.Errorf("types: field %s: %w", FieldID, err)
		}
		doc.id = Label(s)
	}

	for _, name := range []string{FieldReferenceSpace, FieldReferenceSpace + "_str"} {
		if v, ok := raw[name]; ok {
			s, err := decodeString(v)
			if err != nil {
				return fmt.Errorf("types: field %s: %w", name, err)
			}
			doc.space = ReferenceSpace(s)
			break
		}
	}

	for i, name := range coordinateFields {
		v, ok := raw[name]
		if !ok {
			break
		}
		f, err := decodeFloat(v)
		if err != nil {
			return fmt.Errorf("types: field %s: %w", name, err)
		}
		doc.coords[i] = f
		doc.dims = i + 1
	}

	*d = doc
	return nil
}

// MarshalJSON encodes the document back to its flattened form.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.raw)+2+d.dims)
	for k, v := range d.raw {
		out[k] = v
	}
	if d.id != "" {
		out[FieldID] = string(d.id)
	}
	if d.space != "" {
		out[FieldReferenceSpace] = string(d.space)
	}
	for i := 0; i < d.dims; i++ {
		out[coordinateFields[i]] = d.coords[i]
	}
	return json.Marshal(out)
}

func decodeString(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var ss []string
	if err := json.Unmarshal(v, &ss); err != nil {
		return "", err
	}
	if len(ss) == 0 {
		return "", nil
	}
	return ss[0], nil
}

func decodeFloat(v json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, nil
	}
	var fs []float64
	if err := json.Unmarshal(v, &fs); err != nil {
		return 0, err
	}
	if len(fs) == 0 {
		return 0, fmt.Errorf("empty coordinate array")
	}
	return fs[0], nil
}
