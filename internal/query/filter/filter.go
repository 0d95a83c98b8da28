// Package filter encodes spatial predicates (points, boxes, labels and
// reference spaces) into index filter-query strings.
package filter

import (
	"fmt"
	"strings"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Filter is a single filter-query string. The empty Filter matches everything.
type Filter string

// String returns the filter text.
func (f Filter) String() string { return string(f) }

// IsEmpty reports whether the filter is the identity.
func (f Filter) IsEmpty() bool { return strings.TrimSpace(string(f)) == "" }

// And conjoins the non-empty filters. Disjunctions are parenthesized.
func And(filters ...Filter) Filter {
	return join(" AND ", filters, true)
}

// Or disjoins the non-empty filters.
func Or(filters ...Filter) Filter {
	return join(" OR ", filters, false)
}

func join(sep string, filters []Filter, group bool) Filter {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f.IsEmpty() {
			continue
		}
		s := string(f)
		if group && len(filters) > 1 && strings.Contains(s, " OR ") {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return Filter(strings.Join(parts, sep))
}

// Boundary selects whether range filters include the box surface.
type Boundary int

const (
	// Inclusive ranges match points on the box surface: [low TO high]
	Inclusive Boundary = iota
	// Exclusive ranges match strictly interior points: {low TO high}
	Exclusive
)

// String returns the configuration name of the boundary mode.
func (b Boundary) String() string {
	if b == Exclusive {
		return "exclusive"
	}
	return "inclusive"
}

// ParseBoundary maps a configuration value to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(s) {
	case "", "inclusive":
		return Inclusive, nil
	case "exclusive":
		return Exclusive, nil
	default:
		return Inclusive, spatialerrors.NewValidationError(spatialerrors.CodeInvalidFilter,
			fmt.Sprintf("unknown boundary mode %q (must be inclusive or exclusive)", s))
	}
}

func (b Boundary) brackets() (openB, closeB byte) {
	if b == Exclusive {
		return '{', '}'
	}
	return '[', ']'
}

// Fields names the document fields the encoder targets.
type Fields struct {
	// ID is the label field
	ID string
	// Space is the reference-space field
	Space string
	// Coordinates is the composite multi-dimensional point field
	Coordinates string
}

// DefaultFields returns the field names of the flattened document layout.
func DefaultFields() Fields {
	return Fields{
		ID:          types.FieldID,
		Space:       types.FieldReferenceSpace + "_str",
		Coordinates: types.FieldCoordinates,
	}
}

// Encoder turns typed spatial values into filter strings.
// The zero value is not usable; use NewEncoder or Default.
type Encoder struct {
	fields   Fields
	boundary Boundary
}

// NewEncoder creates an encoder over the given fields and boundary mode.
// Empty field names fall back to the defaults.
func NewEncoder(fields Fields, boundary Boundary) *Encoder {
	def := DefaultFields()
	if fields.ID == "" {
		fields.ID = def.ID
	}
	if fields.Space == "" {
		fields.Space = def.Space
	}
	if fields.Coordinates == "" {
		fields.Coordinates = def.Coordinates
	}
	return &Encoder{fields: fields, boundary: boundary}
}

// Default is the encoder over DefaultFields with inclusive boundaries.
var Default = NewEncoder(DefaultFields(), Inclusive)

// Fields returns the field names the encoder targets.
func (e *Encoder) Fields() Fields { return e.fields }

// Boundary returns the range boundary mode.
func (e *Encoder) Boundary() Boundary { return e.boundary }

// WithBoundary returns an encoder over the same fields with boundary b.
func (e *Encoder) WithBoundary(b Boundary) *Encoder {
	if e.boundary == b {
		return e
	}
	return &Encoder{fields: e.fields, boundary: b}
}

// PointToFilter returns the exact-match conjunction of one term per coordinate.
func (e *Encoder) PointToFilter(p types.Point) (Filter, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	terms := make([]string, len(p))
	for d, c := range p {
		terms[d] = fmt.Sprintf("%s:%f", types.CoordinateField(d), c)
	}
	return Filter(strings.Join(terms, " AND ")), nil
}

// BBoxToFilter returns a single range predicate over the composite coordinate field.
func (e *Encoder) BBoxToFilter(b types.BoundingBox) (Filter, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	openB, closeB := e.boundary.brackets()
	return Filter(fmt.Sprintf("%s:%c%s TO %s%c",
		e.fields.Coordinates, openB, pointToString(b.Low), pointToString(b.High), closeB)), nil
}

// LabelToFilter returns the equality predicate selecting one label.
func (e *Encoder) LabelToFilter(l types.Label) Filter {
	return Filter(e.fields.ID + ":" + Escape(string(l)))
}

// LabelsToFilter returns the disjunction of one equality predicate per label.
// No labels yields the empty filter.
func (e *Encoder) LabelsToFilter(labels []types.Label) Filter {
	terms := make([]Filter, len(labels))
	for i, l := range labels {
		terms[i] = e.LabelToFilter(l)
	}
	return Or(terms...)
}

// SpaceToFilter returns the reference-space equality predicate.
func (e *Encoder) SpaceToFilter(s types.ReferenceSpace) Filter {
	return Filter(e.fields.Space + ":" + Escape(string(s)))
}

// UnionFilter returns the disjunction of one range predicate per box.
func (e *Encoder) UnionFilter(boxes []types.BoundingBox) (Filter, error) {
	terms := make([]Filter, len(boxes))
	for i, b := range boxes {
		f, err := e.BBoxToFilter(b)
		if err != nil {
			return "", err
		}
		terms[i] = f
	}
	return Or(terms...), nil
}

func pointToString(p types.Point) string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = fmt.Sprintf("%f", c)
	}
	return strings.Join(parts, ", ")
}

// PointToFilter encodes p with the default encoder.
func PointToFilter(p types.Point) (Filter, error) { return Default.PointToFilter(p) }

// BBoxToFilter encodes b with the default encoder.
func BBoxToFilter(b types.BoundingBox) (Filter, error) { return Default.BBoxToFilter(b) }

// LabelToFilter encodes l with the default encoder.
func LabelToFilter(l types.Label) Filter { return Default.LabelToFilter(l) }

// LabelsToFilter encodes labels with the default encoder.
func LabelsToFilter(labels []types.Label) Filter { return Default.LabelsToFilter(labels) }

// SpaceToFilter encodes s with the default encoder.
func SpaceToFilter(s types.ReferenceSpace) Filter { return Default.SpaceToFilter(s) }

// UnionFilter encodes boxes with the default encoder.
func UnionFilter(boxes []types.BoundingBox) (Filter, error) { return Default.UnionFilter(boxes) }
