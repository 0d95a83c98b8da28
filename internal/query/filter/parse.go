package filter

import (
	"fmt"
	"strconv"
	"strings"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Range is a decoded range predicate.
type Range struct {
	Field    string
	Box      types.BoundingBox
	Boundary Boundary
}

// ParseRange decodes a single range predicate of the form
// field:[l0, l1 TO h0, h1] (or {...} for exclusive ranges).
// Corner values may be quoted.
func ParseRange(f Filter) (Range, error) {
	s := strings.TrimSpace(string(f))

	colon := indexUnescaped(s, ':')
	if colon <= 0 || colon == len(s)-1 {
		return Range{}, invalidFilter(f, "missing field prefix")
	}
	field := s[:colon]
	body := s[colon+1:]

	var boundary Boundary
	switch {
	case body[0] == '[' && body[len(body)-1] == ']':
		boundary = Inclusive
	case body[0] == '{' && body[len(body)-1] == '}':
		boundary = Exclusive
	default:
		return Range{}, invalidFilter(f, "range must be enclosed in [] or {}")
	}
	body = body[1 : len(body)-1]

	lowText, highText, ok := strings.Cut(body, " TO ")
	if !ok {
		return Range{}, invalidFilter(f, "missing TO separator")
	}

	low, err := parsePoint(lowText)
	if err != nil {
		return Range{}, invalidFilter(f, err.Error())
	}
	high, err := parsePoint(highText)
	if err != nil {
		return Range{}, invalidFilter(f, err.Error())
	}

	box := types.BoundingBox{Low: low, High: high}
	if err := box.Validate(); err != nil {
		return Range{}, err
	}

	return Range{Field: field, Box: box, Boundary: boundary}, nil
}

// ParseUnion decodes a disjunction of range predicates as produced by UnionFilter.
func ParseUnion(f Filter) ([]Range, error) {
	if f.IsEmpty() {
		return nil, nil
	}
	parts := strings.Split(string(f), " OR ")
	ranges := make([]Range, 0, len(parts))
	for _, part := range parts {
		r, err := ParseRange(Filter(strings.Trim(strings.TrimSpace(part), "()")))
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parsePoint(text string) (types.Point, error) {
	text = strings.Trim(strings.TrimSpace(text), `"`)
	parts := strings.Split(text, ",")
	p := make(types.Point, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q", part)
		}
		p = append(p, v)
	}
	return p, nil
}

// FieldNames returns the distinct field names referenced by f, in order of
// first appearance.
func FieldNames(f Filter) []string {
	var names []string
	seen := make(map[string]bool)

	s := string(f)
	start := -1
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
			start = -1
		case isFieldChar(ch):
			if start < 0 && (i == 0 || isTermBoundary(s[i-1])) {
				start = i
			}
		case ch == ':' && start >= 0:
			name := s[start:i]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			start = -1
		default:
			start = -1
		}
	}
	return names
}

func isFieldChar(ch byte) bool {
	return ch == '_' || ch == '.' || ch == '*' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func isTermBoundary(ch byte) bool {
	return ch == ' ' || ch == '(' || ch == '\t' || ch == '\n'
}

func indexUnescaped(s string, target byte) int {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == target:
			return i
		}
	}
	return -1
}

func invalidFilter(f Filter, reason string) error {
	return spatialerrors.NewValidationError(spatialerrors.CodeInvalidFilter,
		fmt.Sprintf("cannot parse range %q: %s", string(f), reason))
}
