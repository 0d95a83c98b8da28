// Package export turns query results into JSON-lines records for an external
// renderer: points, query boxes, the universe box and per-page slabs.
package export

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/arkilian/spatialbench/pkg/types"
)

// Record kinds.
const (
	KindPoint = "point"
	KindBox   = "box"
)

// Box roles.
const (
	RoleUniverse = "universe"
	RoleQuery    = "query"
	RoleSlice    = "slice"
)

// Record is one line of output. Group ties points and boxes that a renderer
// should draw in the same color (a label or a page number).
type Record struct {
	Kind  string               `json:"kind"`
	Role  string               `json:"role,omitempty"`
	Group string               `json:"group,omitempty"`
	Label types.Label          `json:"label,omitempty"`
	Space types.ReferenceSpace `json:"space,omitempty"`
	Point types.Point          `json:"point,omitempty"`
	Box   *types.BoundingBox   `json:"box,omitempty"`
}

// Writer encodes records as JSON lines. It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	count int
}

// NewWriter writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write encodes one record.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(r); err != nil {
		return err
	}
	w.count++
	return nil
}

// Points writes one point record per document.
func (w *Writer) Points(group string, docs []types.Document) error {
	for _, d := range docs {
		if err := w.Write(Record{
			Kind:  KindPoint,
			Group: group,
			Label: d.ID(),
			Space: d.Space(),
			Point: d.Coordinates(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Box writes one box record.
func (w *Writer) Box(role, group string, b types.BoundingBox) error {
	box := types.BoundingBox{Low: b.Low.Clone(), High: b.High.Clone()}
	return w.Write(Record{Kind: KindBox, Role: role, Group: group, Box: &box})
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
