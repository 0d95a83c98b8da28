package export

import (
	"github.com/arkilian/spatialbench/pkg/types"
)

// BucketAverage replaces every consecutive group of size documents by one
// document at their mean position. The group takes the label and space of its
// first document. A trailing group shorter than size is dropped. A size below
// two returns docs unchanged.
func BucketAverage(docs []types.Document, size int) []types.Document {
	if size < 2 {
		return docs
	}

	out := make([]types.Document, 0, len(docs)/size)
	for start := 0; start+size <= len(docs); start += size {
		group := docs[start : start+size]
		first := group[0]
		dims := len(first.Coordinates())

		mean := make(types.Point, dims)
		for _, d := range group {
			p := d.Coordinates()
			for i := 0; i < dims && i < len(p); i++ {
				mean[i] += p[i]
			}
		}
		for i := range mean {
			mean[i] /= float64(size)
		}

		out = append(out, types.NewDocument(first.ID(), first.Space(), mean))
	}
	return out
}

// Slabs cuts box into pages equal slices along the first axis, starting from
// the high end. Slices share faces; together they cover box exactly.
func Slabs(box types.BoundingBox, pages int) []types.BoundingBox {
	if pages < 1 || box.Dimensions() == 0 {
		return nil
	}

	width := (box.High[0] - box.Low[0]) / float64(pages)
	out := make([]types.BoundingBox, pages)
	for i := range out {
		s := types.BoundingBox{Low: box.Low.Clone(), High: box.High.Clone()}
		s.High[0] = box.High[0] - float64(i)*width
		s.Low[0] = box.High[0] - float64(i+1)*width
		if i == pages-1 {
			s.Low[0] = box.Low[0]
		}
		out[i] = s
	}
	return out
}
