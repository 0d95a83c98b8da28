// Package generate writes synthetic datasets of uniformly distributed points
// in the GeoJSON-like feature format the index ingests.
package generate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/pkg/types"
)

// Options configures a dataset.
type Options struct {
	// OIDs is the number of labels in the space
	OIDs int

	// PointsPerOID is the number of points linked to each label
	PointsPerOID int

	// Dimensions of each point (default 3)
	Dimensions int

	// Space names the reference space; empty derives one from the seed
	Space types.ReferenceSpace

	// Seed makes the dataset reproducible; 0 picks a random seed
	Seed int64
}

// Feature is one generated point record.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is the point part of a feature. Coordinates hold a single
// comma-separated string, which is how the index expects point values.
type Geometry struct {
	Type           string   `json:"type"`
	ReferenceSpace string   `json:"referenceSpace"`
	Coordinates    []string `json:"coordinates"`
}

// Properties carries the label of a feature.
type Properties struct {
	ID string `json:"id"`
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.OIDs < 1 {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig,
			fmt.Sprintf("number of oids must be positive, got %d", o.OIDs))
	}
	if o.PointsPerOID < 1 {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig,
			fmt.Sprintf("points per oid must be positive, got %d", o.PointsPerOID))
	}
	if o.Dimensions < 0 || o.Dimensions > types.MaxDimensions {
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidDimensions,
			fmt.Sprintf("dimensions must be between 1 and %d, got %d", types.MaxDimensions, o.Dimensions))
	}
	return nil
}

// Write streams a JSON array of OIDs*PointsPerOID features to w. Every
// coordinate is drawn uniformly from [0, 1).
func Write(w io.Writer, opts Options) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	if opts.Dimensions == 0 {
		opts.Dimensions = 3
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	space := string(opts.Space)
	if space == "" {
		space = "space-" + newID(rng)
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	written := 0

	if _, err := bw.WriteString("[\n"); err != nil {
		return 0, err
	}
	for o := 0; o < opts.OIDs; o++ {
		oid := "oid-" + newID(rng)
		for p := 0; p < opts.PointsPerOID; p++ {
			if written > 0 {
				if _, err := bw.WriteString(","); err != nil {
					return written, err
				}
			}
			f := Feature{
				Type: "Feature",
				Geometry: Geometry{
					Type:           "Point",
					ReferenceSpace: space,
					Coordinates:    []string{formatPoint(randomPoint(rng, opts.Dimensions))},
				},
				Properties: Properties{ID: oid},
			}
			if err := enc.Encode(f); err != nil {
				return written, err
			}
			written++
		}
	}
	if _, err := bw.WriteString("]\n"); err != nil {
		return written, err
	}
	return written, bw.Flush()
}

// ParsePoint parses the comma-separated coordinates of a generated feature.
func ParsePoint(s string) (types.Point, error) {
	parts := strings.Split(s, ",")
	p := make(types.Point, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, spatialerrors.NewValidationError(spatialerrors.CodeInvalidDimensions,
				fmt.Sprintf("invalid coordinate %q", part))
		}
		p[i] = v
	}
	return p, p.Validate()
}

func newID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func randomPoint(rng *rand.Rand, dims int) types.Point {
	p := make(types.Point, dims)
	for i := range p {
		p[i] = rng.Float64()
	}
	return p
}

func formatPoint(p types.Point) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
