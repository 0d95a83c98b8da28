package generate

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
)

func decode(t *testing.T, data []byte) []Feature {
	t.Helper()
	var features []Feature
	require.NoError(t, json.Unmarshal(data, &features))
	return features
}

func TestWriteDataset(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, Options{OIDs: 3, PointsPerOID: 4, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	features := decode(t, buf.Bytes())
	require.Len(t, features, 12)

	oids := map[string]int{}
	spaces := map[string]bool{}
	for _, f := range features {
		assert.Equal(t, "Feature", f.Type)
		assert.Equal(t, "Point", f.Geometry.Type)
		require.Len(t, f.Geometry.Coordinates, 1)

		p, err := ParsePoint(f.Geometry.Coordinates[0])
		require.NoError(t, err)
		require.Len(t, p, 3)
		for _, v := range p {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 1.0)
		}

		oids[f.Properties.ID]++
		spaces[f.Geometry.ReferenceSpace] = true
	}
	assert.Len(t, oids, 3)
	for _, c := range oids {
		assert.Equal(t, 4, c)
	}
	assert.Len(t, spaces, 1)
}

func TestWriteIsReproducible(t *testing.T) {
	var a, b, c bytes.Buffer
	_, err := Write(&a, Options{OIDs: 2, PointsPerOID: 2, Seed: 7})
	require.NoError(t, err)
	_, err = Write(&b, Options{OIDs: 2, PointsPerOID: 2, Seed: 7})
	require.NoError(t, err)
	_, err = Write(&c, Options{OIDs: 2, PointsPerOID: 2, Seed: 8})
	require.NoError(t, err)

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
}

func TestWriteNamedSpaceAndDimensions(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, Options{OIDs: 1, PointsPerOID: 2, Dimensions: 2, Space: "MNI", Seed: 3})
	require.NoError(t, err)

	for _, f := range decode(t, buf.Bytes()) {
		assert.Equal(t, "MNI", f.Geometry.ReferenceSpace)
		p, err := ParsePoint(f.Geometry.Coordinates[0])
		require.NoError(t, err)
		assert.Len(t, p, 2)
	}
}

func TestOptionsValidate(t *testing.T) {
	_, err := Write(&bytes.Buffer{}, Options{OIDs: 0, PointsPerOID: 1})
	assert.Equal(t, spatialerrors.CodeInvalidConfig, spatialerrors.GetCode(err))

	_, err = Write(&bytes.Buffer{}, Options{OIDs: 1, PointsPerOID: 0})
	assert.Equal(t, spatialerrors.CodeInvalidConfig, spatialerrors.GetCode(err))

	_, err = Write(&bytes.Buffer{}, Options{OIDs: 1, PointsPerOID: 1, Dimensions: 5})
	assert.Equal(t, spatialerrors.CodeInvalidDimensions, spatialerrors.GetCode(err))
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("0.5, 1, 2e-3")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 0.002}, []float64(p))

	_, err = ParsePoint("a,b")
	assert.Error(t, err)
	_, err = ParsePoint("1,2,3,4,5")
	assert.Error(t, err)
}

func TestProperty_FeatureCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a dataset holds oids times points features", prop.ForAll(
		func(oids, points int) bool {
			var buf bytes.Buffer
			n, err := Write(&buf, Options{OIDs: oids, PointsPerOID: points, Seed: 1})
			if err != nil || n != oids*points {
				return false
			}
			var features []Feature
			if err := json.Unmarshal(buf.Bytes(), &features); err != nil {
				return false
			}
			return len(features) == oids*points
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
