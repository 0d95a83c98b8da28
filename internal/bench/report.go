package bench

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
)

// Report formats.
const (
	FormatSamples = "samples"
	FormatSummary = "summary"
)

// WriteReport writes stats in the given format.
func WriteReport(w io.Writer, format string, stats []QueryStats) error {
	switch format {
	case "", FormatSamples:
		return WriteSamples(w, stats)
	case FormatSummary:
		return WriteSummary(w, stats)
	default:
		return spatialerrors.NewValidationError(spatialerrors.CodeInvalidConfig,
			fmt.Sprintf("unknown report format %q (must be samples or summary)", format))
	}
}

// WriteSamples writes one row per query: label, requested repetitions, then
// every timing in seconds with 16 decimals.
func WriteSamples(w io.Writer, stats []QueryStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Query", "counts", "timing"}); err != nil {
		return err
	}
	for _, s := range stats {
		row := make([]string, 0, 2+len(s.Timings))
		row = append(row, s.Label, strconv.Itoa(s.Repetitions))
		for _, t := range s.Timings {
			row = append(row, fmt.Sprintf("%.16f", t))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes one row of aggregate statistics per query.
func WriteSummary(w io.Writer, stats []QueryStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range stats {
		if err := cw.Write(summaryRow(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var summaryHeader = []string{"Query", "mean", "stddev", "median", "min", "max", "counts"}

func summaryRow(s QueryStats) []string {
	return []string{
		s.Label,
		fmt.Sprintf("%f", s.Mean),
		fmt.Sprintf("%f", s.StdDev),
		fmt.Sprintf("%f", s.Median),
		fmt.Sprintf("%f", s.Min),
		fmt.Sprintf("%f", s.Max),
		strconv.Itoa(s.Count()),
	}
}

// Dataset is one samples report read back from disk.
type Dataset struct {
	// Name is the file name without its extension
	Name    string
	Stats   []QueryStats
	Skipped [][]string
}

// DatasetName strips the directory and the last extension from path.
func DatasetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadSamples parses a report in the samples format. The header is ignored.
// Rows without a label, a repetition count and at least one numeric timing
// are returned as skipped rather than failing the read.
func ReadSamples(r io.Reader) ([]QueryStats, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		stats   []QueryStats
		skipped [][]string
		first   = true
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, row)
				continue
			}
			return nil, nil, err
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "Query" {
				continue
			}
		}

		qs, ok := parseSamplesRow(row)
		if !ok {
			skipped = append(skipped, row)
			continue
		}
		stats = append(stats, qs)
	}
	return stats, skipped, nil
}

func parseSamplesRow(row []string) (QueryStats, bool) {
	if len(row) < 3 || strings.TrimSpace(row[0]) == "" {
		return QueryStats{}, false
	}
	reps, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return QueryStats{}, false
	}
	timings := make([]float64, 0, len(row)-2)
	for _, field := range row[2:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return QueryStats{}, false
		}
		timings = append(timings, v)
	}
	qs := Summarize(strings.TrimSpace(row[0]), timings)
	qs.Repetitions = reps
	return qs, true
}

// WriteDatasets writes the summary of several datasets, prefixing every row
// with the dataset name.
func WriteDatasets(w io.Writer, datasets []Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Dataset"}, summaryHeader...)); err != nil {
		return err
	}
	for _, d := range datasets {
		for _, s := range d.Stats {
			if err := cw.Write(append([]string{d.Name}, summaryRow(s)...)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
