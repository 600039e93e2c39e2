package output

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"

	"github.com/h39s/VessCoopJ/internal/models"

	"gonum.org/v1/gonum/stat"
)

// ResultsHeader builds the per-image column names for a unit and the two
// cell channel display names.
func ResultsHeader(unit, nameA, nameB string) []string {
	return []string{
		"Maximum Cell Width (" + unit + ")",
		"Cell-Vessel Overlap (" + unit + "^2)",
		"Total Cell Area (" + unit + "^2)",
		"% of Cell Area Overlapping with Vessel",
		"Average Intensity in " + nameA + " (per pixel)",
		"Average Intensity in " + nameB + " (per pixel)",
	}
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// EncodeResults renders one row per record.
func EncodeResults(records []models.MeasurementRecord, unit, nameA, nameB string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ResultsHeader(unit, nameA, nameB)); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			formatValue(r.MaxWidth),
			formatValue(r.VesselOverlapArea),
			formatValue(r.CellArea),
			formatValue(r.OverlapPercentage),
			formatValue(r.MeanIntensityA),
			formatValue(r.MeanIntensityB),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SummaryRow aggregates one image for the batch summary.
type SummaryRow struct {
	Image           string
	Unit            string
	Cells           int
	MeanCellArea    float64
	StdDevCellArea  float64
	MeanOverlapPerc float64
}

// Summarize computes the summary row for one image. Degenerate records
// (NaN percentage) count as cells but are left out of the overlap mean.
func Summarize(res models.ImageResult) SummaryRow {
	row := SummaryRow{
		Image:           res.Name,
		Unit:            res.Scale.Unit,
		Cells:           len(res.Records),
		MeanCellArea:    math.NaN(),
		StdDevCellArea:  math.NaN(),
		MeanOverlapPerc: math.NaN(),
	}
	if len(res.Records) == 0 {
		return row
	}
	areas := make([]float64, 0, len(res.Records))
	var percs []float64
	for _, r := range res.Records {
		areas = append(areas, r.CellArea)
		if !math.IsNaN(r.OverlapPercentage) {
			percs = append(percs, r.OverlapPercentage)
		}
	}
	row.MeanCellArea = stat.Mean(areas, nil)
	if len(areas) > 1 {
		row.StdDevCellArea = stat.StdDev(areas, nil)
	} else {
		row.StdDevCellArea = 0
	}
	if len(percs) > 0 {
		row.MeanOverlapPerc = stat.Mean(percs, nil)
	}
	return row
}

// EncodeSummary renders the batch summary, one row per image.
func EncodeSummary(rows []SummaryRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"Image", "Unit", "Cells", "Mean Cell Area", "Std Dev Cell Area", "Mean % Overlap"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.Image,
			r.Unit,
			strconv.Itoa(r.Cells),
			formatValue(r.MeanCellArea),
			formatValue(r.StdDevCellArea),
			formatValue(r.MeanOverlapPerc),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
