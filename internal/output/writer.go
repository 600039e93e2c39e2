// Package output renders per-image artifacts (ROI set, composites, results
// table) and the batch summary, and hands them to a storage sink.
package output

import (
	"fmt"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/storage"
)

// Artifacts is everything written for one image.
type Artifacts struct {
	Name    string
	Regions []models.CellRegion
	Records []models.MeasurementRecord
	Scale   models.ScaleCalibration

	VesselMask  models.Mask
	CellMask    models.Mask
	OverlapMask models.Mask

	Vessel models.Plane
	CellA  models.Plane
	CellB  models.Plane
	NameA  string
	NameB  string
}

// Object names for an image base name.
func ROIName(base string) string     { return base + "_rois.zip" }
func OverlapName(base string) string { return base + "_overlap.tif" }
func CopyName(base string) string    { return base + "_copy.tif" }
func ResultsName(base string) string { return base + "_results.csv" }

const SummaryName = "batch_summary.csv"

type Writer struct {
	sink storage.Sink
	log  logger.Logger
}

func NewWriter(sink storage.Sink, log logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{sink: sink, log: log}
}

// Write emits the four artifacts for one image. The first failure aborts
// the remaining writes.
func (w *Writer) Write(a Artifacts) error {
	steps := []struct {
		name   string
		encode func() ([]byte, error)
	}{
		{ROIName(a.Name), func() ([]byte, error) { return EncodeROISet(a.Regions) }},
		{OverlapName(a.Name), func() ([]byte, error) {
			img, err := MaskComposite(a.VesselMask, a.CellMask, a.OverlapMask)
			if err != nil {
				return nil, err
			}
			return EncodeTIFF(img)
		}},
		{CopyName(a.Name), func() ([]byte, error) {
			img, err := PlaneComposite(a.Vessel, a.CellA, a.CellB)
			if err != nil {
				return nil, err
			}
			return EncodeTIFF(img)
		}},
		{ResultsName(a.Name), func() ([]byte, error) {
			return EncodeResults(a.Records, a.Scale.Unit, a.NameA, a.NameB)
		}},
	}

	for _, s := range steps {
		if err := w.put(s.name, s.encode); err != nil {
			return err
		}
	}
	w.log.Info("OutputWriter", "artifacts written", map[string]interface{}{
		"image":   a.Name,
		"regions": len(a.Regions),
		"results": w.sink.Location(ResultsName(a.Name)),
	})
	return nil
}

// WriteSummary emits the batch summary table.
func (w *Writer) WriteSummary(results []models.ImageResult) error {
	rows := make([]SummaryRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, Summarize(r))
	}
	return w.put(SummaryName, func() ([]byte, error) { return EncodeSummary(rows) })
}

// WriteRaw stores pre-encoded data, e.g. a training stack.
func (w *Writer) WriteRaw(name string, data []byte) error {
	return w.put(name, func() ([]byte, error) { return data, nil })
}

func (w *Writer) put(name string, encode func() ([]byte, error)) error {
	data, err := encode()
	if err != nil {
		return apperrors.NewOutputError(name, fmt.Errorf("encoding: %w", err))
	}
	if err := w.sink.WriteObject(name, data); err != nil {
		return apperrors.NewOutputError(w.sink.Location(name), err)
	}
	w.log.Debug("OutputWriter", "object stored", map[string]interface{}{
		"object": w.sink.Location(name),
		"bytes":  len(data),
	})
	return nil
}
