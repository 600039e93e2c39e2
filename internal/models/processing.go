package models

import (
	"image"
	"time"
)

// CellRegion is one connected cell after particle filtering. Pixels are in
// raster order; Boundary is the outline along pixel corners used for ROI
// export.
type CellRegion struct {
	Index    int
	Pixels   []image.Point
	Boundary []image.Point
	Bounds   image.Rectangle
	Feret    float64
}

func (r CellRegion) Area() int {
	return len(r.Pixels)
}

// MeasurementRecord is one row of the results table.
type MeasurementRecord struct {
	MaxWidth          float64
	VesselOverlapArea float64
	CellArea          float64
	OverlapPercentage float64
	MeanIntensityA    float64
	MeanIntensityB    float64

	TotalPixels   int
	OverlapPixels int
}

// ChannelSelection picks a 1-based channel and gives it a display name.
type ChannelSelection struct {
	Channel int
	Name    string
}

// VesselSelection picks the vessel channel and the first slice to project.
type VesselSelection struct {
	Channel  int
	MinSlice int
}

// ThresholdParams configures the adaptive local threshold.
type ThresholdParams struct {
	Threshold float64
	Radius    float64
}

// ImageResult summarizes one processed image for logging and the batch summary.
type ImageResult struct {
	Name        string
	Records     []MeasurementRecord
	Scale       ScaleCalibration
	ProcessTime time.Duration
}
