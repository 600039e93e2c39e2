package pipeline

import (
	"context"

	"github.com/h39s/VessCoopJ/internal/runparams"
)

// TimingTracker times pipeline stages.
type TimingTracker interface {
	StartTiming(operation string) context.Context
	EndTiming(ctx context.Context)
}

// Options configures one batch run.
type Options struct {
	InputDir  string
	Extension string
	// AbortOnError stops the batch on the first per-image failure other
	// than an unreadable file.
	AbortOnError bool
	ExcludeEdges bool
	// Summary writes batch_summary.csv after the last image.
	Summary bool

	// Model paths skip the train/load prompts when set.
	VesselModel string
	CellModel   string
	// ClassifyCells skips the cell-mode prompt when set.
	ClassifyCells *bool
	// TrainingDir is the default folder offered for training exports.
	TrainingDir string

	Presets runparams.Presets
}

// Stage names used in logs, errors and metrics.
const (
	stageSetup      = "setup"
	stageDecode     = "decode"
	stageScale      = "scale"
	stageChannels   = "channels"
	stageProjection = "projection"
	stageCells      = "cell segmentation"
	stageMinSize    = "min cell size"
	stageParticles  = "particles"
	stageVessels    = "vessel segmentation"
	stageMeasure    = "measurement"
	stageOutput     = "output"
	stageTraining   = "training export"
)
