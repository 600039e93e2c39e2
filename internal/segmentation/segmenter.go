// Package segmentation turns projected planes into binary cell and vessel
// masks and extracts the individual cell regions.
package segmentation

import (
	"context"

	"github.com/h39s/VessCoopJ/internal/classifier"
	"github.com/h39s/VessCoopJ/internal/models"
)

// CellSegmenter produces a cell mask from the max-combined cell channels.
// One implementation is chosen per batch.
type CellSegmenter interface {
	Segment(ctx context.Context, combined models.Plane) (models.Mask, error)
	Name() string
}

// ClassifierSegmenter labels cells with a trained pixel classifier.
type ClassifierSegmenter struct {
	Classifier classifier.Classifier
}

func NewClassifierSegmenter(c classifier.Classifier) *ClassifierSegmenter {
	return &ClassifierSegmenter{Classifier: c}
}

func (s *ClassifierSegmenter) Name() string {
	return "classifier"
}

func (s *ClassifierSegmenter) Segment(ctx context.Context, combined models.Plane) (models.Mask, error) {
	labels, err := classifier.ApplyChecked(ctx, s.Classifier, combined)
	if err != nil {
		return models.Mask{}, err
	}
	return labels.Foreground(), nil
}
