package pipeline

import (
	"github.com/h39s/VessCoopJ/internal/classifier"
	"github.com/h39s/VessCoopJ/internal/imageio"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/storage"
)

// Dependencies are the driver's collaborators. Decoder is usually an
// *imageio.Registry; Metrics may be nil.
type Dependencies struct {
	Decoder  imageio.Decoder
	Loader   classifier.Loader
	Prompter prompt.Prompter
	Sink     storage.Sink
	Logger   logger.Logger
	Metrics  *Metrics
}

func (d *Dependencies) fill() {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.Prompter == nil {
		d.Prompter = prompt.Auto{}
	}
}
