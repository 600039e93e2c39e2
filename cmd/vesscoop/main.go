// Command vesscoop measures how much of each cell in a folder of
// microscopy stacks overlaps blood vessels.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/h39s/VessCoopJ/internal/classifier"
	"github.com/h39s/VessCoopJ/internal/config"
	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/gui"
	"github.com/h39s/VessCoopJ/internal/imageio"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/pipeline"
	"github.com/h39s/VessCoopJ/internal/prompt"
	"github.com/h39s/VessCoopJ/internal/shutdown"
	"github.com/h39s/VessCoopJ/internal/storage"
)

const AppVersion = "1.0.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "vesscoop:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for errors that stop a batch before or between images and
// 1 for everything else.
func exitCode(err error) int {
	if apperrors.Fatal(err) {
		return 2
	}
	return 1
}

func run(args []string) error {
	fs := flag.NewFlagSet("vesscoop", flag.ContinueOnError)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := flags.Load()
	if err != nil {
		return err
	}
	if flags.WriteConfig != "" {
		return config.SaveConfig(cfg, flags.WriteConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewStderr(logger.Format(cfg.Logging.Format), cfg.Logging.Level)
	if err != nil {
		return apperrors.NewConfigurationError("logging", err)
	}
	log.Info("Main", "starting", map[string]interface{}{
		"version":  AppVersion,
		"input":    cfg.Input.Dir,
		"output":   cfg.Output.Dest,
		"prompter": cfg.Prompter,
	})

	mgr := shutdown.NewManager(context.Background(), log)
	mgr.Listen()
	defer mgr.Shutdown()

	sink, err := storage.Open(cfg.Output.Dest)
	if err != nil {
		return apperrors.NewConfigurationError("opening output "+cfg.Output.Dest, err)
	}

	decoders := imageio.NewRegistry()
	tiff := imageio.NewTIFFDecoder(cfg.Layout(), cfg.InputCalibration())
	for _, ext := range []string{".tif", ".tiff", cfg.Input.Extension} {
		decoders.Register(ext, tiff)
	}
	log.Debug("Main", "decoders registered", map[string]interface{}{
		"extensions": decoders.Extensions(),
	})

	metrics := pipeline.NewMetrics()
	if cfg.Output.MetricsFile != "" {
		mgr.Register("metrics", shutdown.Func(func() {
			if err := metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
				log.Error("Main", err, map[string]interface{}{"message": "writing metrics file"})
			}
		}))
	}

	opts := pipeline.Options{
		InputDir:      cfg.Input.Dir,
		Extension:     cfg.Input.Extension,
		AbortOnError:  cfg.Processing.OnError == config.OnErrorAbort,
		ExcludeEdges:  cfg.Processing.ExcludeEdges,
		Summary:       cfg.Output.Summary,
		VesselModel:   cfg.Classifier.VesselModel,
		CellModel:     cfg.Classifier.CellModel,
		ClassifyCells: cfg.Classifier.ClassifyCells,
		TrainingDir:   cfg.Classifier.TrainingDir,
		Presets:       cfg.Presets.RunParams(),
	}

	batch := func(ctx context.Context, p prompt.Prompter, log logger.Logger) error {
		start := time.Now()
		driver, err := pipeline.NewDriver(opts, pipeline.Dependencies{
			Decoder:  decoders,
			Loader:   classifier.DNNLoader{Logger: log},
			Prompter: p,
			Sink:     sink,
			Logger:   log,
			Metrics:  metrics,
		})
		if err != nil {
			return err
		}
		defer driver.Close()

		if err := driver.Setup(ctx); err != nil {
			return err
		}
		summary, err := driver.Run(ctx)
		log.Info("Main", "done", map[string]interface{}{
			"processed": len(summary.Processed),
			"skipped":   len(summary.Skipped),
			"duration":  time.Since(start).Round(time.Millisecond).String(),
		})
		return err
	}

	ctx := mgr.Context()
	switch cfg.Prompter {
	case config.PrompterGUI:
		app := gui.NewApplication(log)
		return app.Run(ctx, func(ctx context.Context) error {
			return batch(ctx, app.Prompter(), app.Logger())
		})
	case config.PrompterAuto:
		return batch(ctx, prompt.Auto{}, log)
	default:
		return batch(ctx, prompt.NewConsole(os.Stdin, os.Stdout, cfg.PreviewDir), log)
	}
}
