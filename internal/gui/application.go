// Package gui runs a batch behind a small fyne status window and answers
// parameter prompts with modal dialogs.
package gui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"

	"github.com/h39s/VessCoopJ/internal/logger"
)

const (
	AppName         = "VessCoopJ"
	AppID           = "com.h39s.vesscoopj"
	MinWindowWidth  = 640
	MinWindowHeight = 520
)

type Application struct {
	fyneApp  fyne.App
	window   fyne.Window
	status   *StatusBar
	logger   logger.Logger
	prompter *Prompter
}

func NewApplication(log logger.Logger) *Application {
	if log == nil {
		log = logger.Nop()
	}
	fyneApp := app.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(MinWindowWidth, MinWindowHeight))
	window.CenterOnScreen()
	window.SetMaster()

	status := NewStatusBar()
	return &Application{
		fyneApp:  fyneApp,
		window:   window,
		status:   status,
		logger:   statusLogger{Logger: log, status: status},
		prompter: NewPrompter(window, log),
	}
}

// Logger also reports driver progress on the status bar.
func (a *Application) Logger() logger.Logger {
	return a.logger
}

func (a *Application) Prompter() *Prompter {
	return a.prompter
}

// Run shows the window and runs batch on its own goroutine. Closing the
// window cancels the batch context. Run returns once the window is gone and
// the batch has returned.
func (a *Application) Run(ctx context.Context, batch func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.window.SetCloseIntercept(func() {
		a.logger.Info("Application", "window closed", nil)
		cancel()
		a.window.Close()
	})
	a.window.SetContent(a.status.container)
	a.window.Show()

	done := make(chan error, 1)
	go func() {
		err := batch(ctx)
		done <- err
		if ctx.Err() != nil {
			return
		}
		fyne.Do(func() { a.finish(err) })
	}()

	a.fyneApp.Run()
	cancel()
	return <-done
}

func (a *Application) finish(err error) {
	var d dialog.Dialog
	if err != nil {
		a.status.SetStatus("Batch stopped")
		d = dialog.NewError(err, a.window)
	} else {
		a.status.SetStatus("Batch finished")
		d = dialog.NewInformation("Done", "Results were written to the output folder.", a.window)
	}
	d.SetOnClosed(a.fyneApp.Quit)
	d.Show()
}
