package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/h39s/VessCoopJ/internal/logger"
)

// StatusBar shows the current batch step and running totals.
type StatusBar struct {
	container   *fyne.Container
	statusLabel *widget.Label
	countsLabel *widget.Label

	total     int
	processed int
	failed    int
}

func NewStatusBar() *StatusBar {
	statusLabel := widget.NewLabel("Waiting for setup")
	statusLabel.Wrapping = fyne.TextWrapWord
	countsLabel := widget.NewLabel("")

	return &StatusBar{
		container:   container.NewVBox(statusLabel, widget.NewSeparator(), countsLabel),
		statusLabel: statusLabel,
		countsLabel: countsLabel,
	}
}

func (sb *StatusBar) SetStatus(status string) {
	sb.statusLabel.SetText(status)
}

// Report updates the bar from a driver log entry. Must run on the fyne
// main goroutine.
func (sb *StatusBar) Report(message string, fields map[string]interface{}) {
	switch message {
	case "batch started":
		if n, ok := fields["images"].(int); ok {
			sb.total = n
		}
	case "image processed":
		sb.processed++
	case "image failed":
		sb.failed++
	}

	if file, ok := fields["file"].(string); ok {
		sb.statusLabel.SetText(message + ": " + file)
	} else {
		sb.statusLabel.SetText(message)
	}
	if sb.total > 0 {
		sb.countsLabel.SetText(fmt.Sprintf("%d of %d processed, %d failed", sb.processed, sb.total, sb.failed))
	}
}

// statusLogger forwards driver progress to the status bar.
type statusLogger struct {
	logger.Logger
	status *StatusBar
}

func (s statusLogger) Info(component, message string, fields map[string]interface{}) {
	s.Logger.Info(component, message, fields)
	if component == "Driver" {
		fyne.Do(func() { s.status.Report(message, fields) })
	}
}

func (s statusLogger) Error(component string, err error, fields map[string]interface{}) {
	s.Logger.Error(component, err, fields)
	if msg, ok := fields["message"].(string); ok && component == "Driver" {
		fyne.Do(func() { s.status.Report(msg, fields) })
	}
}
