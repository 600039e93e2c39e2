package gui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/prompt"
)

const (
	PreviewWidth  = 480
	PreviewHeight = 360
)

// Prompter shows each dialog as a modal over the status window. Show may
// be called from any goroutine; widgets are only touched inside fyne.Do.
type Prompter struct {
	window fyne.Window
	logger logger.Logger
}

func NewPrompter(window fyne.Window, log logger.Logger) *Prompter {
	if log == nil {
		log = logger.Nop()
	}
	return &Prompter{window: window, logger: log}
}

func (p *Prompter) Show(ctx context.Context, d prompt.Dialog) (prompt.Response, error) {
	if err := ctx.Err(); err != nil {
		return prompt.Response{}, err
	}

	answers := make(chan prompt.Response, 1)
	var open *modal
	fyne.Do(func() {
		open = p.open(d, answers)
	})

	select {
	case resp := <-answers:
		p.logger.Debug("GUIPrompter", "dialog answered", map[string]interface{}{
			"dialog":  d.ID,
			"outcome": resp.Outcome.String(),
		})
		return resp, nil
	case <-ctx.Done():
		fyne.Do(func() {
			if open != nil {
				open.dialog.Hide()
			}
		})
		return prompt.Response{}, ctx.Err()
	}
}

// modal is an open dialog with handles on its buttons.
type modal struct {
	dialog   *dialog.CustomDialog
	form     *form
	ok       *widget.Button
	alt      *widget.Button
	cancel   *widget.Button
	answered bool
}

// open builds and shows the dialog. It must run on the fyne main goroutine.
func (p *Prompter) open(d prompt.Dialog, answers chan<- prompt.Response) *modal {
	m := &modal{form: newForm(d.Fields)}

	var content fyne.CanvasObject = container.NewVScroll(m.form.container)
	if d.Preview != nil {
		img := canvas.NewImageFromImage(d.Preview)
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(PreviewWidth, PreviewHeight))
		content = container.NewBorder(img, nil, nil, nil, content)
	}
	m.dialog = dialog.NewCustomWithoutButtons(d.Title, content, p.window)

	reply := func(resp prompt.Response) {
		if m.answered {
			return
		}
		m.answered = true
		answers <- resp
		m.dialog.Hide()
	}
	submit := func(outcome prompt.Outcome) func() {
		return func() {
			values, err := m.form.values()
			if err != nil {
				dialog.ShowError(err, p.window)
				return
			}
			reply(prompt.Response{Outcome: outcome, Values: values})
		}
	}

	var buttons []fyne.CanvasObject
	if d.CancelLabel != "" {
		m.cancel = widget.NewButton(d.CancelLabel, func() {
			reply(prompt.Response{Outcome: prompt.Declined})
		})
		buttons = append(buttons, m.cancel)
	}
	if d.AltLabel != "" {
		m.alt = widget.NewButton(d.AltLabel, submit(prompt.Alternate))
		buttons = append(buttons, m.alt)
	}
	okLabel := d.OKLabel
	if okLabel == "" {
		okLabel = "OK"
	}
	m.ok = widget.NewButton(okLabel, submit(prompt.Confirmed))
	m.ok.Importance = widget.HighImportance
	buttons = append(buttons, m.ok)

	m.dialog.SetButtons(buttons)
	m.dialog.SetOnClosed(func() {
		reply(prompt.Response{Outcome: prompt.Declined})
	})
	m.dialog.Show()
	return m
}
