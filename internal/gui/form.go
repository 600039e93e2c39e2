package gui

import (
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/h39s/VessCoopJ/internal/prompt"
)

type fieldInput struct {
	field prompt.Field
	check *widget.Check
	entry *widget.Entry
}

// form renders dialog fields as widgets and reads them back.
type form struct {
	container *fyne.Container
	inputs    []fieldInput
}

func newForm(fields []prompt.Field) *form {
	f := &form{container: container.NewVBox()}

	for _, field := range fields {
		switch field.Kind {
		case prompt.FieldMessage:
			label := widget.NewLabel(field.Label)
			label.Wrapping = fyne.TextWrapWord
			f.container.Add(label)

		case prompt.FieldCheckbox:
			check := widget.NewCheck(field.Label, nil)
			check.SetChecked(field.Bool)
			f.container.Add(check)
			f.inputs = append(f.inputs, fieldInput{field: field, check: check})

		case prompt.FieldNumber, prompt.FieldText:
			entry := widget.NewEntry()
			if field.Kind == prompt.FieldNumber {
				entry.SetText(strconv.FormatFloat(field.Number, 'f', field.Digits, 64))
				entry.Validator = func(s string) error {
					_, err := prompt.ParseValue(field, strings.TrimSpace(s))
					return err
				}
			} else {
				entry.SetText(field.Text)
			}
			f.container.Add(container.NewBorder(nil, nil, widget.NewLabel(field.Label), nil, entry))
			f.inputs = append(f.inputs, fieldInput{field: field, entry: entry})
		}
	}
	return f
}

// values parses every input. The first unparseable entry is reported.
func (f *form) values() (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(f.inputs))
	for _, in := range f.inputs {
		if in.check != nil {
			values[in.field.Key] = in.check.Checked
			continue
		}
		v, err := prompt.ParseValue(in.field, strings.TrimSpace(in.entry.Text))
		if err != nil {
			return nil, err
		}
		values[in.field.Key] = v
	}
	return values, nil
}

func (f *form) entry(key string) *widget.Entry {
	for _, in := range f.inputs {
		if in.field.Key == key {
			return in.entry
		}
	}
	return nil
}
