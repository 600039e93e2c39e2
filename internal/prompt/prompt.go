// Package prompt defines the interactive question/answer contract used when a
// run parameter is not yet locked, plus terminal and headless implementations.
package prompt

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
)

type Outcome int

const (
	Confirmed Outcome = iota
	Declined
	Alternate
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Declined:
		return "declined"
	case Alternate:
		return "alternate"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

type FieldKind int

const (
	FieldMessage FieldKind = iota
	FieldCheckbox
	FieldNumber
	FieldText
)

// Field is one row of a dialog. Messages carry no value.
type Field struct {
	Key    string
	Label  string
	Kind   FieldKind
	Bool   bool
	Number float64
	Digits int
	Text   string
}

func Message(text string) Field {
	return Field{Kind: FieldMessage, Label: text}
}

func Checkbox(key, label string, def bool) Field {
	return Field{Key: key, Label: label, Kind: FieldCheckbox, Bool: def}
}

func Number(key, label string, def float64, digits int) Field {
	return Field{Key: key, Label: label, Kind: FieldNumber, Number: def, Digits: digits}
}

func Text(key, label, def string) Field {
	return Field{Key: key, Label: label, Kind: FieldText, Text: def}
}

// Dialog is a modal question. AltLabel, when set, offers a second
// affirmative action that yields Alternate together with the field values.
type Dialog struct {
	ID          string
	Title       string
	Fields      []Field
	OKLabel     string
	AltLabel    string
	CancelLabel string
	Preview     image.Image
}

// Response is the user's answer. Values are present for Confirmed and
// Alternate outcomes.
type Response struct {
	Outcome Outcome
	Values  map[string]interface{}
}

func (r Response) Bool(key string) bool {
	v, _ := r.Values[key].(bool)
	return v
}

func (r Response) Number(key string) float64 {
	switch v := r.Values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return math.NaN()
	}
}

// Int rounds a numeric answer to the nearest integer.
func (r Response) Int(key string) int {
	n := r.Number(key)
	if math.IsNaN(n) {
		return 0
	}
	return int(math.Round(n))
}

func (r Response) String(key string) string {
	v, _ := r.Values[key].(string)
	return v
}

// HasValues reports whether the outcome carries field values.
func (r Response) HasValues() bool {
	return r.Outcome != Declined
}

// Prompter shows a dialog and blocks until it is answered or ctx ends.
type Prompter interface {
	Show(ctx context.Context, d Dialog) (Response, error)
}

// Defaults answers d with every field's default value.
func Defaults(d Dialog, outcome Outcome) Response {
	values := make(map[string]interface{}, len(d.Fields))
	for _, f := range d.Fields {
		switch f.Kind {
		case FieldCheckbox:
			values[f.Key] = f.Bool
		case FieldNumber:
			values[f.Key] = f.Number
		case FieldText:
			values[f.Key] = f.Text
		}
	}
	if outcome == Declined {
		values = nil
	}
	return Response{Outcome: outcome, Values: values}
}

// ParseValue converts raw text input for field f.
func ParseValue(f Field, raw string) (interface{}, error) {
	switch f.Kind {
	case FieldCheckbox:
		switch raw {
		case "y", "Y", "yes", "true", "1":
			return true, nil
		case "n", "N", "no", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%s: expected yes or no", f.Label)
	case FieldNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: %q is not a number", f.Label, raw)
		}
		return v, nil
	case FieldText:
		return raw, nil
	default:
		return nil, fmt.Errorf("%s: field takes no value", f.Label)
	}
}

// Auto answers without a user. Dialogs that can be cancelled are declined,
// so optional steps such as classifier training are skipped and questions
// like "Classify cells?" take their fallback. Every other dialog is
// confirmed with its defaults.
type Auto struct{}

func (Auto) Show(ctx context.Context, d Dialog) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if d.CancelLabel != "" {
		return Defaults(d, Declined), nil
	}
	return Defaults(d, Confirmed), nil
}
