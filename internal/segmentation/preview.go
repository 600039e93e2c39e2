package segmentation

import "fmt"

// PreviewState is a step of the interactive threshold loop.
type PreviewState int

const (
	StatePreview PreviewState = iota
	StateAdjust
	StateLocked
)

func (s PreviewState) String() string {
	switch s {
	case StatePreview:
		return "preview"
	case StateAdjust:
		return "adjust"
	case StateLocked:
		return "locked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type PreviewEvent int

const (
	// EventAccept: the shown mask is accepted for this image.
	EventAccept PreviewEvent = iota
	// EventRequestAdjust: new parameters were entered and a fresh preview is wanted.
	EventRequestAdjust
	// EventRecomputed: the mask was rebuilt from the clean image.
	EventRecomputed
)

func (e PreviewEvent) String() string {
	switch e {
	case EventAccept:
		return "accept"
	case EventRequestAdjust:
		return "request_adjust"
	case EventRecomputed:
		return "recomputed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Next is the transition function of the preview loop. Locked is terminal.
func Next(s PreviewState, e PreviewEvent) (PreviewState, error) {
	switch {
	case s == StatePreview && e == EventAccept:
		return StateLocked, nil
	case s == StatePreview && e == EventRequestAdjust:
		return StateAdjust, nil
	case s == StateAdjust && e == EventRecomputed:
		return StatePreview, nil
	default:
		return s, fmt.Errorf("invalid transition from %v on %v", s, e)
	}
}
