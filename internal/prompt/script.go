package prompt

import (
	"context"
	"sync"
)

// Answer is a scripted reply. Values override the dialog defaults.
type Answer struct {
	Outcome Outcome
	Values  map[string]interface{}
}

// Script replays queued answers per dialog ID and falls back to confirming
// defaults once a queue is empty. It records every dialog it was shown.
type Script struct {
	mu      sync.Mutex
	answers map[string][]Answer
	shown   []Dialog
}

func NewScript() *Script {
	return &Script{answers: make(map[string][]Answer)}
}

// Queue appends answers for the dialog with the given ID.
func (s *Script) Queue(id string, answers ...Answer) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[id] = append(s.answers[id], answers...)
	return s
}

func (s *Script) Show(ctx context.Context, d Dialog) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, d)

	queue := s.answers[d.ID]
	if len(queue) == 0 {
		return Defaults(d, Confirmed), nil
	}
	a := queue[0]
	s.answers[d.ID] = queue[1:]

	resp := Defaults(d, a.Outcome)
	if resp.Values != nil {
		for k, v := range a.Values {
			resp.Values[k] = v
		}
	}
	return resp, nil
}

// Shown returns the IDs of the dialogs displayed so far, in order.
func (s *Script) Shown() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.shown))
	for i, d := range s.shown {
		ids[i] = d.ID
	}
	return ids
}

// Count returns how many times the dialog with id was shown.
func (s *Script) Count(id string) int {
	n := 0
	for _, shown := range s.Shown() {
		if shown == id {
			n++
		}
	}
	return n
}
