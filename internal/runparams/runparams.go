// Package runparams caches user-chosen parameters across the images of one
// batch run. A locked parameter is reused without asking again.
package runparams

import (
	"context"

	"github.com/h39s/VessCoopJ/internal/models"
)

// ResolveFunc asks for a value given the current one. It reports whether the
// answer should be locked for the rest of the run.
type ResolveFunc[T any] func(ctx context.Context, current T) (value T, lock bool, err error)

type Parameter[T any] struct {
	value  T
	locked bool
}

func NewParameter[T any](initial T) *Parameter[T] {
	return &Parameter[T]{value: initial}
}

func (p *Parameter[T]) Value() T {
	return p.value
}

func (p *Parameter[T]) Locked() bool {
	return p.locked
}

// Lock stores v and stops further prompting.
func (p *Parameter[T]) Lock(v T) {
	p.value = v
	p.locked = true
}

// Set stores v without locking.
func (p *Parameter[T]) Set(v T) {
	p.value = v
}

// Resolve returns the cached value when locked, otherwise it asks fn and
// stores the answer. On error the cache is left untouched.
func (p *Parameter[T]) Resolve(ctx context.Context, fn ResolveFunc[T]) (T, error) {
	if p.locked {
		return p.value, nil
	}
	v, lock, err := fn(ctx, p.value)
	if err != nil {
		return p.value, err
	}
	p.value = v
	if lock {
		p.locked = true
	}
	return v, nil
}

const (
	DefaultThreshold   = 15
	DefaultRadius      = 15
	DefaultMinCellSize = 20
)

// Cache holds one Parameter per family for a batch run. It is passed by
// reference to every stage that needs it.
type Cache struct {
	Vessel      *Parameter[models.VesselSelection]
	CellA       *Parameter[models.ChannelSelection]
	CellB       *Parameter[models.ChannelSelection]
	Scale       *Parameter[models.ScaleCalibration]
	Threshold   *Parameter[models.ThresholdParams]
	MinCellSize *Parameter[float64]
}

func NewCache() *Cache {
	return &Cache{
		Vessel:      NewParameter(models.VesselSelection{Channel: 1, MinSlice: 1}),
		CellA:       NewParameter(models.ChannelSelection{Channel: 1, Name: "Cell Channel 1"}),
		CellB:       NewParameter(models.ChannelSelection{Channel: 2, Name: "Cell Channel 2"}),
		Scale:       NewParameter(models.DefaultScale()),
		Threshold:   NewParameter(models.ThresholdParams{Threshold: DefaultThreshold, Radius: DefaultRadius}),
		MinCellSize: NewParameter(float64(DefaultMinCellSize)),
	}
}

// ChannelsLocked reports whether no channel prompt will be shown for the
// next image, so the image preview can stay hidden.
func (c *Cache) ChannelsLocked() bool {
	return c.Vessel.Locked() && c.CellA.Locked() && c.CellB.Locked()
}

// Presets pre-lock parameter families. Nil fields are left for prompting.
type Presets struct {
	Vessel      *models.VesselSelection
	CellA       *models.ChannelSelection
	CellB       *models.ChannelSelection
	Scale       *models.ScaleCalibration
	Threshold   *models.ThresholdParams
	MinCellSize *float64
}

func (c *Cache) Apply(p Presets) {
	if p.Vessel != nil {
		c.Vessel.Lock(*p.Vessel)
	}
	if p.CellA != nil {
		c.CellA.Lock(*p.CellA)
	}
	if p.CellB != nil {
		c.CellB.Lock(*p.CellB)
	}
	if p.Scale != nil {
		c.Scale.Lock(*p.Scale)
	}
	if p.Threshold != nil {
		c.Threshold.Lock(*p.Threshold)
	}
	if p.MinCellSize != nil {
		c.MinCellSize.Lock(*p.MinCellSize)
	}
}
