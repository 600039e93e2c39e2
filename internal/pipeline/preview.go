package pipeline

import (
	"image"
	"image/draw"

	"github.com/h39s/VessCoopJ/internal/models"
	"github.com/h39s/VessCoopJ/internal/projection"
)

const montageGap = 4

// channelMontage lays the max projection of every channel side by side so
// channels can be told apart in the selection dialogs.
func channelMontage(vol *models.Volume) image.Image {
	n := vol.Channels()
	if n == 0 {
		return nil
	}
	out := image.NewGray(image.Rect(0, 0, n*vol.Width+(n-1)*montageGap, vol.Height))
	for c := 1; c <= n; c++ {
		ch, err := vol.Channel(c)
		if err != nil {
			return nil
		}
		plane, err := projection.Project(ch, projection.Max, 1)
		if err != nil {
			return nil
		}
		x := (c - 1) * (vol.Width + montageGap)
		draw.Draw(out, image.Rect(x, 0, x+vol.Width, vol.Height), plane.Gray8(), image.Point{}, draw.Src)
	}
	return out
}

// lazyPreview builds the montage on first use.
type lazyPreview struct {
	vol *models.Volume
	img image.Image
	ok  bool
}

func (l *lazyPreview) Image() image.Image {
	if !l.ok {
		l.img = channelMontage(l.vol)
		l.ok = true
	}
	return l.img
}
