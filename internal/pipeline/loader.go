package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/imageio"
	"github.com/h39s/VessCoopJ/internal/logger"
	"github.com/h39s/VessCoopJ/internal/models"
)

type imageLoader struct {
	decoder       imageio.Decoder
	logger        logger.Logger
	timingTracker TimingTracker
}

// ListImages returns the files in dir whose extension matches ext,
// case-insensitively, sorted by name. Subdirectories are ignored.
func ListImages(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewConfigurationError("cannot read image folder "+dir, err)
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) != ext {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// BaseName strips the folder and extension from path.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (l *imageLoader) Load(path string) (*models.Volume, error) {
	ctx := l.timingTracker.StartTiming(stageDecode)
	defer l.timingTracker.EndTiming(ctx)

	l.logger.Debug("ImageLoader", "decoding image", map[string]interface{}{
		"file": path,
	})

	vol, err := l.decoder.Decode(path)
	if err != nil {
		return nil, apperrors.WithContext(err, filepath.Base(path), stageDecode, apperrors.KindDecode)
	}

	l.logger.Info("ImageLoader", "image loaded", map[string]interface{}{
		"file":      filepath.Base(path),
		"width":     vol.Width,
		"height":    vol.Height,
		"channels":  vol.Channels(),
		"slices":    vol.Slices(),
		"bit_depth": vol.BitDepth,
		"scaled":    vol.Scale.Scaled,
	})
	return vol, nil
}
