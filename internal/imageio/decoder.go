// Package imageio decodes multi-channel image volumes from disk.
package imageio

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/h39s/VessCoopJ/internal/errors"
	"github.com/h39s/VessCoopJ/internal/models"
)

type Decoder interface {
	Decode(path string) (*models.Volume, error)
}

// DecoderFunc adapts a plain function to Decoder.
type DecoderFunc func(path string) (*models.Volume, error)

func (f DecoderFunc) Decode(path string) (*models.Volume, error) {
	return f(path)
}

// Registry dispatches on lower-cased file extension.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[normalizeExt(ext)] = d
}

func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Decode opens path with the decoder registered for its extension. Every
// failure is reported as a decode error naming the file.
func (r *Registry) Decode(path string) (*models.Volume, error) {
	ext := normalizeExt(filepath.Ext(path))
	r.mu.RLock()
	d, ok := r.decoders[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewDecodeError(path, fmt.Errorf("no decoder registered for %q", ext))
	}

	vol, err := d.Decode(path)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindDecode) {
			return nil, err
		}
		return nil, apperrors.NewDecodeError(path, err)
	}
	if err := vol.Validate(); err != nil {
		return nil, apperrors.NewDecodeError(path, err)
	}
	if vol.Path == "" {
		vol.Path = path
	}
	return vol, nil
}
