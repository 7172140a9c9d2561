package imagestore

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	// Decoders for the upload formats the annotation UI accepts.
	_ "image/gif"
	_ "image/png"

	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
)

// ErrImageNotFound is returned for lookups of unregistered image ids.
var ErrImageNotFound = errors.New("imagestore: image not found")

// jpegQuality matches the display encoding used by the annotation frontend.
const jpegQuality = 92

// Info describes a registered image.
type Info struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type entry struct {
	img  image.Image
	info Info
}

// Registry holds the uploaded/registered images by id. Images are owned
// here; annotations reference them by id only.
type Registry struct {
	mu     sync.RWMutex
	images map[string]entry
}

// NewRegistry creates an empty image registry.
func NewRegistry() *Registry {
	return &Registry{images: make(map[string]entry)}
}

// Register stores a decoded image under the given id.
func (r *Registry) Register(id, fileName string, img image.Image) Info {
	b := img.Bounds()
	info := Info{ID: id, FileName: fileName, Width: b.Dx(), Height: b.Dy()}
	r.mu.Lock()
	r.images[id] = entry{img: img, info: info}
	r.mu.Unlock()
	return info
}

// Decode decodes raw image bytes (JPEG, PNG, GIF, BMP or WebP).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagestore: decoding image: %w", err)
	}
	return img, nil
}

// RegisterDataURL decodes a base64 data URL and registers the image, the path
// used when the frontend pushes an already-loaded image.
func (r *Registry) RegisterDataURL(id, fileName, dataURL string) (Info, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return Info{}, errors.New("imagestore: expected a data URL")
	}
	_, b64, ok := strings.Cut(dataURL, ",")
	if !ok {
		return Info{}, errors.New("imagestore: malformed data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Info{}, fmt.Errorf("imagestore: decoding base64 payload: %w", err)
	}
	img, err := Decode(raw)
	if err != nil {
		return Info{}, err
	}
	return r.Register(id, fileName, img), nil
}

// Get returns the image registered under id.
func (r *Registry) Get(id string) (image.Image, error) {
	r.mu.RLock()
	e, ok := r.images[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	return e.img, nil
}

// GetInfo returns the metadata of the image registered under id.
func (r *Registry) GetInfo(id string) (Info, error) {
	r.mu.RLock()
	e, ok := r.images[id]
	r.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	return e.info, nil
}

// List returns metadata for all registered images.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.images))
	for _, e := range r.images {
		out = append(out, e.info)
	}
	return out
}

// Remove drops the image registered under id. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.images, id)
	r.mu.Unlock()
}

// JPEG re-encodes the image for display.
func (r *Registry) JPEG(id string) ([]byte, error) {
	img, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

// DataURL returns the image as a base64 JPEG data URL.
func (r *Registry) DataURL(id string) (string, error) {
	data, err := r.JPEG(id)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Thumbnail returns a JPEG thumbnail fitting within maxDim on the longest
// side, preserving aspect ratio.
func (r *Registry) Thumbnail(id string, maxDim int) ([]byte, error) {
	img, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if maxDim < 1 {
		maxDim = 1
	}
	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	return encodeJPEG(thumb)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imagestore: encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
