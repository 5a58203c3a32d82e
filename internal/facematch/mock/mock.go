// Package mock provides mock implementations of facematch interfaces for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"sync"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// Colours used by tests to stand in for people.
var (
	Red   = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	Green = color.RGBA{R: 20, G: 200, B: 20, A: 255}
	Blue  = color.RGBA{R: 20, G: 20, B: 220, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// colorTolerance absorbs resampling and encoding noise per channel.
const colorTolerance = 12

// MockEmbedder is a facematch.Embedder that identifies faces by the colour
// of an image's top-left pixel.
type MockEmbedder struct {
	mu     sync.Mutex
	faces  map[color.RGBA][]facematch.Embedding
	errs   map[color.RGBA]error
	calls  []string
	panics map[color.RGBA]bool

	// OnEmbed, when set, runs at the start of every Embed call.
	OnEmbed func(path string)
}

// NewMockEmbedder creates an embedder that finds no faces until configured.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		faces:  make(map[color.RGBA][]facematch.Embedding),
		errs:   make(map[color.RGBA]error),
		panics: make(map[color.RGBA]bool),
	}
}

// SetFaces makes images of colour c yield the given embeddings.
func (m *MockEmbedder) SetFaces(c color.RGBA, embeddings ...facematch.Embedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces[c] = embeddings
}

// SetError makes images of colour c fail with err.
func (m *MockEmbedder) SetError(c color.RGBA, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[c] = err
}

// SetPanic makes images of colour c panic inside Embed.
func (m *MockEmbedder) SetPanic(c color.RGBA) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[c] = true
}

// Calls returns the paths passed to Embed, in call order.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Embed implements facematch.Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, path string) ([]facematch.Embedding, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path)
	hook := m.OnEmbed
	m.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := topLeft(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for known, embeddings := range m.faces {
		if near(known, c) {
			return embeddings, nil
		}
	}
	for known, err := range m.errs {
		if near(known, c) {
			return nil, err
		}
	}
	for known := range m.panics {
		if near(known, c) {
			panic(fmt.Sprintf("embedder crashed on %s", path))
		}
	}
	return nil, nil
}

func topLeft(path string) (color.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return color.RGBA{}, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("decode %s: %w", path, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return color.RGBA{}, errors.New("empty image")
	}
	return color.RGBAModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.RGBA), nil
}

func near(a, b color.RGBA) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= colorTolerance && d(a.G, b.G) <= colorTolerance && d(a.B, b.B) <= colorTolerance
}

// WriteImage writes a w×h PNG of solid colour c to path.
func WriteImage(path string, c color.RGBA, w, h int) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
