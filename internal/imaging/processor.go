package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-sorter/internal/constants"
)

// ErrEmptyFile is returned by Validate for zero-length files.
var ErrEmptyFile = errors.New("empty file")

// Processor validates and resizes images.
type Processor struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // JPEG quality for staged copies
	logger    *zap.Logger
}

// NewProcessor creates a Processor. Zero limits fall back to the defaults.
func NewProcessor(maxWidth, maxHeight, quality int, logger *zap.Logger) *Processor {
	if maxWidth <= 0 {
		maxWidth = constants.MaxImageWidth
	}
	if maxHeight <= 0 {
		maxHeight = constants.MaxImageHeight
	}
	if quality <= 0 || quality > 100 {
		quality = constants.JPEGQuality
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality, logger: logger}
}

// Validate checks that path is a non-empty regular file whose header decodes
// as a supported image with non-zero dimensions. Pixel data is not decoded.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat image: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return ErrEmptyFile
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)
	}
	return nil
}

// IsValid reports whether path is a readable image. Failures are logged.
func (p *Processor) IsValid(path string) bool {
	if err := Validate(path); err != nil {
		p.logger.Warn("invalid image", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

// Preprocess writes a copy of src to dst, downscaled to fit within
// MaxWidth×MaxHeight. The copy is PNG when dst ends in .png and JPEG
// otherwise. It returns false, leaving nothing at dst, if src is invalid or
// any step fails.
func (p *Processor) Preprocess(src, dst string) bool {
	if !p.IsValid(src) {
		return false
	}
	if err := p.preprocess(src, dst); err != nil {
		p.logger.Warn("failed to preprocess image",
			zap.String("path", src), zap.Error(err))
		return false
	}
	return true
}

func (p *Processor) preprocess(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	img = p.resize(img)

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if strings.EqualFold(filepath.Ext(dst), ".png") {
		err = png.Encode(tmp, img)
	} else {
		err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: p.Quality})
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to move image into place: %w", err)
	}
	return nil
}

func (p *Processor) resize(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	newWidth, newHeight := FitWithin(width, height, p.MaxWidth, p.MaxHeight)
	if newWidth == width && newHeight == height {
		return img
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
