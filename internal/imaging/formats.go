// Package imaging validates input images and produces size-bounded copies of
// them for face embedding.
package imaging

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageExtensions lists the file extensions treated as images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether name has a recognised image extension.
func IsImageFile(name string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(name))]
}

// FitWithin returns the dimensions of a w×h image scaled down to fit inside
// maxW×maxH, preserving aspect ratio. Images that already fit are returned
// unchanged; the more limiting side decides the scale.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	if maxW*h <= maxH*w {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}

// StagedName returns the file name of the staged copy of src: a prefix and
// 1-based sequence number keep names unique, and the extension selects the
// encoder (PNG sources stay lossless, everything else becomes JPEG).
func StagedName(prefix string, index int, src string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	out := ".jpg"
	if strings.EqualFold(ext, ".png") {
		out = ".png"
	}
	return fmt.Sprintf("%s_%06d_%s%s", prefix, index, stem, out)
}
