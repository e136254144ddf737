package mask

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// LoadOptions controls how an image becomes a mask.
type LoadOptions struct {
	// AlphaThreshold is the opacity (0-255) a pixel must exceed to count as
	// tree when the image carries an alpha channel.
	AlphaThreshold uint8 `json:"alpha_threshold"`

	// GrayThreshold is the luminance a pixel must exceed on the grayscale
	// path. Zero selects Otsu's method.
	GrayThreshold uint8 `json:"gray_threshold"`

	// MaxDimension downscales images whose longer side exceeds it before
	// thresholding. Zero disables downscaling.
	MaxDimension int `json:"max_dimension"`

	// Backend computes the Otsu level. Empty means BackendGo.
	Backend Backend `json:"backend,omitempty"`
}

// DefaultLoadOptions returns the options used when none are configured.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{AlphaThreshold: 127, Backend: BackendGo}
}

// Load reads an image file and converts it to a raw (uncleaned) mask.
//
// Parameters:
//   - path: File path of a PNG, JPEG or GIF image. Masks exported by
//     segmentation tools are usually PNGs with an alpha channel.
//   - opts: Thresholds, downscaling and backend. See LoadOptions.
//
// Returns:
//   - *Mask: The raw silhouette, one pixel per image pixel (or per
//     downscaled pixel when MaxDimension applies).
//   - error: Non-nil if the file cannot be read or decoded.
//
// The alpha path is chosen from the file's color model, so a PNG saved
// with an alpha channel is masked on opacity even when every pixel is
// opaque. EXIF orientation is applied so phone photos keep the tree
// upright.
//
// # Errors
//
//   - The file cannot be opened or decoded
//   - The decoded image has zero width or height
//   - opts.Backend names a backend missing from this build
//
// # Example
//
//	m, err := mask.Load("/path/to/oak_mask.png", mask.DefaultLoadOptions())
//	if err != nil {
//	    return err
//	}
//	cleaned, err := mask.Clean(m, mask.DefaultCleanOptions())
func Load(path string, opts LoadOptions) (*Mask, error) {
	alpha, err := fileHasAlpha(path)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return fromImage(img, alpha, opts)
}

// FromImage converts a decoded image to a raw mask.
//
// Parameters:
//   - img: Any decoded image. Its bounds need not start at the origin.
//   - opts: Thresholds, downscaling and backend. See LoadOptions.
//
// Returns:
//   - *Mask: The raw silhouette with the size of img's bounds.
//   - error: Non-nil for an empty image or an unavailable backend.
//
// Images whose color model carries alpha (NRGBA, alpha-only and paletted
// images with transparent entries), and any image reporting itself as not
// opaque, are masked on opacity. Everything else goes through the
// grayscale path: luminance thresholded at GrayThreshold, or at the Otsu
// level when GrayThreshold is zero.
func FromImage(img image.Image, opts LoadOptions) (*Mask, error) {
	return fromImage(img, imageHasAlpha(img), opts)
}

func fromImage(img image.Image, alpha bool, opts LoadOptions) (*Mask, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has invalid size %dx%d", b.Dx(), b.Dy())
	}

	if opts.MaxDimension > 0 && (b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension) {
		img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Box)
	}

	if alpha {
		return fromAlpha(img, opts.AlphaThreshold), nil
	}
	return fromGray(img, opts)
}

// fileHasAlpha reads only the image header.
func fileHasAlpha(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false, fmt.Errorf("failed to decode image: %w", err)
	}
	return alphaModel(cfg.ColorModel), nil
}

func imageHasAlpha(img image.Image) bool {
	if alphaModel(img.ColorModel()) {
		return true
	}
	o, ok := img.(interface{ Opaque() bool })
	return ok && !o.Opaque()
}

// alphaModel reports whether m stores a separate alpha channel. RGBA is
// left out: the PNG decoder uses it for plain RGB files.
func alphaModel(m color.Model) bool {
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	return false
}

func fromAlpha(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			_, _, _, a := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
			m.Pix[y*m.Width+x] = uint8(a>>8) > threshold
		}
	}
	return m
}

func fromGray(img image.Image, opts LoadOptions) (*Mask, error) {
	gray := grayscale(img)
	level := int(opts.GrayThreshold)
	if level == 0 {
		var err error
		if level, err = otsuLevel(gray, opts.Backend); err != nil {
			return nil, err
		}
	}

	m := New(gray.Bounds().Dx(), gray.Bounds().Dy())
	// Foreground is strictly above the level.
	if level >= 255 {
		return m, nil
	}
	bin := segment.Threshold(gray, uint8(level+1))
	gb := bin.Bounds()
	for y := 0; y < m.Height; y++ {
		row := bin.Pix[y*bin.Stride : y*bin.Stride+gb.Dx()]
		for x, v := range row {
			m.Pix[y*m.Width+x] = v != 0
		}
	}
	return m, nil
}

// grayscale returns the luminance of img as an 8-bit image anchored at the
// origin. bild writes the luminance to every color channel of an RGBA
// image, so the red channel is copied out.
func grayscale(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	b := rgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+4*b.Dx()]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[4*x]
		}
	}
	return gray
}

func otsuLevel(gray *image.Gray, backend Backend) (int, error) {
	switch backend {
	case "", BackendGo:
		return OtsuLevel(gray), nil
	case BackendOpenCV:
		return otsuLevelOpenCV(gray)
	default:
		return 0, fmt.Errorf("unknown mask backend %q", backend)
	}
}

// OtsuLevel returns the threshold that maximises between-class variance of
// the image histogram. Pixels strictly above the level form the foreground.
func OtsuLevel(gray *image.Gray) int {
	var hist [256]int
	b := gray.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var (
		sumB      float64
		weightB   int
		bestLevel int
		bestVar   = -1.0
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sumAll - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > bestVar {
			bestVar = between
			bestLevel = t
		}
	}
	return bestLevel
}

// Cache provides thread-safe caching of loaded masks to avoid decoding the
// same file twice.
//
// Masks are keyed by path and LoadOptions, since different thresholds give
// different masks for the same file. Cache is safe for concurrent use by
// multiple goroutines.
//
// # Memory Management
//
// Cached masks remain in memory until Evict or Clear is called. A mask
// costs one byte per pixel, so a long-running server that sees many large
// photos should evict paths it is done with.
//
// # Example Usage
//
//	cache := mask.NewCache()
//	m, err := cache.Load("/path/to/oak_mask.png", mask.DefaultLoadOptions())
//	if err != nil {
//	    return err
//	}
//	// Use m read-only...
//	cache.Evict("/path/to/oak_mask.png")
type Cache struct {
	mu    sync.RWMutex
	masks map[cacheKey]*Mask
}

type cacheKey struct {
	path string
	opts LoadOptions
}

// NewCache creates an empty mask cache, ready for concurrent use.
func NewCache() *Cache {
	return &Cache{
		masks: make(map[cacheKey]*Mask),
	}
}

// Load returns the cached raw mask for path, reading it from disk on the
// first call.
//
// Parameters:
//   - path: The image file. The exact string is the cache key, so relative
//     and absolute paths to one file are cached separately.
//   - opts: Load options; each distinct value gets its own entry.
//
// Returns:
//   - *Mask: The shared cached mask. Callers must not modify it; Clean
//     and every estimator work on copies.
//   - error: Any error from Load. Failures are not cached.
//
// Two goroutines missing the cache at the same time may both decode the
// file; the last one to finish wins and both get a valid mask.
func (c *Cache) Load(path string, opts LoadOptions) (*Mask, error) {
	key := cacheKey{path: path, opts: opts}

	c.mu.RLock()
	if m, ok := c.masks[key]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	m, err := Load(path, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.masks[key] = m
	c.mu.Unlock()

	return m, nil
}

// Evict removes every cached mask loaded from path, whatever the options.
//
// Parameters:
//   - path: The exact path string used when the mask was loaded.
//
// If nothing is cached for path, Evict does nothing.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	for k := range c.masks {
		if k.path == path {
			delete(c.masks, k)
		}
	}
	c.mu.Unlock()
}

// Clear removes all cached masks. Later Load calls read from disk again.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.masks = make(map[cacheKey]*Mask)
	c.mu.Unlock()
}

// Len returns the number of cached masks.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.masks)
}
