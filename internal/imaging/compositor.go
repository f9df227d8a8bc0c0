package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/crypto"
	"github.com/udisondev/pagelock/internal/geometry"
	"github.com/udisondev/pagelock/internal/model"
)

// Compositor decodes scrambled pages, applies tile plans and re-encodes the result.
// The zero value encodes JPEG at the default quality.
type Compositor struct {
	// JPEGQuality in 1..100, zero means constants.DefaultJPEGQuality.
	JPEGQuality int

	// KeepPNG re-encodes PNG sources as PNG instead of JPEG.
	KeepPNG bool

	// MaxWidth downscales restored pages wider than this, zero disables scaling.
	MaxWidth int
}

// NewCompositor creates a compositor with the given output settings.
func NewCompositor(quality int, keepPNG bool, maxWidth int) *Compositor {
	return &Compositor{JPEGQuality: quality, KeepPNG: keepPNG, MaxWidth: maxWidth}
}

// Apply restores raw with a precomputed plan. A no-op plan returns raw unchanged
// together with its sniffed MIME type.
func (c *Compositor) Apply(raw []byte, plan model.TilePlan) ([]byte, string, error) {
	if plan.IsNoop() {
		return raw, crypto.SniffMIME(raw), nil
	}

	img, mime, err := decodeBounded(raw)
	if err != nil {
		return nil, "", err
	}
	return c.composeAndEncode(img, mime, plan)
}

// Restore decodes raw once, builds the plan for its real dimensions and applies it.
func (c *Compositor) Restore(raw []byte, spec model.ScrambleSpec) ([]byte, string, error) {
	if !spec.Strategy.IsGeometry() {
		return raw, crypto.SniffMIME(raw), nil
	}

	img, mime, err := decodeBounded(raw)
	if err != nil {
		return nil, "", err
	}
	b := img.Bounds()
	plan, err := geometry.BuildPlan(b.Dx(), b.Dy(), spec)
	if err != nil {
		return nil, "", fmt.Errorf("building %s plan for %dx%d: %w", spec.Strategy, b.Dx(), b.Dy(), err)
	}
	if plan.IsNoop() {
		return raw, mime, nil
	}
	return c.composeAndEncode(img, mime, plan)
}

// Compose blits every instruction of plan from src onto a new canvas.
// Instructions are applied in order, later ones overwrite earlier ones.
func Compose(src image.Image, plan model.TilePlan) (*image.RGBA, error) {
	w, h := plan.Width, plan.Height
	if w <= 0 || h <= 0 {
		bounds := plan.Bounds()
		w, h = bounds.Max.X, bounds.Max.Y
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyCanvas, w, h)
	}
	if err := checkPixels(w, h); err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	origin := src.Bounds().Min
	for _, inst := range plan.Instructions {
		sr := inst.Src().Add(origin)
		// draw клиппирует прямоугольники, выходящие за пределы холста или источника
		draw.Copy(canvas, image.Pt(inst.DstX, inst.DstY), src, sr, draw.Src, nil)
	}
	return canvas, nil
}

func (c *Compositor) composeAndEncode(img image.Image, mime string, plan model.TilePlan) ([]byte, string, error) {
	canvas, err := Compose(img, plan)
	if err != nil {
		return nil, "", err
	}
	out := c.scale(canvas)

	var buf bytes.Buffer
	if c.KeepPNG && mime == constants.MIMEPNG {
		if err := png.Encode(&buf, out); err != nil {
			return nil, "", fmt.Errorf("%w: png: %w", ErrEncode, err)
		}
		return buf.Bytes(), constants.MIMEPNG, nil
	}

	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: c.quality()}); err != nil {
		return nil, "", fmt.Errorf("%w: jpeg: %w", ErrEncode, err)
	}
	return buf.Bytes(), constants.MIMEJPEG, nil
}

func (c *Compositor) scale(img *image.RGBA) image.Image {
	b := img.Bounds()
	if c.MaxWidth <= 0 || b.Dx() <= c.MaxWidth {
		return img
	}
	h := b.Dy() * c.MaxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, c.MaxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func (c *Compositor) quality() int {
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		return constants.DefaultJPEGQuality
	}
	return c.JPEGQuality
}
