// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"image"
	"image/color"
	stddraw "image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/display"
)

// Software is the CPU composition backend. It blends the source layers
// of a plane into the plane's off-screen surface with source-over
// blending and bilinear scaling.
//
// Software composition requires CPU-visible pixel data for every source
// and for the target surface.
type Software struct {
	initialized bool
}

// NewSoftware creates the CPU composition backend.
func NewSoftware() *Software {
	return &Software{}
}

// Name returns the backend identifier.
func (s *Software) Name() string { return BackendSoftware }

// Init initializes the backend.
func (s *Software) Init() error {
	s.initialized = true
	return nil
}

// Close releases backend resources.
func (s *Software) Close() {
	s.initialized = false
}

// Compose renders the request into the target surface.
func (s *Software) Compose(target *display.Surface, req *ComposeRequest) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	dst := surfaceImage(target)
	if dst == nil {
		return ErrNoPixelSource
	}

	clip := req.Damage
	if req.ClearFull || clip.Empty() {
		clip = image.Rect(0, 0, int(target.Width()), int(target.Height()))
	}
	clip = clip.Intersect(dst.Bounds())
	if clip.Empty() {
		return nil
	}

	// Start from transparent black so plane alpha composes correctly
	// against the planes beneath.
	stddraw.Draw(dst, clip, image.Transparent, image.Point{}, stddraw.Src)

	for i := range req.Sources {
		src := &req.Sources[i]
		if src.Image == nil {
			return ErrNoPixelSource
		}
		s.drawSource(dst, clip, src, req)
	}
	return nil
}

// drawSource scales one layer's crop into its display frame, restricted
// to the clip, translating display coordinates into plane coordinates.
func (s *Software) drawSource(dst *image.RGBA, clip image.Rectangle,
	src *Source, req *ComposeRequest) {
	layer := src.Layer
	frame := layer.DisplayFrame().Sub(req.PlaneFrame.Min)
	dr := frame.Intersect(clip)
	if dr.Empty() {
		return
	}

	crop := layer.SourceCrop()
	sr := image.Rect(int(crop.Left), int(crop.Top), int(crop.Right), int(crop.Bottom))
	if sr.Empty() {
		sr = src.Image.Bounds()
	}

	source := src.Image
	if req.Effects != nil && layer.IsVideoLayer() {
		source = applyEffects(source, sr, req.Effects)
		sr = source.Bounds()
	}

	var opts *xdraw.Options
	if layer.Blending() != display.BlendingNone && layer.Alpha() < 0xFF {
		opts = &xdraw.Options{
			SrcMask: image.NewUniform(color.Alpha{A: layer.Alpha()}),
		}
	}

	op := xdraw.Over
	if layer.Blending() == display.BlendingNone {
		op = xdraw.Src
	}

	scaler := xdraw.Scaler(xdraw.BiLinear)
	if frame.Dx() == sr.Dx() && frame.Dy() == sr.Dy() {
		scaler = xdraw.NearestNeighbor
	}

	// Scale the full frame but clip output to the damaged region.
	if dr != frame {
		opts = clipOptions(opts, dr)
	}
	scaler.Scale(dst, frame, source, sr, op, opts)
}

// clipOptions adds a destination mask restricting output to rect.
func clipOptions(opts *xdraw.Options, rect image.Rectangle) *xdraw.Options {
	if opts == nil {
		opts = &xdraw.Options{}
	}
	mask := image.NewAlpha(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			mask.SetAlpha(x, y, color.Alpha{A: 0xFF})
		}
	}
	opts.DstMask = mask
	return opts
}

// applyEffects runs the video color controls over the cropped source.
// Saturation, brightness and contrast are applied linearly; the hue
// control is not applied.
func applyEffects(src *image.RGBA, crop image.Rectangle, fx *VideoEffects) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	for y := 0; y < crop.Dy(); y++ {
		for x := 0; x < crop.Dx(); x++ {
			c := src.RGBAAt(crop.Min.X+x, crop.Min.Y+y)
			r, g, b := float32(c.R), float32(c.G), float32(c.B)

			if fx.Saturation != 1 {
				gray := 0.299*r + 0.587*g + 0.114*b
				r = gray + (r-gray)*fx.Saturation
				g = gray + (g-gray)*fx.Saturation
				b = gray + (b-gray)*fx.Saturation
			}
			if fx.Brightness != 1 {
				r *= fx.Brightness
				g *= fx.Brightness
				b *= fx.Brightness
			}
			if fx.Contrast != 1 {
				r = (r-128)*fx.Contrast + 128
				g = (g-128)*fx.Contrast + 128
				b = (b-128)*fx.Contrast + 128
			}

			out.SetRGBA(x, y, color.RGBA{
				R: clamp8(r), G: clamp8(g), B: clamp8(b), A: c.A,
			})
		}
	}
	return out
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// surfaceImage wraps a surface's CPU-visible pixels as an RGBA image.
// Returns nil when the surface has no pixel access.
func surfaceImage(s *display.Surface) *image.RGBA {
	buf := s.Buffer()
	if buf == nil || len(buf.Pixels) == 0 {
		return nil
	}
	stride := int(buf.Pitches[0])
	if stride == 0 {
		stride = int(buf.Width) * 4
	}
	return &image.RGBA{
		Pix:    buf.Pixels,
		Stride: stride,
		Rect:   image.Rect(0, 0, int(buf.Width), int(buf.Height)),
	}
}
