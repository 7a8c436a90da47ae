// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compositor provides the default GPU composition backend for a
// display queue. It drives a pluggable render backend (software or
// wgpu) to draw the source layers of composed planes into their
// off-screen surfaces, and owns the video effect state applied while
// drawing video planes.
package compositor

import (
	"image"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/display"
	"github.com/gogpu/display/backend"
)

// Options configures a Compositor.
type Options struct {
	// Backend selects a registered render backend by name. Empty picks
	// the best available by priority.
	Backend string

	// Device optionally carries the host application's GPU device,
	// following the gpucontext convention that the host provides the
	// device. The compositor returns it from Device; it is not passed to
	// the render backends.
	Device gpucontext.DeviceProvider
}

// Compositor implements display.Compositor over a render backend.
type Compositor struct {
	mu sync.Mutex

	backendName string
	device      gpucontext.DeviceProvider
	renderer    backend.RenderBackend

	rm          display.ResourceManager
	gpuFD       int
	initialized bool

	frameActive     bool
	disableOverlays bool

	videoMu sync.Mutex
	effects backend.VideoEffects

	staged map[*display.OverlayLayer]*image.RGBA
}

// New creates a compositor. opts may be nil.
func New(opts *Options) *Compositor {
	c := &Compositor{
		effects: backend.DefaultVideoEffects(),
		staged:  make(map[*display.OverlayLayer]*image.RGBA),
	}
	if opts != nil {
		c.backendName = opts.Backend
		c.device = opts.Device
	}
	return c
}

// Device returns the device of the configured provider, or nil. The render
// backends do not use it; the wgpu backend opens its own adapter.
func (c *Compositor) Device() gpucontext.Device {
	if c.device == nil {
		return nil
	}
	return c.device.Device()
}

// Init prepares the compositor for a display pipe. Safe to call on
// every power-up; initialization happens once.
func (c *Compositor) Init(rm display.ResourceManager, gpuFD int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rm = rm
	c.gpuFD = gpuFD
	if c.initialized {
		return nil
	}

	var r backend.RenderBackend
	if c.backendName != "" {
		r = backend.Get(c.backendName)
	} else {
		r = backend.Default()
	}
	if r == nil {
		return backend.ErrBackendNotAvailable
	}
	if ls, ok := r.(display.LoggerSetter); ok {
		ls.SetLogger(display.Logger())
	}
	if err := r.Init(); err != nil {
		return err
	}
	c.renderer = r
	c.initialized = true
	display.Logger().Info("compositor: initialized", "backend", r.Name())
	return nil
}

// Reset drops per-pipe state. The render backend stays warm.
func (c *Compositor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameActive = false
	clear(c.staged)
}

// BeginFrame starts a composition frame.
func (c *Compositor) BeginFrame(disableOverlays bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return false
	}
	c.frameActive = true
	c.disableOverlays = disableOverlays
	return true
}

// Draw composes every plane that needs off-screen composition and has
// not recycled its surface this frame.
func (c *Compositor) Draw(planes []*display.PlaneState,
	layers []*display.OverlayLayer, rects []image.Rectangle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || !c.frameActive {
		return false
	}
	c.frameActive = false

	for _, plane := range planes {
		if !plane.NeedsOffScreenComposition() || plane.SurfaceRecycled() {
			continue
		}
		target := plane.SwapSurface()
		if target == nil {
			display.Logger().Error("compositor: composed plane has no surface")
			return false
		}

		req := backend.ComposeRequest{
			PlaneFrame: plane.DisplayFrame(),
			Damage:     target.Damage(),
			ClearFull:  target.ClearState() == display.ClearFull,
		}
		if plane.ApplyEffects() {
			c.videoMu.Lock()
			fx := c.effects
			c.videoMu.Unlock()
			req.Effects = &fx
		}

		for _, idx := range plane.SourceLayers() {
			layer := layers[idx]
			// The producer must be done writing before we sample.
			if err := layer.AcquireFence().Wait(); err != nil {
				display.Logger().Warn("compositor: acquire fence wait failed",
					"layer", idx, "err", err)
			}
			req.Sources = append(req.Sources, backend.Source{
				Layer: layer,
				Image: c.sourceImage(layer),
			})
		}

		if err := c.renderer.Compose(target, &req); err != nil {
			display.Logger().Error("compositor: compose failed",
				"plane", plane.Plane().ID(), "err", err)
			return false
		}
		target.ResetDamage()
	}
	return true
}

// sourceImage resolves a layer's pixel source: staged raw data first,
// then the CPU-visible side of the imported buffer.
func (c *Compositor) sourceImage(layer *display.OverlayLayer) *image.RGBA {
	if img, ok := c.staged[layer]; ok {
		return img
	}
	return bufferImage(layer.Buffer())
}

// UpdateLayerPixelData stages raw pixel uploads for layers without an
// importable buffer. Staged data is valid for the current frame.
func (c *Compositor) UpdateLayerPixelData(layers []*display.OverlayLayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.staged)
	for _, layer := range layers {
		data := layer.RawPixelData()
		if len(data) == 0 {
			continue
		}
		crop := layer.SourceCrop()
		w, h := int(crop.Width()), int(crop.Height())
		if w <= 0 || h <= 0 {
			frame := layer.DisplayFrame()
			w, h = frame.Dx(), frame.Dy()
		}
		if w <= 0 || h <= 0 || len(data) < w*h*4 {
			display.Logger().Warn("compositor: short raw pixel data",
				"layer", layer.LayerIndex(), "len", len(data))
			continue
		}
		c.staged[layer] = &image.RGBA{
			Pix:    data,
			Stride: w * 4,
			Rect:   image.Rect(0, 0, w, h),
		}
	}
}

// EnsurePixelDataUpdated flushes staged uploads when no draw pass runs
// this frame. The software path samples staged data at compose time, so
// there is nothing left to do here.
func (c *Compositor) EnsurePixelDataUpdated() {}

// SetVideoScalingMode selects the scaling filter for video content.
func (c *Compositor) SetVideoScalingMode(mode uint32) {
	c.videoMu.Lock()
	c.effects.ScalingMode = mode
	c.videoMu.Unlock()
}

// Video color control ranges.
const (
	hueMin, hueMax       = -180.0, 180.0
	linearMin, linearMax = 0.0, 2.0
)

// SetVideoColor adjusts one color control, clamped to its range.
func (c *Compositor) SetVideoColor(ctrl display.ColorControl, value float32) {
	c.videoMu.Lock()
	defer c.videoMu.Unlock()
	switch ctrl {
	case display.ColorControlHue:
		c.effects.Hue = clampf(value, hueMin, hueMax)
	case display.ColorControlSaturation:
		c.effects.Saturation = clampf(value, linearMin, linearMax)
	case display.ColorControlBrightness:
		c.effects.Brightness = clampf(value, linearMin, linearMax)
	case display.ColorControlContrast:
		c.effects.Contrast = clampf(value, linearMin, linearMax)
	}
}

// GetVideoColor returns the current value and range of a color control.
func (c *Compositor) GetVideoColor(ctrl display.ColorControl) (value, rangeStart, rangeEnd float32) {
	c.videoMu.Lock()
	defer c.videoMu.Unlock()
	switch ctrl {
	case display.ColorControlHue:
		return c.effects.Hue, hueMin, hueMax
	case display.ColorControlSaturation:
		return c.effects.Saturation, linearMin, linearMax
	case display.ColorControlBrightness:
		return c.effects.Brightness, linearMin, linearMax
	case display.ColorControlContrast:
		return c.effects.Contrast, linearMin, linearMax
	}
	return 0, 0, 0
}

// RestoreVideoDefaultColor restores one control to neutral.
func (c *Compositor) RestoreVideoDefaultColor(ctrl display.ColorControl) {
	c.videoMu.Lock()
	defer c.videoMu.Unlock()
	defaults := backend.DefaultVideoEffects()
	switch ctrl {
	case display.ColorControlHue:
		c.effects.Hue = defaults.Hue
	case display.ColorControlSaturation:
		c.effects.Saturation = defaults.Saturation
	case display.ColorControlBrightness:
		c.effects.Brightness = defaults.Brightness
	case display.ColorControlContrast:
		c.effects.Contrast = defaults.Contrast
	}
}

// SetVideoDeinterlace configures deinterlacing of video planes.
func (c *Compositor) SetVideoDeinterlace(flag display.DeinterlaceFlag, mode display.DeinterlaceControl) {
	c.videoMu.Lock()
	c.effects.DeinterlaceFlag = flag
	c.effects.Deinterlace = mode
	c.videoMu.Unlock()
}

// RestoreVideoDefaultDeinterlace disables deinterlacing.
func (c *Compositor) RestoreVideoDefaultDeinterlace() {
	c.videoMu.Lock()
	c.effects.DeinterlaceFlag = display.DeinterlaceFlagNone
	c.effects.Deinterlace = display.DeinterlaceNone
	c.videoMu.Unlock()
}

// Close releases the render backend.
func (c *Compositor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.renderer != nil {
		c.renderer.Close()
		c.renderer = nil
	}
	c.initialized = false
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// bufferImage wraps a buffer's CPU-visible pixels as an RGBA image.
func bufferImage(buf *display.BufferRef) *image.RGBA {
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
