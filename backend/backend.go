// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"image"

	"github.com/gogpu/display"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrNoPixelSource is returned when a layer has no CPU or GPU
	// accessible pixel source to compose from.
	ErrNoPixelSource = errors.New("backend: layer has no pixel source")
)

// VideoEffects is the effect state applied while composing video planes.
type VideoEffects struct {
	// ScalingMode selects the scaling filter for video content.
	ScalingMode uint32

	// Hue rotation in degrees, -180..180, 0 neutral.
	Hue float32

	// Saturation multiplier, 0..2, 1 neutral.
	Saturation float32

	// Brightness multiplier, 0..2, 1 neutral.
	Brightness float32

	// Contrast multiplier, 0..2, 1 neutral.
	Contrast float32

	// Deinterlace configuration.
	DeinterlaceFlag display.DeinterlaceFlag
	Deinterlace     display.DeinterlaceControl
}

// DefaultVideoEffects returns the neutral effect state.
func DefaultVideoEffects() VideoEffects {
	return VideoEffects{Saturation: 1, Brightness: 1, Contrast: 1}
}

// Source is one layer to compose, paired with its staged pixel data.
type Source struct {
	// Layer carries geometry, blending, and z order.
	Layer *display.OverlayLayer

	// Image is the CPU-visible pixel data of the full source buffer.
	// The backend applies the layer's source crop. May be nil for
	// GPU-only sources.
	Image *image.RGBA
}

// ComposeRequest describes one plane's composition pass.
type ComposeRequest struct {
	// Sources are the layers assigned to the plane, bottom to top.
	Sources []Source

	// PlaneFrame is the plane's destination rectangle on the display.
	// Source display frames are relative to the display, not the plane.
	PlaneFrame image.Rectangle

	// Damage restricts the redraw. Ignored when ClearFull is set.
	Damage image.Rectangle

	// ClearFull discards the target contents and redraws everything.
	ClearFull bool

	// Effects is non-nil when video effects apply to this plane.
	Effects *VideoEffects
}

// RenderBackend renders composition passes into off-screen surfaces.
// It abstracts the rendering implementation, allowing the compositor to
// use software blending or a GPU via wgpu.
//
// Backends must be registered via Register and are selected via Get or
// Default.
type RenderBackend interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// Init initializes the backend. It must be called before Compose.
	Init() error

	// Close releases all backend resources.
	Close()

	// Compose renders the request into the target surface. The target
	// buffer must be CPU- or GPU-reachable for the backend; damage
	// outside the plane frame is clipped.
	Compose(target *display.Surface, req *ComposeRequest) error
}
