// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"

	"github.com/gogpu/gputypes"
)

// HardwarePlane is a compositing plane of the display controller. The
// queue only needs identity and usage tracking; capability matching is
// the plane manager's business.
type HardwarePlane interface {
	// ID returns the kernel object id of the plane.
	ID() uint32

	// InUse reports whether the plane is part of the current
	// composition.
	InUse() bool

	// SetInUse marks the plane as claimed or free.
	SetInUse(inUse bool)
}

// ValidationResult reports the outcome of a plane-assignment pass.
type ValidationResult struct {
	// RenderLayers is true when at least one plane needs GPU
	// composition.
	RenderLayers bool

	// CommitChecked is true when the assignment was verified against
	// hardware constraints, clearing any pending commit re-validation.
	CommitChecked bool

	// NeedsPlaneValidation is true when ReValidatePlanes must run over
	// the full plane list before commit.
	NeedsPlaneValidation bool
}

// PlaneManager is the capability oracle and allocator for hardware
// planes and off-screen render targets.
type PlaneManager interface {
	// Initialize discovers planes for a display of the given size.
	Initialize(width, height uint32) error

	// SetDisplayTransform fixes the transform applied to every plane.
	SetDisplayTransform(t Transform)

	// ValidateLayers assigns layers[addIndex:] to planes, appending to
	// composition. With addIndex zero the assignment is rebuilt from
	// scratch; surfaces of dropped previous planes move to notInUse.
	ValidateLayers(layers []*OverlayLayer, addIndex int, forceGPU bool,
		composition *[]*PlaneState, previous []*PlaneState,
		notInUse *[]*Surface) ValidationResult

	// ReValidatePlanes re-checks constraints across an already built
	// composition. fullValidation requests a fallback to a full
	// ValidateLayers pass when the composition cannot be patched.
	ReValidatePlanes(composition []*PlaneState, layers []*OverlayLayer,
		notInUse *[]*Surface, planesValidation, revalidateCommit bool) (render, fullValidation bool)

	// SetOffScreenPlaneTarget ensures the plane has a surface to
	// compose into, allocating from the pool as needed.
	SetOffScreenPlaneTarget(plane *PlaneState) bool

	// MarkSurfacesForRecycling detaches the plane's surfaces. With
	// releaseNow false the surfaces age out through notInUse first,
	// because they may still be on screen.
	MarkSurfacesForRecycling(plane *PlaneState, notInUse *[]*Surface, releaseNow bool)

	// ReleaseFreeOffScreenTargets returns aged-out surfaces to the pool.
	ReleaseFreeOffScreenTargets()

	// ReleaseAllOffScreenTargets drops every pooled surface.
	ReleaseAllOffScreenTargets()

	// HasSurfaces reports whether any off-screen surfaces exist.
	HasSurfaces() bool

	// Height returns the display height used for geometry flipping.
	Height() uint32

	// GPUFD returns the render-node descriptor for buffer allocation.
	GPUFD() int

	// CheckPlaneFormat reports whether any plane scans out the format.
	CheckPlaneFormat(format gputypes.TextureFormat) bool
}

// Compositor is the GPU composition backend. It renders the source
// layers of composed planes into their off-screen surfaces.
type Compositor interface {
	// Init prepares the compositor for a display pipe. The device may
	// be shared with the host application; gpuFD is the render node.
	Init(rm ResourceManager, gpuFD int) error

	// Reset drops all per-pipe compositor state.
	Reset()

	// BeginFrame starts a composition frame.
	BeginFrame(disableOverlays bool) bool

	// Draw composes every plane that needs off-screen composition.
	// rects carries the display frame of each layer, indexed like
	// layers.
	Draw(planes []*PlaneState, layers []*OverlayLayer, rects []image.Rectangle) bool

	// UpdateLayerPixelData uploads raw pixel data for layers without
	// importable buffers.
	UpdateLayerPixelData(layers []*OverlayLayer)

	// EnsurePixelDataUpdated flushes pending raw pixel uploads when no
	// draw pass runs this frame.
	EnsurePixelDataUpdated()

	// Video effect state, applied when drawing video planes.
	SetVideoScalingMode(mode uint32)
	SetVideoColor(ctrl ColorControl, value float32)
	GetVideoColor(ctrl ColorControl) (value, rangeStart, rangeEnd float32)
	RestoreVideoDefaultColor(ctrl ColorControl)
	SetVideoDeinterlace(flag DeinterlaceFlag, mode DeinterlaceControl)
	RestoreVideoDefaultDeinterlace()
}

// Gamma holds per-channel gamma correction values.
type Gamma struct {
	Red, Green, Blue float32
}

// PhysicalDisplay is the commit sink: it programs the assembled plane
// list into the kernel atomically and returns the retire fence.
type PhysicalDisplay interface {
	// Commit submits the plane configuration. previous is the state on
	// screen, used to compute the delta. The returned fence signals
	// when the frame leaves the pipeline; it may be nil.
	Commit(current, previous []*PlaneState, disableOverlays bool) (*Fence, error)

	// Disable turns off every plane in the given state.
	Disable(previous []*PlaneState)

	// SetColorCorrection programs gamma plus packed 0xRRGGBB contrast
	// and brightness.
	SetColorCorrection(gamma Gamma, contrast, brightness uint32)

	// SetColorTransformMatrix programs the 4x4 color transform.
	SetColorTransformMatrix(matrix *[16]float32, hint ColorTransformHint)

	// HandleLazyInitialization runs deferred setup after the first
	// successful commit.
	HandleLazyInitialization()
}

// VblankHandler delivers vertical-blank events for one pipe and gates
// them on power mode.
type VblankHandler interface {
	// Init binds the handler to a pipe on the given device.
	Init(gpuFD int, pipe uint32) error

	// SetPowerMode starts or stops event delivery.
	SetPowerMode(mode PowerMode)

	// VSyncControl enables or disables vsync callback delivery without
	// changing power state.
	VSyncControl(enabled bool)

	// RegisterCallback installs the vsync callback for a display id and
	// returns zero on success.
	RegisterCallback(cb VsyncCallback, displayID uint32) int
}
