// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

// PowerMode selects the power state of a display pipe.
type PowerMode uint32

// Power modes, in increasing order of activity.
const (
	// PowerOff fully disables the pipe. Plane state is torn down.
	PowerOff PowerMode = iota

	// PowerDoze is a low-power display state. Treated like PowerOff by
	// the queue; the panel self-refreshes from its last buffer.
	PowerDoze

	// PowerDozeSuspend keeps the pipe powered but suspends updates.
	PowerDozeSuspend

	// PowerOn enables the pipe for normal frame updates.
	PowerOn
)

// String returns a human-readable name for the power mode.
func (m PowerMode) String() string {
	switch m {
	case PowerOff:
		return "Off"
	case PowerDoze:
		return "Doze"
	case PowerDozeSuspend:
		return "DozeSuspend"
	case PowerOn:
		return "On"
	default:
		return "Unknown"
	}
}

// Transform describes the rotation and reflection applied to a layer or
// to the whole display. Values are bit flags and may be combined.
type Transform uint32

// Transform flags.
const (
	TransformIdentity Transform = 0
	TransformFlipH    Transform = 1 << 0
	TransformFlipV    Transform = 1 << 1
	Transform90       Transform = 1 << 2
	Transform180      Transform = 1 << 3
	Transform270      Transform = 1 << 4
)

// Rotation is a caller-facing display rotation request.
type Rotation uint32

// Display rotations.
const (
	RotateNone Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

// Blending specifies how a layer's pixels are combined with the layers
// beneath it.
type Blending uint8

// Blending modes.
const (
	// BlendingNone scans the layer out opaque, ignoring alpha.
	BlendingNone Blending = iota

	// BlendingPremult blends with premultiplied alpha (source-over).
	BlendingPremult

	// BlendingCoverage blends with non-premultiplied alpha.
	BlendingCoverage
)

// ColorTransformHint describes the shape of a color transform matrix so
// hardware can skip programming in the identity case.
type ColorTransformHint uint8

// Color transform hints.
const (
	ColorTransformIdentity ColorTransformHint = iota
	ColorTransformArbitrary
)

// ColorControl selects a video color adjustment channel.
type ColorControl uint8

// Video color controls.
const (
	ColorControlHue ColorControl = iota
	ColorControlSaturation
	ColorControlBrightness
	ColorControlContrast
)

// DeinterlaceFlag enables or disables deinterlacing of video planes.
type DeinterlaceFlag uint8

// Deinterlace flags.
const (
	DeinterlaceFlagNone DeinterlaceFlag = iota
	DeinterlaceFlagForce
	DeinterlaceFlagAuto
)

// DeinterlaceControl selects the deinterlacing algorithm.
type DeinterlaceControl uint8

// Deinterlace algorithms.
const (
	DeinterlaceNone DeinterlaceControl = iota
	DeinterlaceBob
	DeinterlaceWeave
	DeinterlaceMotionAdaptive
	DeinterlaceMotionCompensated
)

// CompositionType records how a layer reached the screen on the last
// committed frame.
type CompositionType uint8

// Composition types.
const (
	// CompositionDisplay means the layer was scanned out by a hardware
	// plane directly.
	CompositionDisplay CompositionType = iota

	// CompositionGPU means the layer was rendered into an off-screen
	// surface by the GPU compositor.
	CompositionGPU
)

// queue state bits. Mirrors the lifetime flags tracked per pipe; sticky
// bits (clone mode, overlay usage) survive HandleExit.
const (
	stateConfigurationChanged uint32 = 1 << iota
	statePoweredOn
	stateDisableOverlayUsage
	stateNeedsColorCorrection
	stateClonedMode
	stateIgnoreIdleRefresh
	stateLastFrameIdleUpdate
	stateMarkSurfacesForRelease
	stateReleaseSurfaces
)

// VsyncCallback is invoked on each vertical blank while vsync delivery
// is enabled for the registered display.
type VsyncCallback func(displayID uint32, timestampNs int64)

// RefreshCallback asks the owner of the queue to schedule a new frame,
// typically in response to idle detection or a forced refresh.
type RefreshCallback func(displayID uint32)
