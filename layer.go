// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Layer is the caller-facing description of one application layer for
// one frame. The queue never retains a *Layer across frames; it snapshots
// each visible layer into an OverlayLayer during QueueUpdate.
//
// The acquire fence descriptor is consumed exactly once per QueueUpdate.
// The release fence is written back exactly once per successful commit
// (possibly with -1).
type Layer struct {
	// NativeHandle identifies the client buffer for import through the
	// ResourceManager. The ResourceManager may use it to reuse an earlier
	// import even when Buffer is set.
	NativeHandle uint64

	// Buffer is the imported buffer backing this layer, when the caller
	// has already resolved it.
	Buffer *BufferRef

	// AcquireFenceFD signals when the producer finished writing the
	// buffer. Ownership transfers to the queue; -1 means none.
	AcquireFenceFD int

	SourceCrop   RectF
	DisplayFrame image.Rectangle

	// SurfaceDamage is the region the producer changed since the frame
	// that last displayed this buffer. Empty means unknown (full damage
	// is assumed when the buffer changed).
	SurfaceDamage image.Rectangle

	Transform Transform
	Blending  Blending

	// Alpha is the plane-wide alpha, 0 (transparent) to 255 (opaque).
	Alpha uint8

	Visible bool
	Cursor  bool
	Video   bool

	// RawPixelData carries CPU pixels for layers without an importable
	// buffer handle. The compositor uploads them before drawing.
	RawPixelData []byte

	// ForceFullDraw requests a full redraw of any surface this layer
	// composes into, regardless of damage tracking.
	ForceFullDraw bool

	releaseFence int
	composition  CompositionType
}

// SetReleaseFence stores the release fence descriptor for the caller.
// The layer owns the descriptor until the caller collects it.
func (l *Layer) SetReleaseFence(fd int) {
	if l.releaseFence > 0 {
		closeFD(l.releaseFence)
	}
	l.releaseFence = fd
}

// ReleaseFence returns the release fence descriptor and transfers
// ownership to the caller. Returns -1 when there is none.
func (l *Layer) ReleaseFence() int {
	fd := l.releaseFence
	l.releaseFence = -1
	if fd == 0 {
		fd = -1
	}
	return fd
}

// Composition reports how the layer reached the screen last frame.
func (l *Layer) Composition() CompositionType {
	return l.composition
}

// Dirty bits computed while snapshotting a layer against its z-matched
// previous-frame counterpart.
const (
	layerDimensionsChanged uint8 = 1 << iota
	layerSourceRectChanged
	layerContentChanged
	layerNeedsFullDraw
	layerNeedsRevalidation
	layerRawPixelChanged
)

// OverlayLayer is the queue's per-frame snapshot of one visible layer.
// It is immutable after construction except for the composition tag and
// the owned acquire fence, which moves out exactly once.
type OverlayLayer struct {
	zOrder     int
	layerIndex int

	sourceCrop    RectF
	displayFrame  image.Rectangle
	surfaceDamage image.Rectangle

	transform Transform
	blending  Blending
	alpha     uint8

	buffer       *BufferRef
	acquireFence *Fence

	visible  bool
	cursor   bool
	video    bool
	rawPixel bool

	rawData []byte

	dirty       uint8
	composition CompositionType
}

// RawPixelData returns the CPU pixel data for layers without an
// importable buffer, or nil.
func (o *OverlayLayer) RawPixelData() []byte { return o.rawData }

// ZOrder returns the dense z position of the layer in the current frame.
func (o *OverlayLayer) ZOrder() int { return o.zOrder }

// LayerIndex returns the index of the source layer in the caller's input
// list, which may differ from ZOrder when invisible layers were skipped.
func (o *OverlayLayer) LayerIndex() int { return o.layerIndex }

// DisplayFrame returns the on-screen destination rectangle.
func (o *OverlayLayer) DisplayFrame() image.Rectangle { return o.displayFrame }

// SourceCrop returns the sampled region of the source buffer.
func (o *OverlayLayer) SourceCrop() RectF { return o.sourceCrop }

// SurfaceDamage returns the content damage for this frame.
func (o *OverlayLayer) SurfaceDamage() image.Rectangle { return o.surfaceDamage }

// Buffer returns the buffer backing the layer.
func (o *OverlayLayer) Buffer() *BufferRef { return o.buffer }

// Transform returns the combined layer and display transform.
func (o *OverlayLayer) Transform() Transform { return o.transform }

// Blending returns the blending mode.
func (o *OverlayLayer) Blending() Blending { return o.blending }

// Alpha returns the plane-wide alpha.
func (o *OverlayLayer) Alpha() uint8 { return o.alpha }

// IsVisible reports whether the layer survived constraint handling.
func (o *OverlayLayer) IsVisible() bool { return o.visible }

// IsCursorLayer reports whether the layer is a cursor.
func (o *OverlayLayer) IsCursorLayer() bool { return o.cursor }

// IsVideoLayer reports whether the layer carries video content.
func (o *OverlayLayer) IsVideoLayer() bool { return o.video }

// RawPixelDataChanged reports whether CPU pixel data must be re-uploaded.
func (o *OverlayLayer) RawPixelDataChanged() bool {
	return o.dirty&layerRawPixelChanged != 0
}

// HasDimensionsChanged reports whether the display frame moved or resized
// relative to the previous frame.
func (o *OverlayLayer) HasDimensionsChanged() bool {
	return o.dirty&layerDimensionsChanged != 0
}

// HasSourceRectChanged reports whether the source crop changed.
func (o *OverlayLayer) HasSourceRectChanged() bool {
	return o.dirty&layerSourceRectChanged != 0
}

// HasLayerContentChanged reports whether the buffer contents changed.
func (o *OverlayLayer) HasLayerContentChanged() bool {
	return o.dirty&layerContentChanged != 0
}

// NeedsFullDraw reports whether surfaces composing this layer must be
// redrawn in full.
func (o *OverlayLayer) NeedsFullDraw() bool {
	return o.dirty&layerNeedsFullDraw != 0
}

// NeedsRevalidation reports whether plane constraints must be re-checked
// for this layer.
func (o *OverlayLayer) NeedsRevalidation() bool {
	return o.dirty&layerNeedsRevalidation != 0
}

// CanScanOut reports whether the layer could be placed on a hardware
// plane directly: it needs an imported buffer and no raw pixel data.
// Blending is not considered.
func (o *OverlayLayer) CanScanOut() bool {
	return o.buffer != nil && !o.rawPixel
}

// Format returns the pixel format of the backing buffer.
func (o *OverlayLayer) Format() gputypes.TextureFormat {
	if o.buffer == nil {
		return 0
	}
	return o.buffer.Format
}

// AcquireFence exposes the owned acquire fence without transferring
// ownership. May be nil.
func (o *OverlayLayer) AcquireFence() *Fence {
	return o.acquireFence
}

// ReleaseAcquireFence moves the acquire fence descriptor out of the
// layer. The caller owns the returned descriptor; -1 means none. A
// second call returns -1.
func (o *OverlayLayer) ReleaseAcquireFence() int {
	fd := o.acquireFence.Release()
	o.acquireFence = nil
	return fd
}

// SetLayerComposition tags how the layer was realized this frame.
func (o *OverlayLayer) SetLayerComposition(t CompositionType) {
	o.composition = t
}

// NewOverlayLayer snapshots a caller layer, resolving its buffer through
// the resource manager and diffing against the z-matched previous-frame
// snapshot. displayHeight is needed to flip the frame under an inverted
// display transform.
func NewOverlayLayer(layer *Layer, rm ResourceManager, previous *OverlayLayer,
	zOrder, layerIndex int, displayHeight uint32, planeTransform Transform,
	handleConstraints bool) *OverlayLayer {
	return initOverlayLayer(layer, rm, previous, zOrder, layerIndex,
		layer.DisplayFrame, displayHeight, planeTransform, handleConstraints)
}

// NewScaledOverlayLayer is NewOverlayLayer with a display frame already
// adjusted by the clone-mode scaling ratios.
func NewScaledOverlayLayer(layer *Layer, rm ResourceManager, previous *OverlayLayer,
	zOrder, layerIndex int, frame image.Rectangle, displayHeight uint32,
	planeTransform Transform, handleConstraints bool) *OverlayLayer {
	return initOverlayLayer(layer, rm, previous, zOrder, layerIndex,
		frame, displayHeight, planeTransform, handleConstraints)
}

func initOverlayLayer(layer *Layer, rm ResourceManager, previous *OverlayLayer,
	zOrder, layerIndex int, frame image.Rectangle, displayHeight uint32,
	planeTransform Transform, handleConstraints bool) *OverlayLayer {
	o := &OverlayLayer{
		zOrder:       zOrder,
		layerIndex:   layerIndex,
		sourceCrop:   layer.SourceCrop,
		displayFrame: frame,
		transform:    combineTransform(layer.Transform, planeTransform),
		blending:     layer.Blending,
		alpha:        layer.Alpha,
		cursor:       layer.Cursor,
		video:        layer.Video,
		rawPixel:     len(layer.RawPixelData) > 0,
		rawData:      layer.RawPixelData,
		acquireFence: NewFence(layer.AcquireFenceFD),
	}

	if planeTransform&(Transform180|TransformFlipV) != 0 && displayHeight > 0 {
		h := int(displayHeight)
		o.displayFrame = image.Rect(
			o.displayFrame.Min.X, h-o.displayFrame.Max.Y,
			o.displayFrame.Max.X, h-o.displayFrame.Min.Y)
	}

	o.buffer = layer.Buffer
	if rm != nil && !o.rawPixel {
		buf, err := rm.ImportBuffer(layer)
		if err != nil {
			Logger().Warn("display: buffer import failed",
				"layer", layerIndex, "err", err)
		} else {
			o.buffer = buf
		}
	}

	o.visible = o.computeVisibility(handleConstraints)
	if !o.visible {
		return o
	}

	o.diff(layer, previous)
	return o
}

// computeVisibility applies the constraints that can hide a layer after
// snapshotting: zero alpha, an empty destination, or no pixel source.
func (o *OverlayLayer) computeVisibility(handleConstraints bool) bool {
	if o.alpha == 0 || o.displayFrame.Empty() {
		return false
	}
	if o.buffer == nil && !o.rawPixel {
		return false
	}
	if handleConstraints && o.sourceCrop.Empty() {
		return false
	}
	return true
}

// diff fills the dirty bits from the z-matched previous-frame layer.
// With no previous layer everything is new: geometry and content count as
// changed and a full draw is needed.
func (o *OverlayLayer) diff(layer *Layer, previous *OverlayLayer) {
	if layer.ForceFullDraw {
		o.dirty |= layerNeedsFullDraw
	}

	if previous == nil {
		o.dirty |= layerDimensionsChanged | layerSourceRectChanged |
			layerContentChanged | layerNeedsFullDraw
		o.surfaceDamage = o.displayFrame
		if o.rawPixel {
			o.dirty |= layerRawPixelChanged
		}
		return
	}

	if o.displayFrame != previous.displayFrame {
		o.dirty |= layerDimensionsChanged
	}
	if o.sourceCrop != previous.sourceCrop {
		o.dirty |= layerSourceRectChanged
	}

	var sameBuffer bool
	if o.rawPixel {
		// Raw pixel layers have no buffer identity to compare; the
		// caller signals changes through the damage rect.
		sameBuffer = previous.rawPixel && layer.SurfaceDamage.Empty() &&
			!layer.ForceFullDraw
		if !sameBuffer {
			o.dirty |= layerRawPixelChanged
		}
	} else {
		sameBuffer = o.buffer != nil && o.buffer == previous.buffer
	}

	if !sameBuffer {
		o.dirty |= layerContentChanged
		if !layer.SurfaceDamage.Empty() {
			o.surfaceDamage = layer.SurfaceDamage
		} else {
			o.surfaceDamage = o.displayFrame
		}
	}

	if o.transform != previous.transform || o.blending != previous.blending ||
		o.alpha != previous.alpha || o.Format() != previous.Format() {
		o.dirty |= layerNeedsRevalidation | layerNeedsFullDraw
	}
}

// combineTransform merges a layer transform with the display transform.
// Opposite quarter turns cancel; everything else accumulates.
func combineTransform(layer, plane Transform) Transform {
	if plane == TransformIdentity {
		return layer
	}
	if layer&Transform90 != 0 && plane&Transform270 != 0 {
		return (layer &^ Transform90) | (plane &^ Transform270)
	}
	if layer&Transform270 != 0 && plane&Transform90 != 0 {
		return (layer &^ Transform270) | (plane &^ Transform90)
	}
	return layer | plane
}
