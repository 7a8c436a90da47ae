// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "image"

// RevalidationType flags which plane constraints must be re-checked
// before the next commit.
type RevalidationType uint8

// Revalidation flags.
const (
	RevalidateNone RevalidationType = 0

	// RevalidateScanout marks a plane whose sole layer may be able to
	// scan out directly even though the plane currently composes.
	RevalidateScanout RevalidationType = 1 << 0

	// RevalidateDownscaling marks a plane whose layer shrinks beyond
	// the ratio the hardware scaler supports.
	RevalidateDownscaling RevalidationType = 1 << 1
)

// planeComposition describes how a plane realizes its source layers.
type planeComposition uint8

const (
	compositionScanout planeComposition = iota
	compositionRender
)

// PlaneState is one hardware plane's intended contents for the next
// commit: the assigned source layers, the off-screen surface ring when
// the plane composes, and the bookkeeping needed to reuse the plane
// across frames.
type PlaneState struct {
	plane HardwarePlane

	// sourceLayers indexes into the current frame's OverlayLayer slice,
	// in z order.
	sourceLayers []int

	// overlayLayer is the layer scanned out directly, when composition
	// is compositionScanout.
	overlayLayer *OverlayLayer

	// surfaces is the off-screen ring, newest first. Empty for pure
	// scan-out planes.
	surfaces []*Surface

	displayFrame image.Rectangle
	sourceCrop   RectF

	composition     planeComposition
	surfaceRecycled bool
	cursorPlane     bool
	videoPlane      bool
	applyEffects    bool

	revalidation RevalidationType

	// maxDownscale mirrors the plane manager's supported downscale
	// ratio so revalidation inference can run without the manager.
	maxDownscale float32
}

// NewPlaneState binds a hardware plane to an empty state.
func NewPlaneState(plane HardwarePlane) *PlaneState {
	return &PlaneState{plane: plane, maxDownscale: DefaultMaxDownscale}
}

// DefaultMaxDownscale is the largest source-to-destination shrink factor
// assumed scannable without GPU help when the plane manager does not
// say otherwise.
const DefaultMaxDownscale = 2.0

// Plane returns the bound hardware plane.
func (p *PlaneState) Plane() HardwarePlane { return p.plane }

// SourceLayers returns the z-ordered indices of the layers assigned to
// this plane. The slice is owned by the state; callers must not mutate.
func (p *PlaneState) SourceLayers() []int { return p.sourceLayers }

// DisplayFrame returns the union destination rectangle of the plane.
func (p *PlaneState) DisplayFrame() image.Rectangle { return p.displayFrame }

// SourceCrop returns the source region the plane samples.
func (p *PlaneState) SourceCrop() RectF { return p.sourceCrop }

// Scanout reports whether the plane scans a client buffer out directly.
func (p *PlaneState) Scanout() bool { return p.composition == compositionScanout }

// NeedsOffScreenComposition reports whether the plane presents a
// GPU-composed surface instead of a client buffer.
func (p *PlaneState) NeedsOffScreenComposition() bool {
	return p.composition == compositionRender
}

// SurfaceRecycled reports whether the plane reuses its last drawn
// surface this frame, skipping the GPU pass.
func (p *PlaneState) SurfaceRecycled() bool { return p.surfaceRecycled }

// SetSurfaceRecycled marks the plane's surface as reused for this frame.
func (p *PlaneState) SetSurfaceRecycled(recycled bool) { p.surfaceRecycled = recycled }

// IsCursorPlane reports whether this plane carries only a cursor layer.
// Cursor planes never participate in squash.
func (p *PlaneState) IsCursorPlane() bool { return p.cursorPlane }

// SetCursorPlane tags the plane as a cursor plane.
func (p *PlaneState) SetCursorPlane(cursor bool) { p.cursorPlane = cursor }

// IsVideoPlane reports whether this plane carries a video layer.
func (p *PlaneState) IsVideoPlane() bool { return p.videoPlane }

// SetVideoPlane tags the plane as a video plane.
func (p *PlaneState) SetVideoPlane(video bool) { p.videoPlane = video }

// ApplyEffects reports whether video effects are applied when composing
// this plane.
func (p *PlaneState) ApplyEffects() bool { return p.applyEffects }

// SetApplyEffects toggles video-effect composition for this plane.
func (p *PlaneState) SetApplyEffects(apply bool) { p.applyEffects = apply }

// CanSquash reports whether the plane may merge with an adjacent overlay
// plane. Cursor and video planes keep their own plane; effect planes
// must stay isolated so the effect does not leak onto other layers.
func (p *PlaneState) CanSquash() bool {
	return !p.cursorPlane && !p.videoPlane && !p.applyEffects
}

// OverlayLayer returns the directly scanned-out layer, or nil when the
// plane composes.
func (p *PlaneState) OverlayLayer() *OverlayLayer { return p.overlayLayer }

// SetOverlayLayer binds the layer the plane scans out and flips the
// plane to direct scan-out.
func (p *PlaneState) SetOverlayLayer(layer *OverlayLayer) {
	p.overlayLayer = layer
	p.composition = compositionScanout
	if layer != nil {
		p.displayFrame = layer.DisplayFrame()
		p.sourceCrop = layer.SourceCrop()
		p.cursorPlane = layer.IsCursorLayer()
		p.videoPlane = layer.IsVideoLayer()
	}
}

// AddLayer appends a source layer. More than one source layer forces
// off-screen composition.
func (p *PlaneState) AddLayer(layer *OverlayLayer) {
	p.sourceLayers = append(p.sourceLayers, layer.ZOrder())
	unionRect(layer.DisplayFrame(), &p.displayFrame)
	if layer.IsVideoLayer() {
		p.videoPlane = true
	}
	if len(p.sourceLayers) > 1 {
		p.composition = compositionRender
		p.overlayLayer = nil
		p.cursorPlane = false
	} else {
		p.cursorPlane = layer.IsCursorLayer()
	}
}

// ForceOffScreenComposition flips the plane to composed mode without
// adding layers, used when effects require a GPU pass over one layer.
func (p *PlaneState) ForceOffScreenComposition() {
	p.composition = compositionRender
	p.overlayLayer = nil
}

// ResetLayers drops all source layers with index >= threshold and
// recomputes the plane's display frame from the survivors.
func (p *PlaneState) ResetLayers(layers []*OverlayLayer, threshold int) {
	kept := p.sourceLayers[:0]
	p.displayFrame = image.Rectangle{}
	for _, idx := range p.sourceLayers {
		if idx >= threshold {
			continue
		}
		kept = append(kept, idx)
		unionRect(layers[idx].DisplayFrame(), &p.displayFrame)
	}
	p.sourceLayers = kept
}

// UpdateDisplayFrame grows the plane destination to cover a moved layer
// and schedules the necessary redraw.
func (p *PlaneState) UpdateDisplayFrame(frame image.Rectangle, fullDraw bool) {
	unionRect(frame, &p.displayFrame)
	if fullDraw {
		p.RefreshSurfaces(ClearFull, true)
	}
}

// UpdateSourceCrop grows the plane source crop after a layer crop change.
func (p *PlaneState) UpdateSourceCrop(crop RectF, fullDraw bool) {
	if p.sourceCrop.Empty() {
		p.sourceCrop = crop
	} else {
		if crop.Left < p.sourceCrop.Left {
			p.sourceCrop.Left = crop.Left
		}
		if crop.Top < p.sourceCrop.Top {
			p.sourceCrop.Top = crop.Top
		}
		if crop.Right > p.sourceCrop.Right {
			p.sourceCrop.Right = crop.Right
		}
		if crop.Bottom > p.sourceCrop.Bottom {
			p.sourceCrop.Bottom = crop.Bottom
		}
	}
	if fullDraw {
		p.RefreshSurfaces(ClearFull, true)
	}
}

// Surfaces returns the off-screen ring, newest first.
func (p *PlaneState) Surfaces() []*Surface { return p.surfaces }

// OffScreenTarget returns the surface currently drawn into or scanned
// out for this plane, or nil when the plane has no ring.
func (p *PlaneState) OffScreenTarget() *Surface {
	if len(p.surfaces) == 0 {
		return nil
	}
	return p.surfaces[0]
}

// NeedsSurfaceAllocation reports whether the plane composes but has no
// surface to compose into yet.
func (p *PlaneState) NeedsSurfaceAllocation() bool {
	return p.composition == compositionRender && len(p.surfaces) == 0
}

// AttachSurface loans a surface to the plane and makes it the current
// render target.
func (p *PlaneState) AttachSurface(s *Surface) {
	s.SetInUse(true)
	s.RequestClear(ClearFull)
	p.surfaces = append([]*Surface{s}, p.surfaces...)
	p.surfaceRecycled = false
}

// DetachSurfaces removes and returns the ring. The caller (plane
// manager) decides when the surfaces become reusable.
func (p *PlaneState) DetachSurfaces() []*Surface {
	out := p.surfaces
	p.surfaces = nil
	p.surfaceRecycled = false
	return out
}

// SwapSurface rotates the oldest surface of the ring to the front and
// returns it as the next render target. Returns nil when the ring is
// empty.
func (p *PlaneState) SwapSurface() *Surface {
	n := len(p.surfaces)
	if n == 0 {
		return nil
	}
	oldest := 0
	for i := 1; i < n; i++ {
		if p.surfaces[i].Age() < p.surfaces[oldest].Age() {
			oldest = i
		}
	}
	s := p.surfaces[oldest]
	copy(p.surfaces[1:oldest+1], p.surfaces[:oldest])
	p.surfaces[0] = s
	p.surfaceRecycled = false
	return s
}

// RefreshSurfaces requests a redraw of every surface in the ring.
// With fullDraw the entire plane area is redrawn rather than the
// tracked damage.
func (p *PlaneState) RefreshSurfaces(clear ClearType, fullDraw bool) {
	for _, s := range p.surfaces {
		if fullDraw || clear == ClearFull {
			s.RequestClear(ClearFull)
		} else {
			s.UpdateDamage(p.displayFrame)
		}
	}
	p.surfaceRecycled = false
}

// UpdateDamage pushes a damaged region onto every surface in the ring.
func (p *PlaneState) UpdateDamage(damage image.Rectangle) {
	for _, s := range p.surfaces {
		s.UpdateDamage(damage)
	}
	p.surfaceRecycled = false
}

// RevalidationType returns the pending constraint re-checks.
func (p *PlaneState) RevalidationType() RevalidationType { return p.revalidation }

// RevalidationDone clears the given re-check flags.
func (p *PlaneState) RevalidationDone(t RevalidationType) {
	p.revalidation &^= t
}

// ValidateReValidation infers which constraints have to be re-checked
// from the current layer assignment: a composed plane that is down to a
// single layer is a direct scan-out candidate, and a shrink beyond the
// scaler limit needs GPU help.
func (p *PlaneState) ValidateReValidation() {
	p.revalidation = RevalidateNone
	if len(p.sourceLayers) == 1 && p.composition == compositionRender {
		p.revalidation |= RevalidateScanout
	}
	if p.downscaleExceeded() {
		p.revalidation |= RevalidateDownscaling
	}
}

// downscaleExceeded checks the source-to-destination shrink factor
// against the supported scaler ratio.
func (p *PlaneState) downscaleExceeded() bool {
	if p.sourceCrop.Empty() || p.displayFrame.Empty() {
		return false
	}
	dw := float32(p.displayFrame.Dx())
	dh := float32(p.displayFrame.Dy())
	if dw <= 0 || dh <= 0 {
		return false
	}
	return p.sourceCrop.Width()/dw > p.maxDownscale ||
		p.sourceCrop.Height()/dh > p.maxDownscale
}

// clone copies the plane state for the next frame's composition list.
// The surface ring is shared (surfaces are loans from the plane
// manager); per-frame flags reset.
func (p *PlaneState) clone() *PlaneState {
	c := *p
	c.sourceLayers = append([]int(nil), p.sourceLayers...)
	c.surfaces = append([]*Surface(nil), p.surfaces...)
	c.surfaceRecycled = true
	return &c
}
