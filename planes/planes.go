// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package planes implements the plane capability oracle and allocator
// behind a display queue: greedy assignment of layers to hardware
// planes with GPU fallback, constraint re-validation, and the
// off-screen surface pool.
package planes

import (
	"errors"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/display"
)

// Package errors.
var (
	// ErrNoPlanes is returned when the provider exposes no planes.
	ErrNoPlanes = errors.New("planes: no hardware planes")

	// ErrNoProvider is returned when the manager has no plane provider.
	ErrNoProvider = errors.New("planes: no plane provider")
)

// Type classifies a hardware plane.
type Type uint8

// Plane types.
const (
	// TypeOverlay planes carry arbitrary layers.
	TypeOverlay Type = iota

	// TypePrimary is the bottom plane; some hardware disables the
	// whole pipe when it has no buffer.
	TypePrimary

	// TypeCursor planes are small and sample cursor images only.
	TypeCursor
)

// Plane extends the queue's plane handle with the capabilities the
// manager matches layers against.
type Plane interface {
	display.HardwarePlane

	// Type classifies the plane.
	Type() Type

	// SupportsFormat reports whether the plane scans out the format.
	SupportsFormat(format gputypes.TextureFormat) bool

	// SupportsTransform reports whether the plane applies the
	// transform in hardware.
	SupportsTransform(t display.Transform) bool
}

// Provider enumerates the hardware planes of one pipe.
type Provider interface {
	Planes() ([]Plane, error)
}

// Allocator allocates and frees off-screen render-target buffers.
type Allocator interface {
	Allocate(width, height uint32, format gputypes.TextureFormat) (*display.BufferRef, error)
	Release(buf *display.BufferRef)
}

// Manager implements display.PlaneManager.
type Manager struct {
	gpuFD     int
	provider  Provider
	allocator Allocator

	width, height uint32
	transform     display.Transform

	// planes in z order: primary first, cursor last.
	planes []Plane

	// surfaces is every allocated off-screen surface, in use or pooled.
	surfaces []*display.Surface

	surfaceFormat gputypes.TextureFormat
}

// NewManager creates a plane manager for one pipe. The allocator backs
// off-screen surfaces; the provider enumerates planes.
func NewManager(gpuFD int, provider Provider, allocator Allocator) *Manager {
	return &Manager{
		gpuFD:         gpuFD,
		provider:      provider,
		allocator:     allocator,
		surfaceFormat: gputypes.TextureFormatRGBA8Unorm,
	}
}

// Initialize discovers planes for a display of the given size.
func (m *Manager) Initialize(width, height uint32) error {
	if m.provider == nil {
		return ErrNoProvider
	}
	planes, err := m.provider.Planes()
	if err != nil {
		return err
	}
	if len(planes) == 0 {
		return ErrNoPlanes
	}

	// Primary first, overlays in enumeration order, cursor last.
	ordered := make([]Plane, 0, len(planes))
	for _, p := range planes {
		if p.Type() == TypePrimary {
			ordered = append(ordered, p)
		}
	}
	for _, p := range planes {
		if p.Type() == TypeOverlay {
			ordered = append(ordered, p)
		}
	}
	for _, p := range planes {
		if p.Type() == TypeCursor {
			ordered = append(ordered, p)
		}
	}
	if ordered[0].Type() != TypePrimary {
		return ErrNoPlanes
	}

	m.planes = ordered
	m.width = width
	m.height = height
	return nil
}

// SetDisplayTransform fixes the transform applied to every plane.
func (m *Manager) SetDisplayTransform(t display.Transform) {
	m.transform = t
}

// Height returns the display height.
func (m *Manager) Height() uint32 { return m.height }

// GPUFD returns the render-node descriptor.
func (m *Manager) GPUFD() int { return m.gpuFD }

// CheckPlaneFormat reports whether any plane scans out the format.
func (m *Manager) CheckPlaneFormat(format gputypes.TextureFormat) bool {
	for _, p := range m.planes {
		if p.SupportsFormat(format) {
			return true
		}
	}
	return false
}

// canScanOut reports whether a plane can present the layer directly.
func (m *Manager) canScanOut(p Plane, layer *display.OverlayLayer) bool {
	if !layer.CanScanOut() {
		return false
	}
	if layer.IsCursorLayer() != (p.Type() == TypeCursor) {
		return false
	}
	if !p.SupportsFormat(layer.Format()) {
		return false
	}
	if layer.Transform() != display.TransformIdentity &&
		!p.SupportsTransform(layer.Transform()) {
		return false
	}
	return true
}

// freePlanes returns the planes not claimed by a composition, in z
// order.
func (m *Manager) freePlanes() []Plane {
	var free []Plane
	for _, p := range m.planes {
		if !p.InUse() {
			free = append(free, p)
		}
	}
	return free
}

// ValidateLayers assigns layers[addIndex:] to planes. With addIndex
// zero the previous composition is torn down first and the assignment
// rebuilt from scratch.
func (m *Manager) ValidateLayers(layers []*display.OverlayLayer, addIndex int,
	forceGPU bool, composition *[]*display.PlaneState,
	previous []*display.PlaneState, notInUse *[]*display.Surface) display.ValidationResult {
	res := display.ValidationResult{CommitChecked: true}
	if len(m.planes) == 0 {
		return res
	}

	if addIndex == 0 {
		for _, prev := range previous {
			m.MarkSurfacesForRecycling(prev, notInUse, false)
			if prev.Plane() != nil {
				prev.Plane().SetInUse(false)
			}
		}
		*composition = (*composition)[:0]
	}

	free := m.freePlanes()
	suffix := layers[addIndex:]
	if len(suffix) == 0 {
		return res
	}

	if forceGPU || len(free) == 0 {
		// Everything remaining composes into one plane: the first free
		// plane, or the tail plane of the cached prefix.
		var state *display.PlaneState
		if len(free) > 0 {
			state = display.NewPlaneState(free[0])
			free[0].SetInUse(true)
			*composition = append(*composition, state)
		} else if n := len(*composition); n > 0 {
			state = (*composition)[n-1]
		} else {
			return res
		}
		for _, layer := range suffix {
			state.AddLayer(layer)
		}
		state.ForceOffScreenComposition()
		m.SetOffScreenPlaneTarget(state)
		res.RenderLayers = true
		return res
	}

	// Hold the cursor plane back for a cursor layer in the suffix.
	var cursorReserved Plane
	for _, layer := range suffix {
		if !layer.IsCursorLayer() {
			continue
		}
		for _, p := range free {
			if p.Type() == TypeCursor {
				cursorReserved = p
				break
			}
		}
		break
	}

	var state *display.PlaneState
	for i, layer := range suffix {
		remaining := len(suffix) - i
		target := m.nextPlane(free, layer, cursorReserved)
		squeeze := target == nil ||
			(remaining > m.freeCount(free, cursorReserved, layer) && state != nil)
		if squeeze {
			// Out of planes; the tail composes into the last plane.
			if state == nil {
				if n := len(*composition); n > 0 {
					state = (*composition)[n-1]
				} else if len(free) > 0 {
					// Nothing assigned yet: give up the cursor
					// reservation rather than drop the layer.
					state = display.NewPlaneState(free[0])
					free[0].SetInUse(true)
					free = free[1:]
					cursorReserved = nil
					*composition = append(*composition, state)
				} else {
					break
				}
			}
			state.AddLayer(layer)
			state.ForceOffScreenComposition()
			continue
		}

		free = removePlane(free, target)
		target.SetInUse(true)
		ps := display.NewPlaneState(target)
		ps.AddLayer(layer)
		if m.canScanOut(target, layer) {
			ps.SetOverlayLayer(layer)
		} else {
			ps.ForceOffScreenComposition()
		}
		*composition = append(*composition, ps)
		state = ps
	}

	for _, ps := range *composition {
		if ps.NeedsOffScreenComposition() {
			m.SetOffScreenPlaneTarget(ps)
			if !ps.SurfaceRecycled() {
				res.RenderLayers = true
			}
		}
	}
	return res
}

// nextPlane picks the plane for a layer: the reserved cursor plane for
// cursor layers, otherwise the lowest free non-reserved plane.
func (m *Manager) nextPlane(free []Plane, layer *display.OverlayLayer, cursorReserved Plane) Plane {
	if layer.IsCursorLayer() && cursorReserved != nil {
		return cursorReserved
	}
	for _, p := range free {
		if p == cursorReserved {
			continue
		}
		return p
	}
	return nil
}

// freeCount counts the planes usable for non-cursor layers, keeping the
// reservation out of the budget.
func (m *Manager) freeCount(free []Plane, cursorReserved Plane, layer *display.OverlayLayer) int {
	n := len(free)
	if cursorReserved != nil && !layer.IsCursorLayer() {
		n--
	}
	return n
}

func removePlane(free []Plane, p Plane) []Plane {
	for i, q := range free {
		if q == p {
			return append(free[:i], free[i+1:]...)
		}
	}
	return free
}

// ReValidatePlanes re-checks constraints across an already built
// composition: composed single-layer planes flip back to scan-out when
// they can, scan-out planes that lost hardware support flip to
// composition, and excessive downscaling forces a GPU pass.
func (m *Manager) ReValidatePlanes(composition []*display.PlaneState,
	layers []*display.OverlayLayer, notInUse *[]*display.Surface,
	planesValidation, revalidateCommit bool) (render, fullValidation bool) {
	for _, ps := range composition {
		plane, ok := ps.Plane().(Plane)
		if !ok {
			fullValidation = true
			return
		}

		if planesValidation && ps.RevalidationType()&display.RevalidateScanout != 0 &&
			ps.NeedsOffScreenComposition() && len(ps.SourceLayers()) == 1 {
			layer := layers[ps.SourceLayers()[0]]
			if m.canScanOut(plane, layer) {
				m.MarkSurfacesForRecycling(ps, notInUse, false)
				ps.SetOverlayLayer(layer)
			}
			ps.RevalidationDone(display.RevalidateScanout)
		}

		if ps.RevalidationType()&display.RevalidateDownscaling != 0 {
			if ps.Scanout() {
				ps.ForceOffScreenComposition()
				m.SetOffScreenPlaneTarget(ps)
			}
			ps.RevalidationDone(display.RevalidateDownscaling)
		}

		if revalidateCommit && ps.Scanout() {
			layer := ps.OverlayLayer()
			if layer == nil && len(ps.SourceLayers()) == 1 {
				layer = layers[ps.SourceLayers()[0]]
			}
			if layer == nil || !m.canScanOut(plane, layer) {
				ps.ForceOffScreenComposition()
				if !m.SetOffScreenPlaneTarget(ps) {
					fullValidation = true
					return
				}
			}
		}

		if ps.NeedsOffScreenComposition() && !ps.SurfaceRecycled() {
			render = true
		}
	}
	return
}

// SetOffScreenPlaneTarget grows the plane's ring to three surfaces,
// reusing pooled surfaces before allocating.
func (m *Manager) SetOffScreenPlaneTarget(plane *display.PlaneState) bool {
	if m.allocator == nil {
		return false
	}
	for len(plane.Surfaces()) < 3 {
		s := m.takeFreeSurface()
		if s == nil {
			buf, err := m.allocator.Allocate(m.width, m.height, m.surfaceFormat)
			if err != nil {
				display.Logger().Error("planes: surface allocation failed", "err", err)
				return false
			}
			s = display.NewSurface(buf)
			m.surfaces = append(m.surfaces, s)
		}
		plane.AttachSurface(s)
	}
	return true
}

// takeFreeSurface returns a pooled surface matching the display size.
func (m *Manager) takeFreeSurface() *display.Surface {
	for _, s := range m.surfaces {
		if !s.InUse() && s.Width() == m.width && s.Height() == m.height {
			s.SetAge(0)
			return s
		}
	}
	return nil
}

// MarkSurfacesForRecycling detaches the plane's ring. Surfaces that may
// still be on screen decay through notInUse; releaseNow returns them to
// the pool immediately.
func (m *Manager) MarkSurfacesForRecycling(plane *display.PlaneState,
	notInUse *[]*display.Surface, releaseNow bool) {
	for _, s := range plane.DetachSurfaces() {
		if releaseNow {
			s.SetAge(-1)
			s.SetInUse(false)
			continue
		}
		// Survive until the display has flipped away from it.
		s.SetAge(2)
		*notInUse = append(*notInUse, s)
	}
}

// ReleaseFreeOffScreenTargets returns quarantined surfaces to the pool.
func (m *Manager) ReleaseFreeOffScreenTargets() {
	for _, s := range m.surfaces {
		if s.InUse() && s.Age() < 0 {
			s.SetInUse(false)
		}
	}
}

// ReleaseAllOffScreenTargets frees every off-screen surface.
func (m *Manager) ReleaseAllOffScreenTargets() {
	for _, s := range m.surfaces {
		s.SetInUse(false)
		if m.allocator != nil && s.Buffer() != nil {
			m.allocator.Release(s.Buffer())
		}
	}
	m.surfaces = nil
}

// HasSurfaces reports whether any off-screen surfaces exist.
func (m *Manager) HasSurfaces() bool { return len(m.surfaces) > 0 }
