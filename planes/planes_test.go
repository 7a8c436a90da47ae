// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package planes

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/display"
)

type stubPlane struct {
	id        uint32
	planeType Type
	inUse     bool
	formats   []gputypes.TextureFormat
}

func (p *stubPlane) ID() uint32          { return p.id }
func (p *stubPlane) InUse() bool         { return p.inUse }
func (p *stubPlane) SetInUse(inUse bool) { p.inUse = inUse }
func (p *stubPlane) Type() Type          { return p.planeType }

func (p *stubPlane) SupportsFormat(format gputypes.TextureFormat) bool {
	for _, f := range p.formats {
		if f == format {
			return true
		}
	}
	return false
}

func (p *stubPlane) SupportsTransform(t display.Transform) bool {
	return t == display.TransformIdentity
}

type stubProvider struct {
	planes []Plane
}

func (s *stubProvider) Planes() ([]Plane, error) { return s.planes, nil }

type stubAllocator struct {
	allocs   int
	releases int
}

func (a *stubAllocator) Allocate(width, height uint32, format gputypes.TextureFormat) (*display.BufferRef, error) {
	a.allocs++
	return &display.BufferRef{Width: width, Height: height, Format: format}, nil
}

func (a *stubAllocator) Release(*display.BufferRef) { a.releases++ }

func newTestManager(t *testing.T, planeCount int) (*Manager, *stubAllocator) {
	t.Helper()
	fmts := []gputypes.TextureFormat{
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatRGBA8Unorm,
	}
	var ps []Plane
	for i := 0; i < planeCount; i++ {
		typ := TypeOverlay
		if i == 0 {
			typ = TypePrimary
		} else if i == planeCount-1 && planeCount > 2 {
			typ = TypeCursor
		}
		ps = append(ps, &stubPlane{id: uint32(i + 1), planeType: typ, formats: fmts})
	}
	alloc := &stubAllocator{}
	m := NewManager(-1, &stubProvider{planes: ps}, alloc)
	if err := m.Initialize(1920, 1080); err != nil {
		t.Fatalf("Initialize() = %v, want nil", err)
	}
	return m, alloc
}

func snapshot(t *testing.T, z int, frame image.Rectangle, cursor bool) *display.OverlayLayer {
	t.Helper()
	l := &display.Layer{
		Buffer: &display.BufferRef{
			Width:  uint32(frame.Dx()),
			Height: uint32(frame.Dy()),
			Format: gputypes.TextureFormatBGRA8Unorm,
		},
		SourceCrop:     display.RectFFromRect(frame),
		DisplayFrame:   frame,
		Alpha:          0xFF,
		Visible:        true,
		Cursor:         cursor,
		AcquireFenceFD: -1,
	}
	return display.NewOverlayLayer(l, nil, nil, z, z, 1080,
		display.TransformIdentity, false)
}

func TestManagerInitializeOrdersPlanes(t *testing.T) {
	m, _ := newTestManager(t, 3)
	if m.planes[0].Type() != TypePrimary {
		t.Error("first plane not primary")
	}
	if m.planes[2].Type() != TypeCursor {
		t.Error("last plane not cursor")
	}
}

func TestManagerInitializeNoPlanes(t *testing.T) {
	m := NewManager(-1, &stubProvider{}, &stubAllocator{})
	if err := m.Initialize(1920, 1080); err != ErrNoPlanes {
		t.Errorf("Initialize() = %v, want ErrNoPlanes", err)
	}
}

func TestValidateLayersSingleScanout(t *testing.T) {
	m, _ := newTestManager(t, 3)
	layers := []*display.OverlayLayer{
		snapshot(t, 0, image.Rect(0, 0, 1920, 1080), false),
	}
	var composition []*display.PlaneState
	var notInUse []*display.Surface
	res := m.ValidateLayers(layers, 0, false, &composition, nil, &notInUse)
	if res.RenderLayers {
		t.Error("RenderLayers = true, want false for one scan-out layer")
	}
	if len(composition) != 1 {
		t.Fatalf("composition len = %d, want 1", len(composition))
	}
	if !composition[0].Scanout() {
		t.Error("plane composed, want scanout")
	}
	if !m.planes[0].InUse() {
		t.Error("primary not claimed")
	}
}

func TestValidateLayersOverflowComposes(t *testing.T) {
	m, _ := newTestManager(t, 2)
	var layers []*display.OverlayLayer
	for i := 0; i < 4; i++ {
		layers = append(layers, snapshot(t, i, image.Rect(i*10, 0, i*10+100, 100), false))
	}
	var composition []*display.PlaneState
	var notInUse []*display.Surface
	res := m.ValidateLayers(layers, 0, false, &composition, nil, &notInUse)
	if !res.RenderLayers {
		t.Error("RenderLayers = false, want true on overflow")
	}
	if len(composition) != 2 {
		t.Fatalf("composition len = %d, want 2", len(composition))
	}
	total := 0
	for _, ps := range composition {
		total += len(ps.SourceLayers())
	}
	if total != 4 {
		t.Errorf("assigned layers = %d, want 4", total)
	}
	if !composition[0].NeedsOffScreenComposition() {
		t.Error("bottom plane scans out, want composed overflow")
	}
}

func TestValidateLayersForceGPU(t *testing.T) {
	m, _ := newTestManager(t, 3)
	layers := []*display.OverlayLayer{
		snapshot(t, 0, image.Rect(0, 0, 100, 100), false),
		snapshot(t, 1, image.Rect(0, 0, 200, 200), false),
	}
	var composition []*display.PlaneState
	var notInUse []*display.Surface
	res := m.ValidateLayers(layers, 0, true, &composition, nil, &notInUse)
	if !res.RenderLayers {
		t.Error("RenderLayers = false, want true under forceGPU")
	}
	if len(composition) != 1 {
		t.Fatalf("composition len = %d, want 1", len(composition))
	}
	if got := len(composition[0].SourceLayers()); got != 2 {
		t.Errorf("source layers = %d, want 2", got)
	}
	if got := len(composition[0].Surfaces()); got != 3 {
		t.Errorf("ring size = %d, want 3", got)
	}
}

func TestValidateLayersCursorGetsCursorPlane(t *testing.T) {
	m, _ := newTestManager(t, 3)
	layers := []*display.OverlayLayer{
		snapshot(t, 0, image.Rect(0, 0, 1920, 1080), false),
		snapshot(t, 1, image.Rect(0, 0, 64, 64), true),
	}
	var composition []*display.PlaneState
	var notInUse []*display.Surface
	m.ValidateLayers(layers, 0, false, &composition, nil, &notInUse)
	if len(composition) != 2 {
		t.Fatalf("composition len = %d, want 2", len(composition))
	}
	cursorState := composition[1]
	if !cursorState.IsCursorPlane() {
		t.Error("cursor layer's plane not tagged cursor")
	}
	hw := cursorState.Plane().(Plane)
	if hw.Type() != TypeCursor {
		t.Errorf("cursor layer on %v plane, want cursor plane", hw.Type())
	}
}

func TestValidateLayersIncrementalAppends(t *testing.T) {
	m, _ := newTestManager(t, 3)
	base := []*display.OverlayLayer{
		snapshot(t, 0, image.Rect(0, 0, 1920, 1080), false),
	}
	var composition []*display.PlaneState
	var notInUse []*display.Surface
	m.ValidateLayers(base, 0, false, &composition, nil, &notInUse)

	layers := append(base, snapshot(t, 1, image.Rect(0, 0, 64, 64), true))
	m.ValidateLayers(layers, 1, false, &composition, composition[:1], &notInUse)
	if len(composition) != 2 {
		t.Fatalf("composition len = %d, want 2 after append", len(composition))
	}
	if !composition[0].Scanout() {
		t.Error("cached prefix disturbed by incremental validation")
	}
}

func TestReValidatePlanesConvertsToScanout(t *testing.T) {
	m, _ := newTestManager(t, 3)
	layer := snapshot(t, 0, image.Rect(0, 0, 1920, 1080), false)
	ps := display.NewPlaneState(m.planes[0])
	ps.AddLayer(layer)
	ps.ForceOffScreenComposition()
	m.SetOffScreenPlaneTarget(ps)
	ps.ValidateReValidation()
	if ps.RevalidationType()&display.RevalidateScanout == 0 {
		t.Fatal("scan-out re-check not flagged")
	}

	var notInUse []*display.Surface
	render, full := m.ReValidatePlanes([]*display.PlaneState{ps},
		[]*display.OverlayLayer{layer}, &notInUse, true, false)
	if full {
		t.Error("fullValidation = true, want false")
	}
	if render {
		t.Error("render = true after conversion to scanout")
	}
	if !ps.Scanout() {
		t.Error("plane still composed, want scanout")
	}
	if len(notInUse) != 3 {
		t.Errorf("recycled surfaces = %d, want 3", len(notInUse))
	}
}

func TestSurfacePoolReuse(t *testing.T) {
	m, alloc := newTestManager(t, 2)
	layer := snapshot(t, 0, image.Rect(0, 0, 100, 100), false)
	ps := display.NewPlaneState(m.planes[0])
	ps.AddLayer(layer)
	ps.ForceOffScreenComposition()
	m.SetOffScreenPlaneTarget(ps)
	if alloc.allocs != 3 {
		t.Fatalf("allocs = %d, want 3", alloc.allocs)
	}

	// Recycle immediately and reattach: the pool must serve all three.
	var notInUse []*display.Surface
	m.MarkSurfacesForRecycling(ps, &notInUse, true)
	ps2 := display.NewPlaneState(m.planes[1])
	ps2.AddLayer(layer)
	ps2.ForceOffScreenComposition()
	m.SetOffScreenPlaneTarget(ps2)
	if alloc.allocs != 3 {
		t.Errorf("allocs = %d after reuse, want 3 (pool hit)", alloc.allocs)
	}
}

func TestReleaseAllOffScreenTargets(t *testing.T) {
	m, alloc := newTestManager(t, 2)
	layer := snapshot(t, 0, image.Rect(0, 0, 100, 100), false)
	ps := display.NewPlaneState(m.planes[0])
	ps.AddLayer(layer)
	ps.ForceOffScreenComposition()
	m.SetOffScreenPlaneTarget(ps)
	if !m.HasSurfaces() {
		t.Fatal("no surfaces after target allocation")
	}

	m.ReleaseAllOffScreenTargets()
	if m.HasSurfaces() {
		t.Error("surfaces survive ReleaseAllOffScreenTargets")
	}
	if alloc.releases != 3 {
		t.Errorf("releases = %d, want 3", alloc.releases)
	}
}

func TestCheckPlaneFormat(t *testing.T) {
	m, _ := newTestManager(t, 2)
	if !m.CheckPlaneFormat(gputypes.TextureFormatBGRA8Unorm) {
		t.Error("BGRA8 unsupported, want supported")
	}
	if m.CheckPlaneFormat(gputypes.TextureFormatR8Unorm) {
		t.Error("R8 supported, want unsupported")
	}
}
