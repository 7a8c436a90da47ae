// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
)

func composedState(t *testing.T, layers ...*OverlayLayer) *PlaneState {
	t.Helper()
	ps := NewPlaneState(&fakePlane{id: 1})
	for _, l := range layers {
		ps.AddLayer(l)
	}
	return ps
}

func snapshotAt(t *testing.T, z int, frame image.Rectangle) *OverlayLayer {
	t.Helper()
	l := testLayer()
	l.DisplayFrame = frame
	l.SourceCrop = RectFFromRect(frame)
	return NewOverlayLayer(l, nil, nil, z, z, 1080, TransformIdentity, false)
}

func TestPlaneStateSingleLayerScansOut(t *testing.T) {
	layer := snapshotAt(t, 0, image.Rect(0, 0, 100, 100))
	ps := composedState(t, layer)
	if ps.NeedsOffScreenComposition() {
		t.Error("single layer forced composition")
	}
	ps.SetOverlayLayer(layer)
	if !ps.Scanout() {
		t.Error("plane not scanning out")
	}
}

func TestPlaneStateMultipleLayersCompose(t *testing.T) {
	ps := composedState(t,
		snapshotAt(t, 0, image.Rect(0, 0, 100, 100)),
		snapshotAt(t, 1, image.Rect(50, 50, 200, 200)))
	if !ps.NeedsOffScreenComposition() {
		t.Error("two layers scan out, want composed")
	}
	want := image.Rect(0, 0, 200, 200)
	if got := ps.DisplayFrame(); got != want {
		t.Errorf("display frame = %v, want %v", got, want)
	}
}

func TestPlaneStateResetLayers(t *testing.T) {
	l0 := snapshotAt(t, 0, image.Rect(0, 0, 100, 100))
	l1 := snapshotAt(t, 1, image.Rect(100, 0, 200, 100))
	l2 := snapshotAt(t, 2, image.Rect(200, 0, 300, 100))
	ps := composedState(t, l0, l1, l2)

	ps.ResetLayers([]*OverlayLayer{l0, l1, l2}, 1)
	if got := len(ps.SourceLayers()); got != 1 {
		t.Fatalf("source layers = %d, want 1", got)
	}
	if got := ps.DisplayFrame(); got != image.Rect(0, 0, 100, 100) {
		t.Errorf("display frame = %v, want trimmed to first layer", got)
	}
}

func TestPlaneStateCursorNeverSquashes(t *testing.T) {
	cursor := snapshotAt(t, 0, image.Rect(0, 0, 64, 64))
	cursor.cursor = true
	ps := composedState(t, cursor)
	if !ps.IsCursorPlane() {
		t.Fatal("cursor plane not tagged")
	}
	if ps.CanSquash() {
		t.Error("cursor plane can squash, want never")
	}
}

func TestPlaneStateEffectsBlockSquash(t *testing.T) {
	ps := composedState(t, snapshotAt(t, 0, image.Rect(0, 0, 100, 100)))
	if !ps.CanSquash() {
		t.Fatal("plain plane cannot squash")
	}
	ps.SetApplyEffects(true)
	if ps.CanSquash() {
		t.Error("effect plane can squash, want blocked")
	}
}

func TestPlaneStateSwapSurfacePicksOldest(t *testing.T) {
	ps := composedState(t, snapshotAt(t, 0, image.Rect(0, 0, 100, 100)))
	var ring []*Surface
	for i := 0; i < 3; i++ {
		s := NewSurface(&BufferRef{Width: 100, Height: 100,
			Format: gputypes.TextureFormatRGBA8Unorm})
		ring = append(ring, s)
		ps.AttachSurface(s)
	}
	// Ages as after a commit: front fresh, middle oldest.
	surfaces := ps.Surfaces()
	surfaces[0].SetAge(2)
	surfaces[1].SetAge(0)
	surfaces[2].SetAge(1)
	oldest := surfaces[1]

	got := ps.SwapSurface()
	if got != oldest {
		t.Errorf("SwapSurface() picked age %d, want the age-0 surface", got.Age())
	}
	if ps.OffScreenTarget() != oldest {
		t.Error("swapped surface is not the current target")
	}
	if ps.SurfaceRecycled() {
		t.Error("plane still recycled after swap")
	}
	if got := len(ps.Surfaces()); got != 3 {
		t.Errorf("ring size = %d, want 3", got)
	}
}

func TestPlaneStateRefreshSurfaces(t *testing.T) {
	ps := composedState(t, snapshotAt(t, 0, image.Rect(0, 0, 100, 100)))
	s := NewSurface(&BufferRef{Width: 100, Height: 100,
		Format: gputypes.TextureFormatRGBA8Unorm})
	ps.AttachSurface(s)
	s.ResetDamage()
	ps.SetSurfaceRecycled(true)

	ps.RefreshSurfaces(ClearFull, true)
	if s.ClearState() != ClearFull {
		t.Error("surface not marked for full clear")
	}
	if ps.SurfaceRecycled() {
		t.Error("plane still recycled after refresh")
	}
}

func TestPlaneStateRevalidationInference(t *testing.T) {
	// A composed plane down to one layer is a scan-out candidate.
	ps := composedState(t,
		snapshotAt(t, 0, image.Rect(0, 0, 100, 100)),
		snapshotAt(t, 1, image.Rect(0, 0, 50, 50)))
	l0 := snapshotAt(t, 0, image.Rect(0, 0, 100, 100))
	ps.ResetLayers([]*OverlayLayer{l0}, 1)
	ps.ValidateReValidation()
	if ps.RevalidationType()&RevalidateScanout == 0 {
		t.Error("single-layer composed plane not flagged for scan-out re-check")
	}
	ps.RevalidationDone(RevalidateScanout)
	if ps.RevalidationType()&RevalidateScanout != 0 {
		t.Error("revalidation flag survives RevalidationDone")
	}
}

func TestPlaneStateDownscaleRevalidation(t *testing.T) {
	layer := snapshotAt(t, 0, image.Rect(0, 0, 100, 100))
	ps := composedState(t, layer)
	ps.SetOverlayLayer(layer)
	ps.UpdateSourceCrop(RectF{Right: 1000, Bottom: 1000}, false)
	ps.ValidateReValidation()
	if ps.RevalidationType()&RevalidateDownscaling == 0 {
		t.Error("10x shrink not flagged for downscale re-check")
	}
}

func TestPlaneStateCloneSharesRing(t *testing.T) {
	ps := composedState(t,
		snapshotAt(t, 0, image.Rect(0, 0, 100, 100)),
		snapshotAt(t, 1, image.Rect(0, 0, 50, 50)))
	s := NewSurface(&BufferRef{Width: 100, Height: 100,
		Format: gputypes.TextureFormatRGBA8Unorm})
	ps.AttachSurface(s)

	c := ps.clone()
	if !c.SurfaceRecycled() {
		t.Error("clone not marked recycled")
	}
	if len(c.Surfaces()) != 1 || c.Surfaces()[0] != s {
		t.Error("clone does not share the surface ring")
	}
	c.ResetLayers(nil, 0)
	if len(ps.SourceLayers()) != 2 {
		t.Error("mutating the clone changed the original's layers")
	}
}
