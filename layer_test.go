// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"
	"testing"

	"github.com/gogpu/gputypes"
)

func testLayer() *Layer {
	return &Layer{
		Buffer: &BufferRef{Width: 800, Height: 600,
			Format: gputypes.TextureFormatBGRA8Unorm},
		SourceCrop:     RectF{Right: 800, Bottom: 600},
		DisplayFrame:   image.Rect(0, 0, 800, 600),
		Alpha:          0xFF,
		Visible:        true,
		AcquireFenceFD: -1,
	}
}

func TestOverlayLayerFirstFrameDirtyBits(t *testing.T) {
	o := NewOverlayLayer(testLayer(), nil, nil, 0, 0, 600, TransformIdentity, false)
	if !o.IsVisible() {
		t.Fatal("layer invisible")
	}
	if !o.HasLayerContentChanged() {
		t.Error("content unchanged on first frame")
	}
	if !o.HasDimensionsChanged() {
		t.Error("dimensions unchanged on first frame")
	}
	if !o.NeedsFullDraw() {
		t.Error("no full draw on first frame")
	}
	if got := o.SurfaceDamage(); got != o.DisplayFrame() {
		t.Errorf("first-frame damage = %v, want full frame %v", got, o.DisplayFrame())
	}
}

func TestOverlayLayerUnchangedFrame(t *testing.T) {
	l := testLayer()
	prev := NewOverlayLayer(l, nil, nil, 0, 0, 600, TransformIdentity, false)
	cur := NewOverlayLayer(l, nil, prev, 0, 0, 600, TransformIdentity, false)
	if cur.HasLayerContentChanged() {
		t.Error("content changed with identical buffer")
	}
	if cur.HasDimensionsChanged() {
		t.Error("dimensions changed with identical frame")
	}
	if cur.NeedsRevalidation() {
		t.Error("revalidation requested with no change")
	}
}

func TestOverlayLayerDiffBits(t *testing.T) {
	base := testLayer()
	prev := NewOverlayLayer(base, nil, nil, 0, 0, 600, TransformIdentity, false)

	tests := []struct {
		name   string
		mutate func(*Layer)
		check  func(*OverlayLayer) bool
	}{
		{
			"moved frame sets dimensions bit",
			func(l *Layer) { l.DisplayFrame = image.Rect(10, 10, 810, 610) },
			func(o *OverlayLayer) bool { return o.HasDimensionsChanged() },
		},
		{
			"new crop sets source bit",
			func(l *Layer) { l.SourceCrop = RectF{Left: 8, Right: 808, Bottom: 600} },
			func(o *OverlayLayer) bool { return o.HasSourceRectChanged() },
		},
		{
			"new buffer sets content bit",
			func(l *Layer) { l.Buffer = &BufferRef{Width: 800, Height: 600, Format: gputypes.TextureFormatBGRA8Unorm} },
			func(o *OverlayLayer) bool { return o.HasLayerContentChanged() },
		},
		{
			"blending change needs revalidation",
			func(l *Layer) { l.Blending = BlendingPremult },
			func(o *OverlayLayer) bool { return o.NeedsRevalidation() },
		},
		{
			"alpha change needs revalidation",
			func(l *Layer) { l.Alpha = 0x80 },
			func(o *OverlayLayer) bool { return o.NeedsRevalidation() },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testLayer()
			l.Buffer = base.Buffer
			tt.mutate(l)
			o := NewOverlayLayer(l, nil, prev, 0, 0, 600, TransformIdentity, false)
			if !tt.check(o) {
				t.Error("expected dirty bit not set")
			}
		})
	}
}

func TestOverlayLayerDamageFromCaller(t *testing.T) {
	base := testLayer()
	prev := NewOverlayLayer(base, nil, nil, 0, 0, 600, TransformIdentity, false)

	l := testLayer()
	l.SurfaceDamage = image.Rect(5, 5, 50, 50)
	o := NewOverlayLayer(l, nil, prev, 0, 0, 600, TransformIdentity, false)
	if got := o.SurfaceDamage(); got != l.SurfaceDamage {
		t.Errorf("damage = %v, want %v", got, l.SurfaceDamage)
	}
}

func TestOverlayLayerVisibility(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Layer)
	}{
		{"zero alpha", func(l *Layer) { l.Alpha = 0 }},
		{"empty frame", func(l *Layer) { l.DisplayFrame = image.Rectangle{} }},
		{"no pixel source", func(l *Layer) { l.Buffer = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testLayer()
			tt.mutate(l)
			o := NewOverlayLayer(l, nil, nil, 0, 0, 600, TransformIdentity, false)
			if o.IsVisible() {
				t.Error("layer visible, want invisible")
			}
		})
	}
}

func TestOverlayLayerFlippedFrame(t *testing.T) {
	l := testLayer()
	l.DisplayFrame = image.Rect(0, 0, 800, 100)
	o := NewOverlayLayer(l, nil, nil, 0, 0, 600, Transform180, false)
	want := image.Rect(0, 500, 800, 600)
	if got := o.DisplayFrame(); got != want {
		t.Errorf("flipped frame = %v, want %v", got, want)
	}
}

func TestOverlayLayerAcquireFenceMovesOnce(t *testing.T) {
	f := newTestFence(t)
	l := testLayer()
	l.AcquireFenceFD = f.Release()
	o := NewOverlayLayer(l, nil, nil, 0, 0, 600, TransformIdentity, false)

	fd := o.ReleaseAcquireFence()
	if fd <= 0 {
		t.Fatalf("first ReleaseAcquireFence = %d, want > 0", fd)
	}
	closeFD(fd)
	if second := o.ReleaseAcquireFence(); second != -1 {
		t.Errorf("second ReleaseAcquireFence = %d, want -1", second)
	}
}

func TestCombineTransform(t *testing.T) {
	tests := []struct {
		name         string
		layer, plane Transform
		want         Transform
	}{
		{"identity plane", Transform90, TransformIdentity, Transform90},
		{"accumulate", TransformFlipH, Transform180, TransformFlipH | Transform180},
		{"quarter turns cancel", Transform90, Transform270, TransformIdentity},
		{"reverse quarter turns cancel", Transform270, Transform90, TransformIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := combineTransform(tt.layer, tt.plane); got != tt.want {
				t.Errorf("combineTransform(%v, %v) = %v, want %v",
					tt.layer, tt.plane, got, tt.want)
			}
		})
	}
}
