// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"
	"testing"
)

func TestUnionRect(t *testing.T) {
	tests := []struct {
		name     string
		src, dst image.Rectangle
		want     image.Rectangle
	}{
		{"empty src keeps dst", image.Rectangle{}, image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10)},
		{"empty dst takes src", image.Rect(1, 2, 3, 4), image.Rectangle{}, image.Rect(1, 2, 3, 4)},
		{"overlap unions", image.Rect(0, 0, 10, 10), image.Rect(5, 5, 20, 20), image.Rect(0, 0, 20, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := tt.dst
			unionRect(tt.src, &dst)
			if dst != tt.want {
				t.Errorf("unionRect(%v, %v) = %v, want %v", tt.src, tt.dst, dst, tt.want)
			}
		})
	}
}

func TestScaleRect(t *testing.T) {
	got := scaleRect(image.Rect(100, 100, 200, 200), 1, 0.5)
	want := image.Rect(200, 150, 400, 300)
	if got != want {
		t.Errorf("scaleRect = %v, want %v", got, want)
	}
}

func TestRectFEmpty(t *testing.T) {
	if !(RectF{}).Empty() {
		t.Error("zero RectF not empty")
	}
	if (RectF{Right: 1, Bottom: 1}).Empty() {
		t.Error("unit RectF empty")
	}
	r := RectF{Left: 2, Top: 3, Right: 6, Bottom: 13}
	if r.Width() != 4 || r.Height() != 10 {
		t.Errorf("Width/Height = %v/%v, want 4/10", r.Width(), r.Height())
	}
}
