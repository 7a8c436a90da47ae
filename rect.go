// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "image"

// RectF is an axis-aligned rectangle with floating-point coordinates.
// Source crops are fractional to support sub-pixel sampling during
// scaled composition.
type RectF struct {
	Left, Top, Right, Bottom float32
}

// Empty reports whether the rectangle encloses no area.
func (r RectF) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Width returns the rectangle width.
func (r RectF) Width() float32 { return r.Right - r.Left }

// Height returns the rectangle height.
func (r RectF) Height() float32 { return r.Bottom - r.Top }

// RectFFromRect converts an integer rectangle to a RectF.
func RectFFromRect(r image.Rectangle) RectF {
	return RectF{
		Left:   float32(r.Min.X),
		Top:    float32(r.Min.Y),
		Right:  float32(r.Max.X),
		Bottom: float32(r.Max.Y),
	}
}

// unionRect grows dst to also cover src. An empty src leaves dst
// untouched; an empty dst is replaced by src.
func unionRect(src image.Rectangle, dst *image.Rectangle) {
	if src.Empty() {
		return
	}
	if dst.Empty() {
		*dst = src
		return
	}
	*dst = dst.Union(src)
}

// scaleRect applies the clone-mode scaling ratios to a display frame.
// Each edge moves proportionally to its distance from the origin.
func scaleRect(r image.Rectangle, widthRatio, heightRatio float32) image.Rectangle {
	return image.Rect(
		r.Min.X+int(float32(r.Min.X)*widthRatio),
		r.Min.Y+int(float32(r.Min.Y)*heightRatio),
		r.Max.X+int(float32(r.Max.X)*widthRatio),
		r.Max.Y+int(float32(r.Max.Y)*heightRatio),
	)
}
