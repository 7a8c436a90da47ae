// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"

	"github.com/gogpu/gputypes"
)

// ClearType selects how much of an off-screen surface must be redrawn
// before it can be presented again.
type ClearType uint8

// Clear types.
const (
	// ClearNone redraws only the accumulated damage.
	ClearNone ClearType = iota

	// ClearFull discards the surface contents and redraws everything.
	ClearFull
)

// Surface is one off-screen render target in a plane's ring. Surfaces
// are triple-buffered and recycled by age: the freshly drawn surface is
// age 2, the one on screen is 1, the two-frames-old one is 0. Age -1
// quarantines a surface for release on the next frame.
//
// Surfaces are owned by the plane manager and loaned to plane states.
type Surface struct {
	buffer *BufferRef

	width  uint32
	height uint32
	format gputypes.TextureFormat

	age   int
	inUse bool

	clear  ClearType
	damage image.Rectangle

	acquireFence *Fence
}

// NewSurface creates an off-screen surface over an allocated buffer.
func NewSurface(buf *BufferRef) *Surface {
	s := &Surface{buffer: buf}
	if buf != nil {
		s.width = buf.Width
		s.height = buf.Height
		s.format = buf.Format
	}
	return s
}

// Buffer returns the backing buffer.
func (s *Surface) Buffer() *BufferRef { return s.buffer }

// Width returns the surface width in pixels.
func (s *Surface) Width() uint32 { return s.width }

// Height returns the surface height in pixels.
func (s *Surface) Height() uint32 { return s.height }

// Format returns the surface pixel format.
func (s *Surface) Format() gputypes.TextureFormat { return s.format }

// Age returns the surface age.
func (s *Surface) Age() int { return s.age }

// SetAge updates the surface age.
func (s *Surface) SetAge(age int) { s.age = age }

// InUse reports whether the surface is part of a live plane ring.
func (s *Surface) InUse() bool { return s.inUse }

// SetInUse marks the surface as loaned to (or returned from) a plane.
func (s *Surface) SetInUse(inUse bool) {
	s.inUse = inUse
	if !inUse {
		s.acquireFence.Close()
		s.acquireFence = nil
	}
}

// ClearState returns the pending clear type.
func (s *Surface) ClearState() ClearType { return s.clear }

// RequestClear marks the surface for a full redraw on its next draw.
func (s *Surface) RequestClear(t ClearType) {
	s.clear = t
	if t == ClearFull {
		s.damage = image.Rect(0, 0, int(s.width), int(s.height))
	}
}

// UpdateDamage accumulates a damaged region to redraw.
func (s *Surface) UpdateDamage(rect image.Rectangle) {
	unionRect(rect, &s.damage)
}

// Damage returns the accumulated damage.
func (s *Surface) Damage() image.Rectangle { return s.damage }

// ResetDamage clears the damage and pending clear after a draw.
func (s *Surface) ResetDamage() {
	s.damage = image.Rectangle{}
	s.clear = ClearNone
}

// SetAcquireFence stores the fence that signals when rendering into the
// surface completes. The surface owns the fence; a previously stored
// fence is closed.
func (s *Surface) SetAcquireFence(f *Fence) {
	s.acquireFence.Close()
	s.acquireFence = f
}

// AcquireFence exposes the owned fence without transferring ownership.
func (s *Surface) AcquireFence() *Fence { return s.acquireFence }

// ReleaseAcquireFence moves the fence descriptor out of the surface.
// Returns -1 when there is none.
func (s *Surface) ReleaseAcquireFence() int {
	fd := s.acquireFence.Release()
	s.acquireFence = nil
	return fd
}
