// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "sync"

// idleFrameLimit is the number of consecutive idle vblank ticks before
// the queue asks for a single-plane refresh composition.
const idleFrameLimit = 9

// Frame state tracker bits. Guarded by FrameStateTracker.mu.
const (
	// trackerPrepareComposition is raised while a QueueUpdate is in
	// flight; idle handling stands down for the duration.
	trackerPrepareComposition uint32 = 1 << iota

	// trackerPrepareIdleComposition asks the next frame to render in
	// idle mode (everything composed to one plane).
	trackerPrepareIdleComposition

	// trackerRenderIdleDisplay notes that the cloned display rendered
	// an idle frame.
	trackerRenderIdleDisplay

	// trackerRevalidateLayers forces full validation on the next frame.
	trackerRevalidateLayers

	// trackerIgnoreUpdates drops incoming frames entirely.
	trackerIgnoreUpdates

	// trackerTrackingFrames is set while recent constraint changes are
	// still settling; idle detection waits them out.
	trackerTrackingFrames
)

// FrameStateTracker records cross-frame hints shared between the frame
// producer and the vblank thread: idle counting, revalidation requests,
// and the shape of the last composition.
type FrameStateTracker struct {
	mu sync.Mutex

	state             uint32
	idleFrames        uint32
	revalidateCounter uint32
	totalPlanes       int
	hasCursorLayer    bool
}

// ScopedIdleStateTracker scopes one QueueUpdate: construction raises the
// composition-in-progress flag, Done lowers it and folds the frame's
// outcome back into the tracker. Done must run on every exit path.
type ScopedIdleStateTracker struct {
	tracker *FrameStateTracker

	ignoreUpdates bool
	renderIdle    bool
	revalidate    bool
	hasCursor     bool
	doneCalled    bool
}

// beginFrameScope opens the per-frame scope.
func beginFrameScope(t *FrameStateTracker) *ScopedIdleStateTracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state |= trackerPrepareComposition
	return &ScopedIdleStateTracker{
		tracker:       t,
		ignoreUpdates: t.state&trackerIgnoreUpdates != 0,
		renderIdle:    t.state&trackerPrepareIdleComposition != 0,
		revalidate:    t.state&trackerRevalidateLayers != 0,
	}
}

// IgnoreUpdate reports whether the queue is dropping frames.
func (s *ScopedIdleStateTracker) IgnoreUpdate() bool { return s.ignoreUpdates }

// RenderIdleMode reports whether this frame should compose for idle.
func (s *ScopedIdleStateTracker) RenderIdleMode() bool { return s.renderIdle }

// RevalidateLayers reports whether a full validation was requested.
func (s *ScopedIdleStateTracker) RevalidateLayers() bool { return s.revalidate }

// FrameHasCursor notes that the current frame contains a cursor layer.
func (s *ScopedIdleStateTracker) FrameHasCursor() {
	s.hasCursor = true
}

// ResetTrackerState clears idle counting and pending revalidation after
// a full validation pass.
func (s *ScopedIdleStateTracker) ResetTrackerState() {
	t := s.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idleFrames = 0
	t.revalidateCounter = 0
	t.state &^= trackerPrepareIdleComposition | trackerRevalidateLayers |
		trackerTrackingFrames
	s.renderIdle = false
	s.revalidate = false
}

// Done closes the scope. idleFrame reports whether the frame rendered in
// idle mode; totalPlanes is the size of the committed composition.
func (s *ScopedIdleStateTracker) Done(idleFrame bool, totalPlanes int) {
	if s.doneCalled {
		return
	}
	s.doneCalled = true

	t := s.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state &^= trackerPrepareComposition
	if s.renderIdle {
		t.state &^= trackerPrepareIdleComposition
	}
	if s.revalidate {
		t.state &^= trackerRevalidateLayers
	}
	if !idleFrame {
		t.idleFrames = 0
	}
	if t.revalidateCounter > 0 {
		t.revalidateCounter--
		if t.revalidateCounter == 0 {
			t.state &^= trackerTrackingFrames
		}
	}
	t.totalPlanes = totalPlanes
	t.hasCursorLayer = s.hasCursor
}

// scalingState reports whether clone-mode scaling is active.
type scalingState uint8

const (
	scalingNone scalingState = iota
	scalingNeeded
)

// ScalingTracker carries the ratio between the primary display size and
// this (cloned) display's size.
type ScalingTracker struct {
	state       scalingState
	widthRatio  float32
	heightRatio float32
}

// Active reports whether display frames must be scaled.
func (t *ScalingTracker) Active() bool { return t.state == scalingNeeded }
