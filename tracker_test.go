// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "testing"

func TestFrameScopeRaisesAndLowersPrepare(t *testing.T) {
	var tracker FrameStateTracker
	scope := beginFrameScope(&tracker)
	if tracker.state&trackerPrepareComposition == 0 {
		t.Error("prepare-composition not raised by scope")
	}
	scope.Done(false, 2)
	if tracker.state&trackerPrepareComposition != 0 {
		t.Error("prepare-composition not lowered by Done")
	}
	if tracker.totalPlanes != 2 {
		t.Errorf("totalPlanes = %d, want 2", tracker.totalPlanes)
	}
}

func TestFrameScopeDoneIsIdempotent(t *testing.T) {
	var tracker FrameStateTracker
	scope := beginFrameScope(&tracker)
	scope.Done(false, 1)
	tracker.totalPlanes = 5
	scope.Done(false, 9)
	if tracker.totalPlanes != 5 {
		t.Errorf("second Done overwrote tracker state: totalPlanes = %d", tracker.totalPlanes)
	}
}

func TestFrameScopeConsumesIdleRequest(t *testing.T) {
	var tracker FrameStateTracker
	tracker.state = trackerPrepareIdleComposition

	scope := beginFrameScope(&tracker)
	if !scope.RenderIdleMode() {
		t.Fatal("idle request not visible to scope")
	}
	scope.Done(true, 1)
	if tracker.state&trackerPrepareIdleComposition != 0 {
		t.Error("idle request survives the frame that served it")
	}
}

func TestFrameScopeNonIdleFrameResetsCounter(t *testing.T) {
	var tracker FrameStateTracker
	tracker.idleFrames = idleFrameLimit

	scope := beginFrameScope(&tracker)
	scope.Done(false, 1)
	if tracker.idleFrames != 0 {
		t.Errorf("idleFrames = %d after non-idle frame, want 0", tracker.idleFrames)
	}
}

func TestFrameScopeResetTrackerState(t *testing.T) {
	var tracker FrameStateTracker
	tracker.state = trackerRevalidateLayers | trackerTrackingFrames
	tracker.idleFrames = 4
	tracker.revalidateCounter = 2

	scope := beginFrameScope(&tracker)
	if !scope.RevalidateLayers() {
		t.Fatal("revalidate request not visible to scope")
	}
	scope.ResetTrackerState()
	if tracker.idleFrames != 0 || tracker.revalidateCounter != 0 {
		t.Error("counters survive ResetTrackerState")
	}
	if tracker.state&(trackerRevalidateLayers|trackerTrackingFrames) != 0 {
		t.Error("revalidation state survives ResetTrackerState")
	}
	scope.Done(false, 1)
}

func TestScalingTrackerActive(t *testing.T) {
	var st ScalingTracker
	if st.Active() {
		t.Error("zero tracker active")
	}
	st.state = scalingNeeded
	if !st.Active() {
		t.Error("tracker inactive after scalingNeeded")
	}
}
