// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// Queue errors.
var (
	// ErrNotInitialized is returned when Initialize was not run or failed.
	ErrNotInitialized = errors.New("display: queue not initialized")

	// ErrNoCompositor is returned when the queue was built without a
	// composition backend.
	ErrNoCompositor = errors.New("display: no compositor configured")
)

// Options configures a Queue.
type Options struct {
	// DisableOverlay forces GPU composition of everything into the
	// primary plane.
	DisableOverlay bool

	// DoubleBuffered waits for the commit fence at the end of the same
	// frame instead of at the start of the next one.
	DoubleBuffered bool

	// Compositor is the GPU composition backend. Required: Initialize
	// returns ErrNoCompositor without one.
	Compositor Compositor

	// VblankHandler delivers vertical-blank events for the pipe.
	// Required.
	VblankHandler VblankHandler

	// ResourceManager imports client buffers. Required.
	ResourceManager ResourceManager
}

// Queue is the per-display composition engine. It owns the previous
// frame's plane state and runs the per-frame validation and caching
// algorithm: diff incoming layers against the frame in flight, reuse
// cached plane assignments where nothing structural changed, fall back
// to full plane validation otherwise, compose what the planes cannot
// scan out, and commit the result atomically with correct fences.
//
// One logical frame producer calls QueueUpdate; a vblank goroutine may
// call HandleIdleCase; the remaining setters may be called from any
// goroutine. Lock order: idle tracker -> power mode. The video lock is
// a leaf.
type Queue struct {
	gpuFD int

	state atomic.Uint32

	display         PhysicalDisplay
	resourceManager ResourceManager
	planeManager    PlaneManager
	vblankHandler   VblankHandler
	compositor      Compositor

	previousPlaneState []*PlaneState
	inFlightLayers     []*OverlayLayer
	surfacesNotInUse   []*Surface
	markNotInUse       []*Surface
	kmsFence           *Fence

	gamma                Gamma
	contrast             uint32
	brightness           uint32
	colorTransformMatrix [16]float32
	colorTransformHint   ColorTransformHint

	scalingTracker ScalingTracker
	idleTracker    FrameStateTracker
	planeTransform Transform

	lastCommitFailed      bool
	handleDisplayLazyInit bool
	doubleBuffered        bool

	powerModeMu sync.Mutex

	videoMu              sync.Mutex
	requestedVideoEffect bool
	appliedVideoEffect   bool

	// Guarded by idleTracker.mu.
	refreshCallback  RefreshCallback
	refreshDisplayID uint32
}

// NewQueue creates the composition engine for one display pipe.
// gpuFD is the DRM device descriptor used for framebuffer creation.
func NewQueue(gpuFD int, display PhysicalDisplay, opts *Options) *Queue {
	q := &Queue{
		gpuFD:   gpuFD,
		display: display,
	}
	if opts != nil {
		q.compositor = opts.Compositor
		q.vblankHandler = opts.VblankHandler
		q.resourceManager = opts.ResourceManager
		q.doubleBuffered = opts.DoubleBuffered
		if opts.DisableOverlay {
			q.state.Or(stateDisableOverlayUsage)
		}
	}

	// 0x80 per channel is the neutral point for brightness and
	// contrast; gamma 1 is linear.
	q.brightness = 0x808080
	q.contrast = 0x808080
	q.gamma = Gamma{Red: 1, Green: 1, Blue: 1}
	q.colorTransformHint = ColorTransformIdentity
	q.state.Or(stateNeedsColorCorrection)
	return q
}

// Initialize binds the queue to a pipe and discovers its planes.
func (q *Queue) Initialize(pipe, width, height uint32, planeManager PlaneManager) error {
	if q.resourceManager == nil {
		return ErrNotInitialized
	}
	if q.compositor == nil {
		return ErrNoCompositor
	}
	if planeManager == nil {
		return ErrNotInitialized
	}
	if err := planeManager.Initialize(width, height); err != nil {
		Logger().Error("display: plane manager init failed", "err", err)
		return err
	}
	q.planeManager = planeManager
	q.planeManager.SetDisplayTransform(q.planeTransform)
	q.handleDisplayLazyInit = true
	q.resetQueue()

	if q.vblankHandler != nil {
		q.vblankHandler.SetPowerMode(PowerOff)
		if err := q.vblankHandler.Init(q.gpuFD, pipe); err != nil {
			return err
		}
	}
	Logger().Info("display: queue initialized", "pipe", pipe,
		"width", width, "height", height)
	return nil
}

// SetPowerMode transitions the pipe power state. Unknown modes are
// ignored. Calling with the current mode is harmless.
func (q *Queue) SetPowerMode(mode PowerMode) bool {
	switch mode {
	case PowerOff, PowerDoze:
		q.HandleExit()
	case PowerDozeSuspend:
		if q.vblankHandler != nil {
			q.vblankHandler.SetPowerMode(PowerDozeSuspend)
		}
		q.state.Or(statePoweredOn)
	case PowerOn:
		q.state.Or(statePoweredOn | stateConfigurationChanged | stateNeedsColorCorrection)
		if q.vblankHandler != nil {
			q.vblankHandler.SetPowerMode(PowerOn)
		}
		q.powerModeMu.Lock()
		q.state.And(^stateIgnoreIdleRefresh)
		if q.compositor != nil {
			gpuFD := q.gpuFD
			if q.planeManager != nil {
				gpuFD = q.planeManager.GPUFD()
			}
			if err := q.compositor.Init(q.resourceManager, gpuFD); err != nil {
				Logger().Error("display: compositor init failed", "err", err)
			}
		}
		q.powerModeMu.Unlock()
	}
	return true
}

// RotateDisplay accumulates a display rotation into the plane transform.
func (q *Queue) RotateDisplay(rotation Rotation) {
	switch rotation {
	case Rotate90:
		q.planeTransform |= Transform90
	case Rotate180:
		q.planeTransform |= Transform180
	case Rotate270:
		q.planeTransform |= Transform270
	}
	if q.planeManager != nil {
		q.planeManager.SetDisplayTransform(q.planeTransform)
	}
}

// QueueUpdate realizes one frame. sourceLayers is the caller's z-ordered
// layer list; idleUpdate marks a refresh triggered by idle detection;
// handleConstraints enables extra per-layer constraint filtering.
//
// Returns the retire fence descriptor (ownership transfers to the
// caller, -1 when none) and whether the frame was realized.
func (q *Queue) QueueUpdate(sourceLayers []*Layer, idleUpdate, handleConstraints bool) (int, bool) {
	if q.planeManager == nil || q.compositor == nil {
		return -1, false
	}

	scope := beginFrameScope(&q.idleTracker)
	idleFrame := scope.RenderIdleMode() || idleUpdate
	defer func() {
		scope.Done(idleFrame, len(q.previousPlaneState))
	}()

	if scope.IgnoreUpdate() {
		return -1, true
	}

	previousSize := len(q.inFlightLayers)
	var layers []*OverlayLayer
	removeIndex := -1
	addIndex := -1
	// If the last commit failed our cached state may be wrong on both
	// sides; rebuild from scratch.
	validateLayers := q.lastCommitFailed || len(q.previousPlaneState) == 0
	retireFence := -1
	zOrder := 0
	hasVideoLayer := false
	reValidateCommit := false
	rawPixelUpdate := false

	for layerIndex, layer := range sourceLayers {
		layer.SetReleaseFence(-1)
		if !layer.Visible {
			continue
		}

		var previous *OverlayLayer
		if previousSize > zOrder {
			previous = q.inFlightLayers[zOrder]
		} else if addIndex == -1 {
			addIndex = zOrder
		}

		var overlay *OverlayLayer
		if q.scalingTracker.Active() {
			frame := scaleRect(layer.DisplayFrame,
				q.scalingTracker.widthRatio, q.scalingTracker.heightRatio)
			overlay = NewScaledOverlayLayer(layer, q.resourceManager, previous,
				zOrder, layerIndex, frame, q.planeManager.Height(),
				q.planeTransform, handleConstraints)
		} else {
			overlay = NewOverlayLayer(layer, q.resourceManager, previous,
				zOrder, layerIndex, q.planeManager.Height(),
				q.planeTransform, handleConstraints)
		}

		if !overlay.IsVisible() {
			overlay.acquireFence.Close()
			continue
		}
		layers = append(layers, overlay)

		if overlay.RawPixelDataChanged() {
			rawPixelUpdate = true
		}
		if overlay.IsVideoLayer() {
			hasVideoLayer = true
		}
		if overlay.NeedsRevalidation() {
			reValidateCommit = true
		} else if overlay.HasLayerContentChanged() {
			idleFrame = false
		}
		if overlay.IsCursorLayer() {
			scope.FrameHasCursor()
		}

		zOrder++
		if addIndex == 0 || validateLayers ||
			(addIndex != -1 && removeIndex != -1) {
			continue
		}

		// A cursor or video layer appearing, disappearing, or moving in
		// z is treated as a remove plus an add at that position so only
		// the affected suffix is re-validated.
		if previous != nil && previous.IsCursorLayer() != overlay.IsCursorLayer() {
			if removeIndex == -1 {
				removeIndex = previous.ZOrder()
			}
			if addIndex == -1 {
				addIndex = overlay.ZOrder()
			}
			Logger().Debug("display: cursor layer changed between frames",
				"remove", removeIndex, "add", addIndex)
		}
		if previous != nil && previous.IsVideoLayer() != overlay.IsVideoLayer() {
			if removeIndex == -1 {
				removeIndex = previous.ZOrder()
			}
			if addIndex == -1 {
				addIndex = overlay.ZOrder()
			}
			Logger().Debug("display: video layer changed between frames",
				"remove", removeIndex, "add", addIndex)
		}
	}

	if rawPixelUpdate {
		q.compositor.UpdateLayerPixelData(layers)
	}

	// Invisible layers were skipped above; size is the visible count.
	size := len(layers)
	if addIndex == 0 || validateLayers {
		// With an insertion at the bottom there is no cached prefix to
		// keep; incremental validation cannot help.
		validateLayers = true
	} else if previousSize > size {
		if removeIndex == -1 {
			removeIndex = size
		} else if addIndex != -1 && addIndex < removeIndex {
			removeIndex = addIndex
		}
	}

	if idleFrame {
		if addIndex != -1 || removeIndex != -1 || reValidateCommit {
			idleFrame = false
		}
	}
	if !validateLayers {
		validateLayers = idleFrame
	}

	var currentComposition []*PlaneState
	var renderLayers bool
	forceMediaComposition := false
	requestedVideoEffect := false
	if hasVideoLayer {
		q.videoMu.Lock()
		if q.requestedVideoEffect != q.appliedVideoEffect {
			// Media planes must pick up the new effect state.
			forceMediaComposition = true
			q.appliedVideoEffect = q.requestedVideoEffect
			requestedVideoEffect = q.requestedVideoEffect
			idleFrame = false
			validateLayers = true
		}
		q.videoMu.Unlock()
	}

	compositionPassed := true
	disableOverlays := q.state.Load()&stateDisableOverlayUsage != 0
	if !validateLayers && scope.RevalidateLayers() {
		validateLayers = true
	}

	if !validateLayers {
		canIgnoreCommit := false
		needsPlaneValidation := false
		renderLayers, canIgnoreCommit, needsPlaneValidation =
			q.getCachedLayers(layers, removeIndex, &currentComposition, &validateLayers)

		if !validateLayers && addIndex > 0 {
			res := q.planeManager.ValidateLayers(layers, addIndex,
				disableOverlays, &currentComposition, q.previousPlaneState,
				&q.surfacesNotInUse)
			if !renderLayers {
				renderLayers = res.RenderLayers
			}
			canIgnoreCommit = false
			if res.CommitChecked {
				reValidateCommit = false
			}
			if res.NeedsPlaneValidation {
				needsPlaneValidation = true
			}
		}

		if !validateLayers && (reValidateCommit || needsPlaneValidation) {
			render, full := q.planeManager.ReValidatePlanes(currentComposition,
				layers, &q.surfacesNotInUse, needsPlaneValidation, reValidateCommit)
			canIgnoreCommit = false
			if full {
				validateLayers = true
			}
			if !renderLayers {
				renderLayers = render
			}
		}

		if !validateLayers {
			if forceMediaComposition {
				q.setMediaEffectsState(requestedVideoEffect, layers, currentComposition)
				renderLayers = true
				canIgnoreCommit = false
			}
			if canIgnoreCommit {
				q.swapInFlightLayers(layers)
				return -1, true
			}
		}
	}

	q.lastCommitFailed = false

	if validateLayers {
		if !idleFrame {
			scope.ResetTrackerState()
		}
		forceGPU := disableOverlays || idleFrame ||
			(q.state.Load()&stateConfigurationChanged != 0 && len(layers) > 1)
		currentComposition = nil
		res := q.planeManager.ValidateLayers(layers, 0, forceGPU,
			&currentComposition, q.previousPlaneState, &q.surfacesNotInUse)
		renderLayers = res.RenderLayers
		if forceMediaComposition && requestedVideoEffect {
			q.setMediaEffectsState(requestedVideoEffect, layers, currentComposition)
			renderLayers = true
		}
		q.state.And(^stateConfigurationChanged)
	}

	if renderLayers {
		if !q.compositor.BeginFrame(disableOverlays) {
			Logger().Error("display: compositor BeginFrame failed")
			compositionPassed = false
		}
		if compositionPassed {
			rects := make([]image.Rectangle, size)
			for i, l := range layers {
				rects[i] = l.DisplayFrame()
			}
			if !q.compositor.Draw(currentComposition, layers, rects) {
				Logger().Error("display: composition draw failed")
				compositionPassed = false
			}
		}
	} else if rawPixelUpdate {
		q.compositor.EnsurePixelDataUpdated()
	}

	if !compositionPassed {
		q.lastCommitFailed = true
		closeLayerFences(layers)
		return -1, false
	}

	if !q.doubleBuffered && q.kmsFence != nil {
		// Wait for the previous scan-out before queueing on top of it.
		if err := q.kmsFence.Wait(); err != nil {
			Logger().Warn("display: commit fence wait failed", "err", err)
		}
		q.kmsFence.Close()
		q.kmsFence = nil
	}

	if q.state.Load()&stateNeedsColorCorrection != 0 {
		q.display.SetColorCorrection(q.gamma, q.contrast, q.brightness)
		q.display.SetColorTransformMatrix(&q.colorTransformMatrix, q.colorTransformHint)
		q.state.And(^stateNeedsColorCorrection)
	}

	fence, err := q.display.Commit(currentComposition, q.previousPlaneState, disableOverlays)
	if err != nil {
		Logger().Error("display: commit failed", "err", err)
		q.lastCommitFailed = true
		closeLayerFences(layers)
		fence.Close()
		return -1, false
	}

	// Surfaces quarantined last frame were on screen until this commit;
	// from here the kernel no longer references them.
	for _, s := range q.markNotInUse {
		s.SetAge(-1)
	}
	q.markNotInUse = q.markNotInUse[:0]

	q.swapInFlightLayers(layers)
	q.previousPlaneState = currentComposition
	q.updateOnScreenSurfaces()

	// Age out surfaces pending release; anything at age zero moves to
	// the release list for the next frame.
	if len(q.surfacesNotInUse) > 0 {
		keep := q.surfacesNotInUse[:0]
		for _, s := range q.surfacesNotInUse {
			if s.Age() > 0 {
				s.SetAge(s.Age() - 1)
				keep = append(keep, s)
			} else {
				q.markNotInUse = append(q.markNotInUse, s)
			}
		}
		q.surfacesNotInUse = keep
	}

	if idleFrame {
		q.releaseSurfaces()
		q.state.Or(stateLastFrameIdleUpdate)
		if q.state.Load()&stateClonedMode != 0 {
			q.idleTracker.mu.Lock()
			q.idleTracker.state |= trackerRenderIdleDisplay
			q.idleTracker.mu.Unlock()
		}
	} else {
		q.state.And(^stateLastFrameIdleUpdate)
		q.releaseSurfacesAsNeeded(validateLayers)
	}

	if fence != nil {
		if q.state.Load()&stateClonedMode == 0 {
			if dup := fence.Dup(); dup != nil {
				retireFence = dup.Release()
			}
		}
		q.kmsFence = fence
		q.setReleaseFenceToLayers(fence, sourceLayers)
	}

	if q.doubleBuffered && q.kmsFence != nil {
		if err := q.kmsFence.Wait(); err != nil {
			Logger().Warn("display: commit fence wait failed", "err", err)
		}
		q.kmsFence.Close()
		q.kmsFence = nil
	}

	if q.handleDisplayLazyInit {
		q.handleDisplayLazyInit = false
		q.display.HandleLazyInitialization()
	}

	return retireFence, true
}

// swapInFlightLayers retires the previous frame's snapshots, closing any
// acquire fences that were never handed back out.
func (q *Queue) swapInFlightLayers(layers []*OverlayLayer) {
	closeLayerFences(q.inFlightLayers)
	q.inFlightLayers = layers
}

// closeLayerFences closes the remaining owned acquire fences of a
// snapshot list.
func closeLayerFences(layers []*OverlayLayer) {
	for _, l := range layers {
		l.acquireFence.Close()
		l.acquireFence = nil
	}
}

// SetCloneMode switches the pipe in or out of clone mode. A cloned pipe
// mirrors another display; its own vblank is gated off and retire
// fences are not surfaced.
func (q *Queue) SetCloneMode(cloned bool) {
	if cloned {
		if q.state.Load()&stateClonedMode == 0 {
			q.state.Or(stateClonedMode)
			if q.vblankHandler != nil {
				q.vblankHandler.SetPowerMode(PowerOff)
			}
		}
		return
	}
	if q.state.Load()&stateClonedMode != 0 {
		q.state.And(^stateClonedMode)
		q.state.Or(stateConfigurationChanged)
		if q.vblankHandler != nil {
			q.vblankHandler.SetPowerMode(PowerOn)
		}
	}
}

// IgnoreUpdates drops incoming frames until ForceRefresh.
func (q *Queue) IgnoreUpdates() {
	q.idleTracker.mu.Lock()
	q.idleTracker.idleFrames = 0
	q.idleTracker.state = trackerIgnoreUpdates
	q.idleTracker.revalidateCounter = 0
	q.idleTracker.mu.Unlock()
}

// releaseSurfaces returns all quarantined off-screen targets to the plane
// manager's surface pool.
func (q *Queue) releaseSurfaces() {
	q.planeManager.ReleaseFreeOffScreenTargets()
	q.state.And(^(stateMarkSurfacesForRelease | stateReleaseSurfaces))
}

// releaseSurfacesAsNeeded runs the two-phase release dance: a validation
// marks surfaces, the next stable frame releases them. This keeps
// surfaces alive across back-to-back validations that might want them.
func (q *Queue) releaseSurfacesAsNeeded(layersValidated bool) {
	if !layersValidated && q.state.Load()&stateReleaseSurfaces != 0 {
		q.releaseSurfaces()
	}
	if q.state.Load()&stateMarkSurfacesForRelease != 0 {
		q.state.Or(stateReleaseSurfaces)
		q.state.And(^stateMarkSurfacesForRelease)
	}
	if layersValidated {
		q.state.Or(stateMarkSurfacesForRelease)
		q.state.And(^stateReleaseSurfaces)
	}
}

// setMediaEffectsState toggles effect composition on every video plane.
// Enabling effects on a scanning plane allocates an off-screen target;
// disabling them on a scan-out-eligible plane hands the plane back its
// direct overlay layer.
func (q *Queue) setMediaEffectsState(applyEffects bool, layers []*OverlayLayer,
	composition []*PlaneState) {
	for _, plane := range composition {
		if !plane.IsVideoPlane() {
			continue
		}
		plane.SetApplyEffects(applyEffects)
		surfaces := plane.Surfaces()
		if applyEffects && len(surfaces) == 0 {
			plane.ForceOffScreenComposition()
			q.planeManager.SetOffScreenPlaneTarget(plane)
		} else if !applyEffects && len(surfaces) > 0 {
			source := plane.SourceLayers()
			if len(source) == 1 && layers[source[0]].CanScanOut() {
				q.planeManager.MarkSurfacesForRecycling(plane, &q.surfacesNotInUse, false)
				plane.SetOverlayLayer(layers[source[0]])
			}
		}
	}
}

// updateOnScreenSurfaces re-ages every composed plane's ring after a
// commit. A full ring permutes ages so the next draw picks the surface
// that has been off screen longest; shorter rings age descending from
// the freshly drawn surface.
func (q *Queue) updateOnScreenSurfaces() {
	for _, plane := range q.previousPlaneState {
		surfaces := plane.Surfaces()
		if len(surfaces) == 0 {
			continue
		}
		if len(surfaces) == 3 {
			surfaces[0].SetAge(2)
			surfaces[1].SetAge(0)
			surfaces[2].SetAge(1)
		} else {
			for i, s := range surfaces {
				s.SetAge(2 - i)
			}
		}
	}
}

// setReleaseFenceToLayers distributes the commit fence back to the
// caller's layers. Scan-out layers release when the display retires the
// frame; composed layers release when the GPU finished reading them,
// which the composed surface's acquire fence signals.
func (q *Queue) setReleaseFenceToLayers(fence *Fence, sourceLayers []*Layer) {
	for _, plane := range q.previousPlaneState {
		indices := plane.SourceLayers()
		if plane.Scanout() && !plane.SurfaceRecycled() {
			for _, idx := range indices {
				overlay := q.inFlightLayers[idx]
				layer := sourceLayers[overlay.LayerIndex()]
				if dup := fence.Dup(); dup != nil {
					layer.SetReleaseFence(dup.Release())
				}
				overlay.SetLayerComposition(CompositionDisplay)
			}
			continue
		}

		var releaseFence *Fence
		if target := plane.OffScreenTarget(); target != nil {
			if fd := target.ReleaseAcquireFence(); fd > 0 {
				releaseFence = NewFence(fd)
			}
		}
		for _, idx := range indices {
			overlay := q.inFlightLayers[idx]
			overlay.SetLayerComposition(CompositionGPU)
			layer := sourceLayers[overlay.LayerIndex()]
			if releaseFence != nil {
				if dup := releaseFence.Dup(); dup != nil {
					layer.SetReleaseFence(dup.Release())
				}
			} else if fd := overlay.ReleaseAcquireFence(); fd > 0 {
				layer.SetReleaseFence(fd)
			}
		}
		releaseFence.Close()
	}
}

// HandleExit powers the pipe down: planes detached, queue reset, commit
// fence closed. Clone mode and overlay-usage remain sticky.
func (q *Queue) HandleExit() {
	q.powerModeMu.Lock()
	q.state.Or(stateIgnoreIdleRefresh)
	q.powerModeMu.Unlock()
	if q.vblankHandler != nil {
		q.vblankHandler.SetPowerMode(PowerOff)
	}
	if len(q.previousPlaneState) > 0 {
		q.display.Disable(q.previousPlaneState)
	}
	q.kmsFence.Close()
	q.kmsFence = nil

	sticky := q.state.Load() & (stateDisableOverlayUsage | stateClonedMode)
	q.state.Store(stateConfigurationChanged | sticky)
	q.resetQueue()
}

// CheckPlaneFormat reports whether any plane of the pipe scans out the
// given format.
func (q *Queue) CheckPlaneFormat(format gputypes.TextureFormat) bool {
	if q.planeManager == nil {
		return false
	}
	return q.planeManager.CheckPlaneFormat(format)
}

// SetGamma schedules per-channel gamma programming with the next commit.
func (q *Queue) SetGamma(red, green, blue float32) {
	q.gamma = Gamma{Red: red, Green: green, Blue: blue}
	q.state.Or(stateNeedsColorCorrection)
}

// SetColorTransform schedules a color transform matrix update. The
// matrix is only captured for the arbitrary hint.
func (q *Queue) SetColorTransform(matrix *[16]float32, hint ColorTransformHint) {
	q.colorTransformHint = hint
	if hint == ColorTransformArbitrary && matrix != nil {
		q.colorTransformMatrix = *matrix
	}
	q.state.Or(stateNeedsColorCorrection)
}

// SetContrast schedules contrast programming; channels are 8-bit values
// packed 0xRRGGBB.
func (q *Queue) SetContrast(red, green, blue uint32) {
	red &= 0xFF
	green &= 0xFF
	blue &= 0xFF
	q.contrast = red<<16 | green<<8 | blue
	q.state.Or(stateNeedsColorCorrection)
}

// SetBrightness schedules brightness programming; channels are 8-bit
// values packed 0xRRGGBB.
func (q *Queue) SetBrightness(red, green, blue uint32) {
	red &= 0xFF
	green &= 0xFF
	blue &= 0xFF
	q.brightness = red<<16 | green<<8 | blue
	q.state.Or(stateNeedsColorCorrection)
}

// SetExplicitSyncSupport disables overlay usage when explicit sync is
// unavailable, forcing GPU composition with implicit sync.
func (q *Queue) SetExplicitSyncSupport(disableExplicitSync bool) {
	if disableExplicitSync {
		q.state.Or(stateDisableOverlayUsage)
	} else {
		q.state.And(^stateDisableOverlayUsage)
	}
}

// SetVideoScalingMode forwards the scaling mode to the compositor.
// Scaling alone does not force media recomposition; the compositor
// applies it on the next composed frame.
func (q *Queue) SetVideoScalingMode(mode uint32) {
	q.videoMu.Lock()
	q.compositor.SetVideoScalingMode(mode)
	q.videoMu.Unlock()
}

// SetVideoColor adjusts a video color control and arms media
// recomposition for the next frame with a video layer.
func (q *Queue) SetVideoColor(ctrl ColorControl, value float32) {
	q.videoMu.Lock()
	q.requestedVideoEffect = true
	q.compositor.SetVideoColor(ctrl, value)
	q.videoMu.Unlock()
}

// GetVideoColor returns the current value and range of a video color
// control.
func (q *Queue) GetVideoColor(ctrl ColorControl) (value, rangeStart, rangeEnd float32) {
	return q.compositor.GetVideoColor(ctrl)
}

// RestoreVideoDefaultColor restores a control to its default and drops
// the video effect request.
func (q *Queue) RestoreVideoDefaultColor(ctrl ColorControl) {
	q.videoMu.Lock()
	q.requestedVideoEffect = false
	q.compositor.RestoreVideoDefaultColor(ctrl)
	q.videoMu.Unlock()
}

// SetVideoDeinterlace enables deinterlacing and arms media
// recomposition.
func (q *Queue) SetVideoDeinterlace(flag DeinterlaceFlag, mode DeinterlaceControl) {
	q.videoMu.Lock()
	q.requestedVideoEffect = true
	q.compositor.SetVideoDeinterlace(flag, mode)
	q.videoMu.Unlock()
}

// RestoreVideoDefaultDeinterlace disables deinterlacing and drops the
// video effect request.
func (q *Queue) RestoreVideoDefaultDeinterlace() {
	q.videoMu.Lock()
	q.requestedVideoEffect = false
	q.compositor.RestoreVideoDefaultDeinterlace()
	q.videoMu.Unlock()
}

// RegisterVsyncCallback installs the vsync callback for a display id.
func (q *Queue) RegisterVsyncCallback(cb VsyncCallback, displayID uint32) int {
	if q.vblankHandler == nil {
		return -1
	}
	return q.vblankHandler.RegisterCallback(cb, displayID)
}

// RegisterRefreshCallback installs the callback invoked when the queue
// wants the owner to schedule a new frame.
func (q *Queue) RegisterRefreshCallback(cb RefreshCallback, displayID uint32) {
	q.idleTracker.mu.Lock()
	q.refreshCallback = cb
	q.refreshDisplayID = displayID
	q.idleTracker.mu.Unlock()
}

// VSyncControl toggles vsync callback delivery.
func (q *Queue) VSyncControl(enabled bool) {
	if q.vblankHandler != nil {
		q.vblankHandler.VSyncControl(enabled)
	}
}

// HandleIdleCase runs on vblank ticks. After idleFrameLimit consecutive
// quiet ticks with a multi-plane, cursor-free composition it fires the
// refresh callback once so the next frame can collapse to a single
// plane and free the rest.
func (q *Queue) HandleIdleCase() {
	q.idleTracker.mu.Lock()
	defer q.idleTracker.mu.Unlock()

	t := &q.idleTracker
	if t.state&trackerPrepareComposition != 0 {
		return
	}
	if t.totalPlanes <= 1 ||
		t.state&trackerTrackingFrames != 0 ||
		t.state&trackerRevalidateLayers != 0 ||
		t.hasCursorLayer {
		return
	}
	if t.idleFrames > idleFrameLimit {
		return
	}
	if t.idleFrames < idleFrameLimit {
		t.idleFrames++
		return
	}

	t.idleFrames++
	q.powerModeMu.Lock()
	if q.state.Load()&stateIgnoreIdleRefresh == 0 &&
		q.refreshCallback != nil &&
		q.state.Load()&statePoweredOn != 0 {
		q.refreshCallback(q.refreshDisplayID)
		t.state |= trackerPrepareIdleComposition
	}
	q.powerModeMu.Unlock()
}

// ForceRefresh schedules a full validation and asks the owner for a new
// frame immediately.
func (q *Queue) ForceRefresh() {
	q.idleTracker.mu.Lock()
	q.idleTracker.state &^= trackerIgnoreUpdates
	q.idleTracker.state |= trackerRevalidateLayers
	cb, displayID := q.refreshCallback, q.refreshDisplayID
	q.idleTracker.mu.Unlock()

	q.powerModeMu.Lock()
	if q.state.Load()&stateIgnoreIdleRefresh == 0 &&
		cb != nil &&
		q.state.Load()&statePoweredOn != 0 {
		cb(displayID)
	}
	q.powerModeMu.Unlock()
}

// DisplayConfigurationChanged marks that a modeset is pending; the next
// frame re-validates everything.
func (q *Queue) DisplayConfigurationChanged() {
	q.state.Or(stateConfigurationChanged)
}

// UpdateScalingRatio recomputes the clone-mode scaling ratios between
// the primary display and this display.
func (q *Queue) UpdateScalingRatio(primaryWidth, primaryHeight, displayWidth, displayHeight uint32) {
	q.scalingTracker.state = scalingNone
	primaryArea := primaryWidth * primaryHeight
	displayArea := displayWidth * displayHeight
	if primaryArea != displayArea && primaryWidth > 0 && primaryHeight > 0 {
		q.scalingTracker.state = scalingNeeded
		q.scalingTracker.widthRatio =
			float32(displayWidth-primaryWidth) / float32(primaryWidth)
		q.scalingTracker.heightRatio =
			float32(displayHeight-primaryHeight) / float32(primaryHeight)
	}
	q.state.Or(stateConfigurationChanged)
}

// resetQueue drops all cached frame state. IgnoreUpdates survives a
// reset so a hidden display stays hidden across power cycles.
func (q *Queue) resetQueue() {
	q.videoMu.Lock()
	q.appliedVideoEffect = false
	q.videoMu.Unlock()
	q.lastCommitFailed = false

	closeLayerFences(q.inFlightLayers)
	q.inFlightLayers = nil
	q.previousPlaneState = nil
	q.markNotInUse = nil
	q.surfacesNotInUse = nil

	if q.planeManager != nil && q.planeManager.HasSurfaces() {
		q.planeManager.ReleaseAllOffScreenTargets()
	}
	if q.resourceManager != nil {
		q.resourceManager.PurgeBuffers()
	}

	q.idleTracker.mu.Lock()
	ignoreUpdates := q.idleTracker.state&trackerIgnoreUpdates != 0
	q.idleTracker.state = 0
	if ignoreUpdates {
		q.idleTracker.state = trackerIgnoreUpdates
	}
	q.idleTracker.idleFrames = 0
	q.idleTracker.mu.Unlock()

	if q.compositor != nil {
		q.compositor.Reset()
	}
}
