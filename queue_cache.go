// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "image"

// getCachedLayers rebuilds the next composition from the previous
// frame's plane state without consulting the plane manager, patching
// damage and geometry in place. It reports whether any plane needs GPU
// composition, whether the kernel commit can be skipped entirely, and
// whether plane constraints must be re-checked. When the cache cannot
// describe the new frame, forceFullValidation is set and the caller
// falls back to a full ValidateLayers pass.
func (q *Queue) getCachedLayers(layers []*OverlayLayer, removeIndex int,
	composition *[]*PlaneState, forceFullValidation *bool) (renderLayers, canIgnoreCommit, needsPlaneValidation bool) {
	needsGPUComposition := false
	ignoreCommit := true
	checkToSquash := false
	planeValidation := false
	// When a scan-out layer's display frame changes, composition
	// regions of GPU-composed planes must be recalculated.
	resetCompositionRegions := false

	for _, previousPlane := range q.previousPlaneState {
		clearSurface := false
		lastPlane := previousPlane.clone()
		*composition = append(*composition, lastPlane)

		if removeIndex != -1 {
			sourceLayers := lastPlane.SourceLayers()
			index := sourceLayers[len(sourceLayers)-1]
			if index >= removeIndex {
				hasOneLayer := len(sourceLayers) == 1
				if !hasOneLayer {
					lastPlane.ResetLayers(layers, removeIndex)
					clearSurface = true
				}
				// The new layer combination may need a different
				// scaler setup; the commit must run.
				ignoreCommit = false

				if len(lastPlane.SourceLayers()) == 0 || hasOneLayer {
					q.planeManager.MarkSurfacesForRecycling(lastPlane,
						&q.surfacesNotInUse, false)
					// On some hardware disabling the primary plane
					// disables the whole pipe; re-validate so primary
					// keeps a buffer.
					if lastPlane.Plane() == q.previousPlaneState[0].Plane() {
						Logger().Debug("display: primary plane empty, forcing full validation")
						*forceFullValidation = true
						return false, false, false
					}
					lastPlane.Plane().SetInUse(false)
					*composition = (*composition)[:len(*composition)-1]
					continue
				}

				lastPlane.ValidateReValidation()
				if lastPlane.RevalidationType()&RevalidateScanout != 0 {
					remaining := lastPlane.SourceLayers()
					layer := layers[remaining[0]]
					// Actual and supported composition differ for
					// this layer; have the plane manager re-check.
					if layer.CanScanOut() && lastPlane.NeedsOffScreenComposition() {
						planeValidation = true
					} else if len(remaining) == 1 {
						checkToSquash = true
						lastPlane.RevalidationDone(RevalidateScanout)
					}
				}
			}
		}

		if lastPlane.NeedsOffScreenComposition() {
			var surfaceDamage image.Rectangle
			updateRect := false
			updateSourceRect := false
			fullReset := clearSurface || resetCompositionRegions
			refreshSurfaces := resetCompositionRegions

			if !clearSurface {
				for _, sourceIndex := range lastPlane.SourceLayers() {
					layer := layers[sourceIndex]
					if layer.HasDimensionsChanged() {
						lastPlane.UpdateDisplayFrame(layer.DisplayFrame(),
							layer.NeedsFullDraw())
						updateRect = true
					}
					if layer.HasSourceRectChanged() {
						lastPlane.UpdateSourceCrop(layer.SourceCrop(),
							layer.NeedsFullDraw())
						updateSourceRect = true
					}
					if fullReset || refreshSurfaces {
						continue
					}
					refreshSurfaces = layer.NeedsFullDraw()
					if layer.HasLayerContentChanged() {
						unionRect(layer.SurfaceDamage(), &surfaceDamage)
					}
				}
			}

			if updateRect || updateSourceRect || clearSurface {
				lastPlane.ValidateReValidation()
				if lastPlane.RevalidationType() != RevalidateNone {
					planeValidation = true
				}
			}

			if fullReset || !surfaceDamage.Empty() || updateRect ||
				updateSourceRect || refreshSurfaces {
				switch {
				case lastPlane.NeedsSurfaceAllocation():
					q.planeManager.SetOffScreenPlaneTarget(lastPlane)
				case fullReset || refreshSurfaces:
					lastPlane.RefreshSurfaces(ClearFull, refreshSurfaces)
				default:
					lastPlane.UpdateDamage(surfaceDamage)
				}
			}

			if !needsGPUComposition {
				needsGPUComposition = !lastPlane.SurfaceRecycled()
			}
			resetCompositionRegions = false
		} else {
			resetCompositionRegions = false
			layer := layers[lastPlane.SourceLayers()[0]]
			buffer := layer.Buffer()
			if buffer.FB() == 0 {
				err := buffer.EnsureFramebuffer(q.gpuFD)
				// Without a framebuffer the plane cannot scan out;
				// re-validate the whole commit.
				if err != nil || buffer.FB() == 0 {
					Logger().Warn("display: framebuffer creation failed",
						"layer", layer.LayerIndex(), "err", err)
					*forceFullValidation = true
					return false, false, false
				}
				resetCompositionRegions = true
			}

			lastPlane.SetOverlayLayer(layer)
			if layer.HasLayerContentChanged() {
				ignoreCommit = false
			}
			if layer.HasDimensionsChanged() || layer.NeedsRevalidation() ||
				layer.NeedsFullDraw() {
				ignoreCommit = false
				resetCompositionRegions = true
			}
		}
	}

	if needsGPUComposition {
		ignoreCommit = false
	}

	// The top non-cursor overlay can merge into the plane below it,
	// releasing a plane slot.
	if checkToSquash {
		q.squashPlanes(layers, composition)
	}

	return needsGPUComposition, ignoreCommit, planeValidation
}

// squashPlanes merges the tail overlay plane into the one before it when
// both allow it. The cursor plane, when present, stays on top and is
// skipped.
func (q *Queue) squashPlanes(layers []*OverlayLayer, composition *[]*PlaneState) {
	size := len(*composition)
	if size > 0 && (*composition)[size-1].IsCursorPlane() {
		// Cursor planes never squash.
		size--
	}
	if size <= 2 {
		return
	}

	oldPlane := (*composition)[size-2]
	lastOverlay := (*composition)[size-1]
	sourceLayers := lastOverlay.SourceLayers()
	if !oldPlane.CanSquash() || !lastOverlay.CanSquash() || len(sourceLayers) != 1 {
		return
	}

	Logger().Debug("display: squashing overlay plane",
		"layer", sourceLayers[0], "into", oldPlane.Plane().ID())
	layer := layers[sourceLayers[0]]
	oldPlane.AddLayer(layer)
	q.planeManager.SetOffScreenPlaneTarget(oldPlane)

	if lastOverlay.OffScreenTarget() != nil {
		q.planeManager.MarkSurfacesForRecycling(lastOverlay,
			&q.surfacesNotInUse, false)
	}
	lastOverlay.Plane().SetInUse(false)
	*composition = append((*composition)[:size-1], (*composition)[size:]...)
}
