// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package kms

import (
	"fmt"

	"github.com/NeowayLabs/drm/mode"

	"github.com/gogpu/display"
)

// Sink implements display.PhysicalDisplay over legacy per-plane
// programming. The legacy API carries no out-fence, so Commit returns a
// nil retire fence and callers fall back to implicit sync.
type Sink struct {
	dev *Device
}

// NewSink creates the commit sink for a device.
func NewSink(dev *Device) *Sink {
	return &Sink{dev: dev}
}

// Commit programs every plane of the composition.
func (s *Sink) Commit(current, previous []*display.PlaneState, disableOverlays bool) (*display.Fence, error) {
	for _, ps := range current {
		fb, err := planeFramebuffer(ps)
		if err != nil {
			return nil, err
		}
		frame := ps.DisplayFrame()
		crop := ps.SourceCrop()
		srcW := uint32(crop.Width())
		srcH := uint32(crop.Height())
		if srcW == 0 || srcH == 0 {
			srcW = uint32(frame.Dx())
			srcH = uint32(frame.Dy())
		}
		// Source coordinates are 16.16 fixed point.
		err = mode.SetPlane(s.dev.file, ps.Plane().ID(), s.dev.crtcID, fb, 0,
			int32(frame.Min.X), int32(frame.Min.Y),
			uint32(frame.Dx()), uint32(frame.Dy()),
			uint32(crop.Left)<<16, uint32(crop.Top)<<16,
			srcH<<16, srcW<<16)
		if err != nil {
			return nil, fmt.Errorf("kms: set plane %d: %w", ps.Plane().ID(), err)
		}
	}

	// Turn off planes dropped since the last frame.
	for _, prev := range previous {
		if prev.Plane().InUse() {
			continue
		}
		if err := disablePlane(s.dev, prev.Plane().ID()); err != nil {
			display.Logger().Warn("kms: plane disable failed",
				"plane", prev.Plane().ID(), "err", err)
		}
	}
	return nil, nil
}

// Disable turns off every plane of the composition.
func (s *Sink) Disable(previous []*display.PlaneState) {
	for _, ps := range previous {
		if err := disablePlane(s.dev, ps.Plane().ID()); err != nil {
			display.Logger().Warn("kms: plane disable failed",
				"plane", ps.Plane().ID(), "err", err)
		}
	}
}

// SetColorCorrection logs the requested gamma, contrast, and brightness
// at debug level; nothing is programmed into the hardware.
func (s *Sink) SetColorCorrection(gamma display.Gamma, contrast, brightness uint32) {
	display.Logger().Debug("kms: color correction",
		"gamma", gamma, "contrast", contrast, "brightness", brightness)
}

// SetColorTransformMatrix returns at once for the identity hint and
// otherwise logs the update at debug level; nothing is programmed into
// the hardware.
func (s *Sink) SetColorTransformMatrix(matrix *[16]float32, hint display.ColorTransformHint) {
	if hint == display.ColorTransformIdentity {
		return
	}
	display.Logger().Debug("kms: color transform matrix update")
}

// HandleLazyInitialization runs after the first successful commit.
func (s *Sink) HandleLazyInitialization() {}

// planeFramebuffer resolves the framebuffer id a plane scans out.
func planeFramebuffer(ps *display.PlaneState) (uint32, error) {
	var buf *display.BufferRef
	if ps.NeedsOffScreenComposition() {
		target := ps.OffScreenTarget()
		if target == nil {
			return 0, ErrNoBuffer
		}
		buf = target.Buffer()
	} else if layer := ps.OverlayLayer(); layer != nil {
		buf = layer.Buffer()
	}
	if buf == nil {
		return 0, ErrNoBuffer
	}
	if buf.FB() == 0 {
		if err := buf.EnsureFramebuffer(0); err != nil {
			return 0, err
		}
	}
	return buf.FB(), nil
}

func disablePlane(dev *Device, planeID uint32) error {
	return mode.SetPlane(dev.file, planeID, dev.crtcID, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
}
