// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package kms

import (
	"fmt"

	"github.com/NeowayLabs/drm/mode"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/display"
	"github.com/gogpu/display/planes"
)

// hwPlane is one DRM plane bound to the pipe.
type hwPlane struct {
	id        uint32
	planeType planes.Type
	formats   []uint32
	inUse     bool
}

// ID returns the kernel object id of the plane.
func (p *hwPlane) ID() uint32 { return p.id }

// InUse reports whether the plane is claimed by the composition.
func (p *hwPlane) InUse() bool { return p.inUse }

// SetInUse marks the plane claimed or free.
func (p *hwPlane) SetInUse(inUse bool) { p.inUse = inUse }

// Type classifies the plane.
func (p *hwPlane) Type() planes.Type { return p.planeType }

// SupportsFormat reports whether the plane scans out the format.
func (p *hwPlane) SupportsFormat(format gputypes.TextureFormat) bool {
	fourcc, ok := fourccFor(format)
	if !ok {
		return false
	}
	for _, f := range p.formats {
		if f == fourcc {
			return true
		}
	}
	return false
}

// SupportsTransform reports whether the plane rotates in hardware.
// Rotation needs the plane rotation property; without property support
// only the identity transform passes.
func (p *hwPlane) SupportsTransform(t display.Transform) bool {
	return t == display.TransformIdentity
}

// Provider enumerates the DRM planes attached to one crtc.
type Provider struct {
	dev  *Device
	pipe uint32
}

// NewProvider creates a plane provider for a pipe index.
func NewProvider(dev *Device, pipe uint32) *Provider {
	return &Provider{dev: dev, pipe: pipe}
}

// Planes lists the planes whose possible-crtc mask includes the pipe.
// Without property access the plane type is inferred from position: the
// first plane is primary and the last is the cursor when more than two
// planes exist.
func (p *Provider) Planes() ([]planes.Plane, error) {
	res, err := mode.GetPlaneResources(p.dev.file)
	if err != nil {
		return nil, fmt.Errorf("kms: get plane resources: %w", err)
	}

	var out []planes.Plane
	for _, id := range res.Planes {
		pl, err := mode.GetPlane(p.dev.file, id)
		if err != nil {
			return nil, fmt.Errorf("kms: get plane %d: %w", id, err)
		}
		if pl.PossibleCrtcs&(1<<p.pipe) == 0 {
			continue
		}
		out = append(out, &hwPlane{
			id:        pl.ID,
			planeType: planes.TypeOverlay,
			formats:   pl.FormatTypes,
		})
	}
	if len(out) == 0 {
		return nil, planes.ErrNoPlanes
	}

	out[0].(*hwPlane).planeType = planes.TypePrimary
	if len(out) > 2 {
		out[len(out)-1].(*hwPlane).planeType = planes.TypeCursor
	}
	return out, nil
}
