// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

// Package kms backs the display queue with the Linux kernel
// mode-setting API: plane discovery, dumb-buffer render targets,
// framebuffer creation, and per-plane programming.
package kms

import (
	"errors"
	"fmt"
	"os"

	"github.com/NeowayLabs/drm/mode"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/display"
)

// Package errors.
var (
	// ErrUnsupportedFormat is returned for formats without a DRM fourcc.
	ErrUnsupportedFormat = errors.New("kms: unsupported pixel format")

	// ErrNoBuffer is returned when a layer carries no importable buffer.
	ErrNoBuffer = errors.New("kms: layer has no buffer")
)

// DRM fourcc codes for the formats the compositor produces.
const (
	fourccXR24 = 0x34325258 // XRGB8888
	fourccAR24 = 0x34325241 // ARGB8888
	fourccAB24 = 0x34324241 // ABGR8888 (RGBA byte order)
	fourccXB24 = 0x34324258 // XBGR8888
)

// fourccFor maps a texture format to its DRM fourcc.
func fourccFor(format gputypes.TextureFormat) (uint32, bool) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		return fourccAB24, true
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return fourccAR24, true
	default:
		return 0, false
	}
}

// Device wraps an opened DRM node and the crtc of one pipe.
type Device struct {
	file   *os.File
	crtcID uint32
}

// NewDevice binds an opened DRM node to a crtc. The caller keeps
// ownership of the file.
func NewDevice(file *os.File, crtcID uint32) *Device {
	return &Device{file: file, crtcID: crtcID}
}

// FD returns the device descriptor.
func (d *Device) FD() int { return int(d.file.Fd()) }

// createFramebuffer is the display.FramebufferFunc wired into every
// buffer imported or allocated through this package.
func (d *Device) createFramebuffer(buf *display.BufferRef, _ int) (uint32, error) {
	fourcc, ok := fourccFor(buf.Format)
	if !ok {
		return 0, ErrUnsupportedFormat
	}
	id, err := mode.AddFB2(d.file, uint16(buf.Width), uint16(buf.Height),
		fourcc, 0,
		buf.Pitches[:], buf.Offsets[:],
		[]uint32{buf.Handle, 0, 0, 0}, []uint64{0, 0, 0, 0})
	if err != nil {
		return 0, fmt.Errorf("kms: addfb2 %dx%d: %w", buf.Width, buf.Height, err)
	}
	return id, nil
}
