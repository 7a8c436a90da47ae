// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package kms

import (
	"fmt"

	"github.com/NeowayLabs/drm/mode"
	"github.com/gogpu/gputypes"
	"golang.org/x/sys/unix"

	"github.com/gogpu/display"
	"github.com/gogpu/display/internal/bufcache"
)

// ResourceManager implements display.ResourceManager: it binds imported
// buffers to this device's framebuffer creation and caches imports by
// native handle across frames. Evicted imports drop their kernel
// framebuffer.
type ResourceManager struct {
	dev   *Device
	cache *bufcache.Cache[uint64, *display.BufferRef]
}

// NewResourceManager creates a resource manager for a device.
func NewResourceManager(dev *Device) *ResourceManager {
	r := &ResourceManager{dev: dev}
	r.cache = bufcache.New[uint64, *display.BufferRef](0, r.releaseImport)
	return r
}

// releaseImport removes an evicted import's framebuffer from the kernel.
func (r *ResourceManager) releaseImport(_ uint64, buf *display.BufferRef) {
	if fb := buf.FB(); fb != 0 {
		if err := mode.RmFB(r.dev.file, fb); err != nil {
			display.Logger().Warn("kms: rmfb failed", "fb", fb, "err", err)
		}
	}
}

// ImportBuffer resolves the layer's buffer and attaches framebuffer
// creation. Prime import of a bare native handle requires driver
// cooperation the legacy interface does not expose, so a layer must
// carry its BufferRef; repeated handles reuse the cached import.
func (r *ResourceManager) ImportBuffer(layer *display.Layer) (*display.BufferRef, error) {
	if layer.NativeHandle != 0 {
		if buf, ok := r.cache.Get(layer.NativeHandle); ok {
			return buf, nil
		}
	}
	buf := layer.Buffer
	if buf == nil {
		return nil, ErrNoBuffer
	}
	buf.SetFramebufferSource(r.dev.createFramebuffer)
	if layer.NativeHandle != 0 {
		r.cache.Set(layer.NativeHandle, buf)
	}
	return buf, nil
}

// PurgeBuffers drops the import cache and removes the cached
// framebuffers from the kernel.
func (r *ResourceManager) PurgeBuffers() {
	r.cache.Purge()
}

// Allocator allocates dumb-buffer render targets for off-screen
// composition. Dumb buffers are CPU-mappable, which the software
// composition path requires.
type Allocator struct {
	dev *Device
}

// NewAllocator creates a dumb-buffer allocator for a device.
func NewAllocator(dev *Device) *Allocator {
	return &Allocator{dev: dev}
}

// Allocate creates and maps a dumb buffer.
func (a *Allocator) Allocate(width, height uint32, format gputypes.TextureFormat) (*display.BufferRef, error) {
	if _, ok := fourccFor(format); !ok {
		return nil, ErrUnsupportedFormat
	}
	fb, err := mode.CreateFB(a.dev.file, uint16(width), uint16(height), 32)
	if err != nil {
		return nil, fmt.Errorf("kms: create dumb %dx%d: %w", width, height, err)
	}
	offset, err := mode.MapDumb(a.dev.file, fb.Handle)
	if err != nil {
		destroyDumb(a.dev, fb.Handle)
		return nil, fmt.Errorf("kms: map dumb: %w", err)
	}
	pixels, err := unix.Mmap(a.dev.FD(), int64(offset), int(fb.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		destroyDumb(a.dev, fb.Handle)
		return nil, fmt.Errorf("kms: mmap dumb: %w", err)
	}

	buf := &display.BufferRef{
		Width:   width,
		Height:  height,
		Format:  format,
		Pitches: [4]uint32{fb.Pitch},
		Handle:  fb.Handle,
		Pixels:  pixels,
		PrimeFD: -1,
	}
	buf.SetFramebufferSource(a.dev.createFramebuffer)
	return buf, nil
}

// Release unmaps and destroys a dumb buffer and its framebuffer.
func (a *Allocator) Release(buf *display.BufferRef) {
	if buf == nil {
		return
	}
	if fb := buf.FB(); fb != 0 {
		if err := mode.RmFB(a.dev.file, fb); err != nil {
			display.Logger().Warn("kms: rmfb failed", "fb", fb, "err", err)
		}
	}
	if len(buf.Pixels) > 0 {
		if err := unix.Munmap(buf.Pixels); err != nil {
			display.Logger().Warn("kms: munmap failed", "err", err)
		}
		buf.Pixels = nil
	}
	destroyDumb(a.dev, buf.Handle)
}

func destroyDumb(dev *Device, handle uint32) {
	if handle == 0 {
		return
	}
	if err := mode.DestroyDumb(dev.file, handle); err != nil {
		display.Logger().Warn("kms: destroy dumb failed", "handle", handle, "err", err)
	}
}
