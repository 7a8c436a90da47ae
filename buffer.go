// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Buffer errors.
var (
	// ErrNoFramebufferSource is returned when a framebuffer id is
	// requested for a buffer that has no framebuffer creator attached.
	ErrNoFramebufferSource = errors.New("display: buffer has no framebuffer source")
)

// FramebufferFunc creates a kernel framebuffer object for a buffer and
// returns its id. Implementations live in the commit sink (e.g. the kms
// package wraps AddFB2).
type FramebufferFunc func(buf *BufferRef, gpuFD int) (uint32, error)

// BufferRef describes one imported pixel buffer. The descriptor is
// immutable after import except for the lazily created framebuffer id.
//
// A BufferRef does not own the prime descriptor; the importer does.
type BufferRef struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat

	// Per-plane layout. Planar video formats use up to three planes;
	// packed formats use one.
	Pitches [4]uint32
	Offsets [4]uint32

	// PrimeFD is the dma-buf descriptor backing the buffer.
	PrimeFD int

	// Handle is the driver-local buffer handle, when the importer has one.
	Handle uint32

	// Pixels optionally exposes CPU-visible pixel data for raw-pixel
	// layers composed in software.
	Pixels []byte

	fbID     uint32
	createFB FramebufferFunc
}

// SetFramebufferSource attaches the framebuffer creator used by
// EnsureFramebuffer. Called by the importer once at import time.
func (b *BufferRef) SetFramebufferSource(fn FramebufferFunc) {
	b.createFB = fn
}

// FB returns the framebuffer id, or zero if none has been created yet.
func (b *BufferRef) FB() uint32 {
	return b.fbID
}

// EnsureFramebuffer creates the kernel framebuffer for this buffer if it
// does not exist yet. Scan-out requires a framebuffer id; composed
// surfaces create theirs when their target plane flips to direct scan-out.
func (b *BufferRef) EnsureFramebuffer(gpuFD int) error {
	if b.fbID != 0 {
		return nil
	}
	if b.createFB == nil {
		return ErrNoFramebufferSource
	}
	id, err := b.createFB(b, gpuFD)
	if err != nil {
		return err
	}
	b.fbID = id
	return nil
}

// ResourceManager imports application buffers and tracks them for reuse
// across frames. It is owned by the queue; the kms package provides the
// Linux implementation.
type ResourceManager interface {
	// ImportBuffer resolves the layer's native handle to a BufferRef,
	// reusing a cached import when the handle was seen before.
	ImportBuffer(layer *Layer) (*BufferRef, error)

	// PurgeBuffers drops all cached imports. Called when the queue is
	// reset so stale framebuffer ids do not outlive a modeset.
	PurgeBuffers()
}
