// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package display is the per-display composition engine of a
// hardware-accelerated window compositor.
//
// # Overview
//
// Given a per-frame, z-ordered list of application layers, a Queue
// decides how to realize the frame on the physical display: it assigns
// layers to hardware overlay planes, falls back to GPU composition when
// planes cannot satisfy the request, and submits the final plane
// configuration to the kernel mode-setting layer atomically with
// correct fences.
//
// The heart of the package is the per-frame validation and caching
// algorithm: layers are diffed against the frame in flight, and when
// nothing structural changed the previous plane assignment is reused
// with only damage patched in. Off-screen render targets are
// triple-buffered and recycled by age; adjacent overlay planes merge
// when a plane slot can be freed; frames with no semantic change skip
// the kernel commit entirely.
//
// # Quick start
//
//	dev := kms.NewDevice(card, crtcID)
//	queue := display.NewQueue(dev.FD(), kms.NewSink(dev), &display.Options{
//	    Compositor:      compositor.New(nil),
//	    VblankHandler:   vblank.NewEventHandler(0),
//	    ResourceManager: kms.NewResourceManager(dev),
//	})
//	manager := planes.NewManager(dev.FD(), kms.NewProvider(dev, 0), kms.NewAllocator(dev))
//	if err := queue.Initialize(0, 1920, 1080, manager); err != nil {
//	    // pipe unusable
//	}
//	queue.SetPowerMode(display.PowerOn)
//	retire, ok := queue.QueueUpdate(layers, false, false)
//
// # Collaborators
//
// The kernel display driver, GPU compositor backend, plane capability
// database, vblank delivery, and buffer import sit behind the
// interfaces in this package (PhysicalDisplay, Compositor,
// PlaneManager, VblankHandler, ResourceManager). The planes, kms,
// compositor, backend, and vblank subpackages provide implementations.
package display
