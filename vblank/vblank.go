// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vblank delivers vertical-blank events for a display pipe.
//
// EventHandler paces a callback at the display refresh interval and
// gates delivery on power mode, implementing display.VblankHandler.
// The queue stays sole owner of its state: the handler reaches back
// only through the callbacks registered on it.
package vblank

import (
	"sync"
	"time"

	"github.com/gogpu/display"
)

// DefaultInterval paces vblank delivery when the mode's refresh rate is
// unknown (60 Hz).
const DefaultInterval = time.Second / 60

// EventHandler implements display.VblankHandler with a timer. Hardware
// event sources can replace the timer by feeding Tick directly.
type EventHandler struct {
	mu sync.Mutex

	interval  time.Duration
	pipe      uint32
	mode      display.PowerMode
	enabled   bool
	callback  display.VsyncCallback
	displayID uint32

	// onTick runs on every vblank regardless of vsync delivery; the
	// queue hangs idle detection off it.
	onTick func()

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewEventHandler creates a handler pacing at the given interval.
// A non-positive interval uses DefaultInterval.
func NewEventHandler(interval time.Duration) *EventHandler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &EventHandler{interval: interval}
}

// Init binds the handler to a pipe.
func (h *EventHandler) Init(gpuFD int, pipe uint32) error {
	h.mu.Lock()
	h.pipe = pipe
	h.mu.Unlock()
	return nil
}

// SetIdleHandler installs the per-tick hook, typically the queue's
// HandleIdleCase.
func (h *EventHandler) SetIdleHandler(fn func()) {
	h.mu.Lock()
	h.onTick = fn
	h.mu.Unlock()
}

// SetPowerMode starts or stops event delivery.
func (h *EventHandler) SetPowerMode(mode display.PowerMode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode == mode {
		return
	}
	h.mode = mode
	switch mode {
	case display.PowerOn:
		h.startLocked()
	default:
		h.stopLocked()
	}
}

// VSyncControl toggles vsync callback delivery without touching the
// event loop.
func (h *EventHandler) VSyncControl(enabled bool) {
	h.mu.Lock()
	h.enabled = enabled
	h.mu.Unlock()
}

// RegisterCallback installs the vsync callback for a display id.
func (h *EventHandler) RegisterCallback(cb display.VsyncCallback, displayID uint32) int {
	h.mu.Lock()
	h.callback = cb
	h.displayID = displayID
	h.mu.Unlock()
	return 0
}

// Close stops event delivery.
func (h *EventHandler) Close() {
	h.mu.Lock()
	h.stopLocked()
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *EventHandler) startLocked() {
	if h.stop != nil {
		return
	}
	stop := make(chan struct{})
	h.stop = stop
	h.wg.Add(1)
	go h.run(stop)
}

func (h *EventHandler) stopLocked() {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}

func (h *EventHandler) run(stop chan struct{}) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			h.Tick(now.UnixNano())
		}
	}
}

// Tick delivers one vblank event. Exposed so hardware event sources can
// drive the handler directly.
func (h *EventHandler) Tick(timestampNs int64) {
	h.mu.Lock()
	cb := h.callback
	id := h.displayID
	enabled := h.enabled && h.mode == display.PowerOn
	onTick := h.onTick
	h.mu.Unlock()

	if enabled && cb != nil {
		cb(id, timestampNs)
	}
	if onTick != nil {
		onTick()
	}
}
