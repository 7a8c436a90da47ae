// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

// Fence owns a sync-fence file descriptor. Every Fence is closed exactly
// once: either explicitly via Close, or implicitly when ownership moves
// out via Release.
//
// Fences are linear resources. Dup produces an independently owned copy;
// the original remains valid. A nil *Fence behaves like an already
// signaled fence for Wait and is a no-op for Close.
type Fence struct {
	fd int
}

// NewFence wraps an owned file descriptor. Returns nil if fd is not a
// valid descriptor (<= 0), matching the kernel convention that 0 and
// negative values mean "no fence".
func NewFence(fd int) *Fence {
	if fd <= 0 {
		return nil
	}
	return &Fence{fd: fd}
}

// FD returns the underlying descriptor without transferring ownership.
// Returns -1 for a nil or released fence.
func (f *Fence) FD() int {
	if f == nil || f.fd <= 0 {
		return -1
	}
	return f.fd
}

// Dup duplicates the fence into a new independently owned Fence.
// Returns nil if the fence is nil or duplication fails.
func (f *Fence) Dup() *Fence {
	if f == nil || f.fd <= 0 {
		return nil
	}
	fd, err := dupFD(f.fd)
	if err != nil {
		Logger().Warn("display: fence dup failed", "fd", f.fd, "err", err)
		return nil
	}
	return &Fence{fd: fd}
}

// Release moves the descriptor out of the fence. The caller becomes
// responsible for closing it. Returns -1 if there is nothing to move.
func (f *Fence) Release() int {
	if f == nil || f.fd <= 0 {
		return -1
	}
	fd := f.fd
	f.fd = -1
	return fd
}

// Wait blocks until the fence signals. A nil fence returns immediately.
func (f *Fence) Wait() error {
	if f == nil || f.fd <= 0 {
		return nil
	}
	return waitFD(f.fd)
}

// Close releases the descriptor. Safe to call on nil and safe to call
// more than once.
func (f *Fence) Close() {
	if f == nil || f.fd <= 0 {
		return
	}
	closeFD(f.fd)
	f.fd = -1
}
