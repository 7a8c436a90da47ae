// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build unix

package display

import "golang.org/x/sys/unix"

// dupFD duplicates a file descriptor with CLOEXEC set.
func dupFD(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
}

// closeFD closes a file descriptor, retrying on EINTR.
func closeFD(fd int) {
	for {
		err := unix.Close(fd)
		if err != unix.EINTR {
			return
		}
	}
}

// waitFD polls a sync-fence descriptor until it signals.
func waitFD(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if err != unix.EINTR && err != unix.EAGAIN {
			return err
		}
	}
}
