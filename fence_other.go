// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !unix

package display

import "errors"

// Sync fences are a kernel facility of unix-like systems. These stubs
// keep the package buildable for tooling on other platforms.

var errFencesUnsupported = errors.New("display: sync fences unsupported on this platform")

func dupFD(int) (int, error) { return -1, errFencesUnsupported }

func closeFD(int) {}

func waitFD(int) error { return nil }
