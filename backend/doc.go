// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides pluggable composition backends for the
// display compositor.
//
// A backend renders the source layers of a plane into the plane's
// off-screen surface. Two implementations ship with the module:
//
//   - software: CPU source-over blending with bilinear scaling
//   - wgpu: GPU composition via gogpu/wgpu (subpackage backend/wgpu)
//
// Backends self-register; selection happens by name via Get or by
// priority via Default. The wgpu backend registers on import:
//
//	import _ "github.com/gogpu/display/backend/wgpu"
package backend
