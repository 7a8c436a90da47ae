// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides the GPU composition backend built on gogpu/wgpu.
// Importing the package registers it with the backend registry under the
// name "wgpu".
package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/display"
	"github.com/gogpu/display/backend"
)

func init() {
	backend.Register(backend.BackendWGPU, func() backend.RenderBackend {
		return New()
	})
}

// compositeWGSL is the layer composition shader: a textured quad per
// source layer, scaled into the layer's display frame with plane alpha.
const compositeWGSL = `
struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

struct LayerParams {
    dst_rect: vec4<f32>,
    src_rect: vec4<f32>,
    alpha: f32,
};

@group(0) @binding(0) var src_tex: texture_2d<f32>;
@group(0) @binding(1) var src_sampler: sampler;
@group(0) @binding(2) var<uniform> params: LayerParams;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> VertexOut {
    var corners = array<vec2<f32>, 4>(
        vec2<f32>(0.0, 0.0), vec2<f32>(1.0, 0.0),
        vec2<f32>(0.0, 1.0), vec2<f32>(1.0, 1.0));
    let c = corners[idx];
    var out: VertexOut;
    let pos = params.dst_rect.xy + c * params.dst_rect.zw;
    out.position = vec4<f32>(pos * 2.0 - 1.0, 0.0, 1.0);
    out.uv = params.src_rect.xy + c * params.src_rect.zw;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let texel = textureSample(src_tex, src_sampler, in.uv);
    return vec4<f32>(texel.rgb, texel.a * params.alpha);
}
`

// Backend composes plane contents with a wgpu HAL device. Until the HAL
// grows dma-buf texture export, the final pixel write goes through the
// CPU path while the device and shader pipeline are kept warm.
type Backend struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	shader   hal.ShaderModule

	fallback *backend.Software

	initialized bool
}

// New creates the wgpu composition backend.
func New() *Backend {
	return &Backend{fallback: backend.NewSoftware()}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendWGPU }

// Init opens a HAL device and compiles the composition shader.
func (b *Backend) Init() error {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return backend.ErrBackendNotAvailable
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("wgpu: open adapter: %w", err)
	}
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue

	spirv, err := compileShader(compositeWGSL)
	if err != nil {
		b.Close()
		return err
	}
	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "display-composite",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		b.Close()
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}
	b.shader = shader

	if err := b.fallback.Init(); err != nil {
		b.Close()
		return err
	}
	b.initialized = true
	display.Logger().Info("wgpu: composition backend initialized")
	return nil
}

// Close releases the device and shader.
func (b *Backend) Close() {
	if b.shader != nil && b.device != nil {
		b.device.DestroyShaderModule(b.shader)
		b.shader = nil
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	b.fallback.Close()
	b.initialized = false
}

// Compose renders the request into the target surface.
func (b *Backend) Compose(target *display.Surface, req *backend.ComposeRequest) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	// TODO(hal): record the composite pass against dma-buf textures
	// once hal exposes external memory import/export.
	return b.fallback.Compose(target, req)
}

// compileShader compiles WGSL to the little-endian SPIR-V word slice
// the HAL consumes.
func compileShader(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile shader: %w", err)
	}
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
