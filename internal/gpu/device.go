// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan backend with hal.GetBackend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/colorconvert"
)

// Device bundles the HAL device and queue the pipeline runs on.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string

	// external devices belong to a host framework and are not destroyed.
	external bool
}

// OpenDevice opens a standalone Vulkan device, preferring a discrete or
// integrated GPU over software adapters.
//
// A missing Vulkan backend or an empty adapter list is reported as
// colorconvert.ErrExtensionMissing; a failure to open the chosen adapter as
// colorconvert.ErrDeviceResource.
func OpenDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", colorconvert.ErrExtensionMissing)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", colorconvert.ErrExtensionMissing, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", colorconvert.ErrExtensionMissing)
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", colorconvert.ErrDeviceResource, err)
	}

	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

// selectAdapter picks the first hardware adapter, falling back to the first
// adapter of any kind.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// NewDevice wraps an already open device and queue. The caller keeps
// ownership: Close does not destroy them.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{device: device, queue: queue, external: true}
}

// errNoHALAccess is returned when a provider cannot hand out HAL objects.
var errNoHALAccess = errors.New("gpu: provider does not expose HAL device and queue")

// DeviceFromProvider shares the device of a host framework. The HAL
// objects are taken from the provider itself when it implements
// HalDevice() any and HalQueue() any, or else from provider.Device() when
// that is a *wgpu.Device (or anything with typed HalDevice/HalQueue).
func DeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", colorconvert.ErrExtensionMissing)
	}
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", colorconvert.ErrExtensionMissing, err)
	}

	info := provider.AdapterInfo()
	slogger().Info("gpu: using shared device",
		"adapter", info.Name, "surface_format", provider.SurfaceFormat())
	d := NewDevice(device, queue)
	d.name = info.Name
	return d, nil
}

func halFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	type anyHAL interface {
		HalDevice() any
		HalQueue() any
	}
	type typedHAL interface {
		HalDevice() hal.Device
		HalQueue() hal.Queue
	}

	var device hal.Device
	var queue hal.Queue
	switch p := provider.(type) {
	case anyHAL:
		device, _ = p.HalDevice().(hal.Device)
		queue, _ = p.HalQueue().(hal.Queue)
	default:
		wd, ok := provider.Device().(typedHAL)
		if !ok {
			return nil, nil, errNoHALAccess
		}
		device, queue = wd.HalDevice(), wd.HalQueue()
	}
	if device == nil || queue == nil {
		return nil, nil, errors.New("gpu: provider returned nil HAL device or queue")
	}
	return device, queue, nil
}

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// External reports whether the device belongs to someone else.
func (d *Device) External() bool { return d.external }

// Close releases the device and instance when they are owned. Safe to call
// more than once.
func (d *Device) Close() {
	if d.external {
		d.device = nil
		d.queue = nil
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
		d.queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
