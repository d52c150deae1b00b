package gpu

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop HAL device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()

	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("no noop adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// scannedProgram builds a Program from the declarations of the conversion
// shader without translating it, for tests that only need the parameter
// table and uniform block.
func scannedProgram(t *testing.T, device hal.Device, queue hal.Queue) *Program {
	t.Helper()
	params, size, err := scanParameters(ConvertShaderSource)
	if err != nil {
		t.Fatalf("scanParameters: %v", err)
	}
	p := &Program{
		device:  device,
		queue:   queue,
		params:  params,
		units:   make(map[string]uint32),
		uniData: make([]byte, size),
	}
	for _, param := range params {
		if param.Kind == ParamUniformBlock {
			p.uniform = &param
		}
	}
	return p
}

// skipOnNagaGap skips the test when err reports a shader feature the
// translator does not implement yet.
func skipOnNagaGap(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

// compileOrSkip compiles the conversion program on device.
func compileOrSkip(t *testing.T, device hal.Device, queue hal.Queue) *Program {
	t.Helper()
	p, err := CompileProgram(device, queue, ConvertShaderSource, TargetFormat)
	if err != nil {
		skipOnNagaGap(t, err)
		t.Fatalf("CompileProgram: %v", err)
	}
	return p
}
