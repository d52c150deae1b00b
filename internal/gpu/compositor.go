package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/colorconvert"
)

// quadVertexStride is the byte stride per vertex:
//
//	position (vec2<f32>) = 8 bytes (location 0), in pixels
//	uv       (vec2<f32>) = 8 bytes (location 1)
const quadVertexStride = 16

// quadVertexCount is two triangles.
const quadVertexCount = 6

func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // uv
			},
		},
	}
}

// buildQuadVertices returns the quad covering pixels (0,0)-(w,h) with
// texture coordinates (0,0)-(1,1), as triangles TL,TR,BL and TR,BR,BL.
func buildQuadVertices(w, h float32) []byte {
	type corner struct{ x, y, u, v float32 }
	tl := corner{0, 0, 0, 0}
	tr := corner{w, 0, 1, 0}
	bl := corner{0, h, 0, 1}
	br := corner{w, h, 1, 1}

	buf := make([]byte, quadVertexCount*quadVertexStride)
	for i, c := range [quadVertexCount]corner{tl, tr, bl, tr, br, bl} {
		o := i * quadVertexStride
		binary.LittleEndian.PutUint32(buf[o:], math.Float32bits(c.x))
		binary.LittleEndian.PutUint32(buf[o+4:], math.Float32bits(c.y))
		binary.LittleEndian.PutUint32(buf[o+8:], math.Float32bits(c.u))
		binary.LittleEndian.PutUint32(buf[o+12:], math.Float32bits(c.v))
	}
	return buf
}

// Ortho returns the column-major orthographic projection mapping pixel
// (0,0) to NDC (-1,1) and (w,h) to (1,-1), with z in [-1,1] flipped.
func Ortho(w, h float32) [16]float32 {
	return [16]float32{
		2 / w, 0, 0, 0,
		0, -2 / h, 0, 0,
		0, 0, -1, 0,
		-1, 1, 0, 1,
	}
}

// Compositor draws the conversion quad with the program and texture set.
type Compositor struct {
	device   hal.Device
	queue    hal.Queue
	program  *Program
	textures *TextureSet

	vertBuf   hal.Buffer
	bindGroup hal.BindGroup

	// The encoder is reset and re-recorded every frame.
	encoder     hal.CommandEncoder
	attachments [1]hal.RenderPassColorAttachment
	pass        hal.RenderPassDescriptor
	cmdBufs     [1]hal.CommandBuffer

	// ClearColor is the color the target is cleared to before the quad.
	ClearColor gputypes.Color
}

// NewCompositor uploads the quad for a width x height surface, binds the
// projection and builds the bind group. textures must be initialized.
func NewCompositor(device hal.Device, queue hal.Queue, program *Program, textures *TextureSet, width, height int) (*Compositor, error) {
	c := &Compositor{
		device:     device,
		queue:      queue,
		program:    program,
		textures:   textures,
		ClearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
	}

	verts := buildQuadVertices(float32(width), float32(height))
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "yuv_quad_verts",
		Size:  uint64(len(verts)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create vertex buffer: %v", colorconvert.ErrDeviceResource, err)
	}
	c.vertBuf = buf
	if err := queue.WriteBuffer(buf, 0, verts); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("%w: upload vertices: %v", colorconvert.ErrDeviceResource, err)
	}

	if err := program.BindMatrix(ParamProjection, Ortho(float32(width), float32(height))); err != nil {
		c.Destroy()
		return nil, err
	}

	if err := c.createBindGroup(); err != nil {
		c.Destroy()
		return nil, err
	}

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "yuv_convert_encoder",
	})
	if err != nil {
		c.Destroy()
		return nil, fmt.Errorf("%w: create command encoder: %v", colorconvert.ErrDeviceResource, err)
	}
	c.encoder = encoder
	c.attachments[0] = hal.RenderPassColorAttachment{
		LoadOp:  gputypes.LoadOpClear,
		StoreOp: gputypes.StoreOpStore,
	}
	c.pass = hal.RenderPassDescriptor{
		Label:            "yuv_convert_pass",
		ColorAttachments: c.attachments[:],
	}
	return c, nil
}

// createBindGroup binds every declared texture, sampler and the uniform
// block to its resource.
func (c *Compositor) createBindGroup() error {
	var entries []gputypes.BindGroupEntry
	for _, param := range c.program.Parameters() {
		switch param.Kind {
		case ParamTexture:
			unit, ok := c.program.Unit(param.Name)
			if !ok || unit >= uint32(numRoles) {
				return fmt.Errorf("%w: texture input %q has no slot", colorconvert.ErrUnknownParameter, param.Name)
			}
			view := c.textures.View(Role(unit))
			if view == nil {
				return fmt.Errorf("%w: %s slot not initialized", colorconvert.ErrDeviceResource, Role(unit))
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  param.Binding,
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			})
		case ParamSampler:
			s := c.textures.sampler(param.Name)
			if s == nil {
				return fmt.Errorf("%w: no sampler for %q", colorconvert.ErrUnknownParameter, param.Name)
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  param.Binding,
				Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
			})
		}
	}
	if e, ok := c.program.uniformBinding(); ok {
		entries = append(entries, e)
	}

	bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "yuv_convert_bind",
		Layout:  c.program.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group: %v", colorconvert.ErrDeviceResource, err)
	}
	c.bindGroup = bg
	return nil
}

// Draw clears target, draws the quad, copies the result back and waits for
// the submission to complete. The converted frame is then available from
// target.Frame.
//
// Draw records into a single reused encoder, so it must not be called
// concurrently.
func (c *Compositor) Draw(target *RenderTarget) error {
	if err := c.program.Flush(); err != nil {
		return err
	}
	if err := c.encoder.BeginEncoding("yuv_convert"); err != nil {
		return fmt.Errorf("%w: begin encoding: %v", colorconvert.ErrDeviceResource, err)
	}

	c.attachments[0].View = target.View()
	c.attachments[0].ClearValue = c.ClearColor
	rp := c.encoder.BeginRenderPass(&c.pass)
	rp.SetPipeline(c.program.pipeline)
	rp.SetBindGroup(0, c.bindGroup, nil)
	rp.SetVertexBuffer(0, c.vertBuf, 0)
	rp.Draw(quadVertexCount, 1, 0, 0)
	rp.End()

	target.encodeReadback(c.encoder)

	cmdBuf, err := c.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("%w: end encoding: %v", colorconvert.ErrDeviceResource, err)
	}
	c.cmdBufs[0] = cmdBuf
	defer c.encoder.ResetAll(c.cmdBufs[:])

	// The device may be shared with a window; keep this submit off its
	// swapchain.
	c.queue.SetSwapchainSuppressed(true)
	defer c.queue.SetSwapchainSuppressed(false)

	idx, err := c.queue.Submit(c.cmdBufs[:])
	if err != nil {
		return fmt.Errorf("%w: submit: %v", colorconvert.ErrDeviceResource, err)
	}
	if c.queue.PollCompleted() < idx {
		if err := c.device.WaitIdle(); err != nil {
			return fmt.Errorf("%w: wait for GPU: %v", colorconvert.ErrDeviceResource, err)
		}
	}
	return target.readback()
}

// Destroy releases the encoder, bind group and vertex buffer.
func (c *Compositor) Destroy() {
	if c.encoder != nil {
		c.encoder.Destroy()
		c.encoder = nil
	}
	if c.bindGroup != nil {
		c.device.DestroyBindGroup(c.bindGroup)
		c.bindGroup = nil
	}
	if c.vertBuf != nil {
		c.device.DestroyBuffer(c.vertBuf)
		c.vertBuf = nil
	}
}
